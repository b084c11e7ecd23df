package strategy

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/kilianp07/essim/core/model"
)

// Random fills batteries with headroom in a shuffled order. Two instances
// built with the same seed allocate identically.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random strategy seeded with seed.
func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Name implements Strategy.
func (*Random) Name() string { return "random" }

// Allocate implements Strategy.
func (r *Random) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	// shuffle from id order so the result does not depend on input order
	sortByID(list)
	r.mu.Lock()
	r.rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	r.mu.Unlock()
	rates := fillInOrder(list, math.Abs(requestedKW))
	return toAssignments(batteries, rates, requestedKW), nil
}
