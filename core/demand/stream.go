package demand

import (
	"context"
	"sync"
)

type streamKey struct {
	site string
	tick int
}

// Stream is fed by an external producer such as an MQTT subscription.
// RequestedPower blocks until the value for the tick arrives or ctx ends.
// Values for past ticks are discarded once read.
type Stream struct {
	mu      sync.Mutex
	values  map[streamKey]float64
	waiters map[streamKey][]chan float64
	closed  bool
	done    chan struct{}
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{
		values:  make(map[streamKey]float64),
		waiters: make(map[streamKey][]chan float64),
		done:    make(chan struct{}),
	}
}

// Push records the request for siteID at tick. A later push for the same
// tick replaces an unread value.
func (s *Stream) Push(siteID string, tick int, powerKW float64) {
	k := streamKey{siteID, tick}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if ws := s.waiters[k]; len(ws) > 0 {
		for _, w := range ws {
			w <- powerKW
		}
		delete(s.waiters, k)
		return
	}
	s.values[k] = powerKW
}

// Close releases blocked readers with ErrStreamClosed.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// RequestedPower implements Source.
func (s *Stream) RequestedPower(ctx context.Context, siteID string, tick int) (float64, error) {
	k := streamKey{siteID, tick}
	s.mu.Lock()
	if v, ok := s.values[k]; ok {
		delete(s.values, k)
		s.mu.Unlock()
		return v, nil
	}
	if s.closed {
		s.mu.Unlock()
		return 0, ErrStreamClosed
	}
	w := make(chan float64, 1)
	s.waiters[k] = append(s.waiters[k], w)
	s.mu.Unlock()

	select {
	case v := <-w:
		return v, nil
	case <-s.done:
		return 0, ErrStreamClosed
	case <-ctx.Done():
		s.drop(k, w)
		return 0, ctx.Err()
	}
}

func (s *Stream) drop(k streamKey, w chan float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws := s.waiters[k]
	for i, c := range ws {
		if c == w {
			s.waiters[k] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(s.waiters[k]) == 0 {
		delete(s.waiters, k)
	}
}
