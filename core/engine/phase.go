package engine

import "fmt"

// Phase is the position of the engine within a tick.
type Phase int

const (
	// AwaitingUpdate is the start of a tick.
	AwaitingUpdate Phase = iota
	// AwaitingDecide follows a completed update pass.
	AwaitingDecide
	// Finished follows the trailing update of a run. No phase may run.
	Finished
	// Halted follows a fatal tick error.
	Halted
)

func (p Phase) String() string {
	switch p {
	case AwaitingUpdate:
		return "awaiting_update"
	case AwaitingDecide:
		return "awaiting_decide"
	case Finished:
		return "finished"
	case Halted:
		return "halted"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}
