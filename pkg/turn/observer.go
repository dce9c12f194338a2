package turn

import "context"

// State is a stage of the turn state machine.
type State string

const (
	StateAugment     State = "AUGMENT"
	StateInputGuard  State = "INPUT_GUARD"
	StateDispatch    State = "DISPATCH"
	StateToolExec    State = "TOOL_EXEC"
	StateOutputGuard State = "OUTPUT_GUARD"
	StatePersist     State = "PERSIST"
	StateDone        State = "DONE"
	StateError       State = "ERROR"
)

// Transition is reported every time a turn enters a state.
type Transition struct {
	ChatID string
	Model  string
	State  State
	Round  int   // Tool rounds completed so far.
	Err    error // Set for StateError.
}

// Observer receives transitions. Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, t Transition)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, t Transition)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, t Transition) { f(ctx, t) }

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Transition) {}
