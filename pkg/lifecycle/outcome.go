package lifecycle

// State is the position of one dispatch in its lifecycle. Terminal states are
// permanent for an invocation id.
type State int

const (
	StateCreated State = iota
	StateSubmitted
	StatePolling
	StateSucceeded
	StateFailed
	StateTimedOut
	StateInvocationError
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	case StateInvocationError:
		return "invocation_error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateInvocationError:
		return true
	}
	return false
}

// Outcome is the tagged result of one dispatch. Value is set only for
// StateSucceeded; Err only for terminal failure states.
type Outcome struct {
	State State
	Value any
	Err   *Error
}
