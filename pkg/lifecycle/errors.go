package lifecycle

import (
	"fmt"

	"github.com/oriys/quasar/pkg/codec"
)

// Kind classifies a terminal dispatch failure. The caller can always tell
// "my code raised" (KindRemote) apart from "the platform failed to deliver"
// (every other kind).
type Kind int

const (
	// KindSerialization: the payload could not be encoded. Local,
	// pre-flight; no network operation was attempted.
	KindSerialization Kind = iota
	// KindInvocation: triggering the remote backend failed. Terminal, not
	// retried here.
	KindInvocation
	// KindStore: the object store failed persistently through the poll
	// window, so no terminal key could be observed.
	KindStore
	// KindTimedOut: the deadline elapsed with no terminal key observed.
	KindTimedOut
	// KindRemote: the remote execution raised; the decoded exception is
	// attached.
	KindRemote
	// KindResultCorrupt: a terminal key appeared but its bytes did not
	// decode.
	KindResultCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindSerialization:
		return "serialization"
	case KindInvocation:
		return "invocation"
	case KindStore:
		return "store"
	case KindTimedOut:
		return "timed_out"
	case KindRemote:
		return "remote"
	case KindResultCorrupt:
		return "result_corrupt"
	default:
		return "unknown"
	}
}

// Error is the structured terminal error returned to the workflow engine.
type Error struct {
	Kind Kind
	Err  error

	// Remote holds the decoded remote exception for KindRemote, including
	// the far-side stack trace where available.
	Remote *codec.Exception
}

func (e *Error) Error() string {
	if e.Remote != nil {
		return fmt.Sprintf("%s: remote task raised %s: %s", e.Kind, e.Remote.Type, e.Remote.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }
