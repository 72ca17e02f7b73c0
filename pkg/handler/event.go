package handler

import (
	"encoding/json"
	"fmt"

	"github.com/oriys/quasar/pkg/objstore"
)

// Event is the invocation payload the dispatcher sends to the remote side.
// Its JSON shape is the wire contract: the handler must be able to decode
// exactly what the lifecycle controller produced.
type Event struct {
	InvocationID string `json:"invocation_id"`
	InputKey     string `json:"input_key"`

	// Bucket names the S3 bucket holding the input key. Empty when the
	// handler's own store configuration decides (redis/memory stores).
	Bucket string `json:"bucket,omitempty"`

	// Resource spec, fixed at dispatch time.
	MemoryMB       int `json:"memory_mb"`
	TimeoutSeconds int `json:"timeout_seconds"`

	// Trace carries W3C trace context so remote spans join the dispatch
	// trace.
	Trace map[string]string `json:"trace,omitempty"`
}

// Validate checks the fields the handler cannot work without.
func (e *Event) Validate() error {
	if e.InvocationID == "" {
		return fmt.Errorf("event missing invocation_id")
	}
	if e.InputKey == "" {
		return fmt.Errorf("event missing input_key")
	}
	if want := objstore.KeysFor(e.InvocationID).Input; e.InputKey != want {
		return fmt.Errorf("input key %q does not match invocation %q", e.InputKey, e.InvocationID)
	}
	return nil
}

// Marshal encodes the event for transport.
func (e *Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal invocation event: %w", err)
	}
	return data, nil
}

// ParseEvent decodes an invocation event and validates it.
func ParseEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal invocation event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
