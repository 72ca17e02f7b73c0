// Package codec serializes task payloads, results and remote exceptions for
// transport through the object store. Task payloads and results travel as gob;
// exceptions travel as JSON so that a remote stack trace survives even when
// the two sides disagree about value types.
package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
)

func init() {
	// Concrete types carried inside interface-typed args/results must be
	// registered with gob. Cover the common ones; callers register their
	// own via RegisterType.
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(false)
	gob.Register([]byte(nil))
	gob.Register([]any(nil))
	gob.Register(map[string]any(nil))
}

// SerializationError reports a payload that cannot be put on the wire. It is
// always produced before any network operation is attempted.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serialization failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("serialization failed: %s", e.Reason)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// payload is the wire form of one task invocation.
type payload struct {
	Name   string
	Args   []any
	Kwargs map[string]any
}

// result is the wire form of a successful return value.
type result struct {
	Value any
}

// Exception is the wire form of a remote failure. Type and Message come from
// the error the task raised; Trace carries the remote stack where available.
type Exception struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Trace   string `json:"trace,omitempty"`
}

func (e *Exception) Error() string {
	return e.Message
}

// Encode packs a registered task name and its arguments into a transportable
// blob. Unregistered names and gob-unencodable argument values are rejected
// with a SerializationError so the caller fails before touching the network.
func Encode(name string, args []any, kwargs map[string]any) ([]byte, error) {
	if !Registered(name) {
		return nil, &SerializationError{Reason: fmt.Sprintf("task %q is not registered", name)}
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload{Name: name, Args: args, Kwargs: kwargs}); err != nil {
		return nil, &SerializationError{Reason: "encode task payload", Err: err}
	}
	return buf.Bytes(), nil
}

// Decode unpacks a task payload produced by Encode.
func Decode(data []byte) (string, []any, map[string]any, error) {
	var p payload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return "", nil, nil, fmt.Errorf("decode task payload: %w", err)
	}
	return p.Name, p.Args, p.Kwargs, nil
}

// EncodeResult packs a task return value for the result key.
func EncodeResult(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(result{Value: v}); err != nil {
		return nil, &SerializationError{Reason: "encode result", Err: err}
	}
	return buf.Bytes(), nil
}

// DecodeResult unpacks a stored return value.
func DecodeResult(data []byte) (any, error) {
	var r result
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return r.Value, nil
}

// EncodeException packs a remote failure for the exception key.
func EncodeException(exc *Exception) ([]byte, error) {
	data, err := json.Marshal(exc)
	if err != nil {
		return nil, &SerializationError{Reason: "encode exception", Err: err}
	}
	return data, nil
}

// DecodeException unpacks a stored failure record.
func DecodeException(data []byte) (*Exception, error) {
	var exc Exception
	if err := json.Unmarshal(data, &exc); err != nil {
		return nil, fmt.Errorf("decode exception: %w", err)
	}
	if exc.Type == "" && exc.Message == "" {
		return nil, fmt.Errorf("decode exception: empty record")
	}
	return &exc, nil
}
