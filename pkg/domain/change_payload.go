package domain

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// ChangePayload is the JSON snapshot of a record on one side of a Change.
// The zero value means "no record" (the Before of a create, the After of a
// delete) and encodes as null.
type ChangePayload struct {
	raw json.RawMessage
}

// NewChangePayload wraps a copy of raw. Empty input and a literal null both
// yield the zero payload.
func NewChangePayload(raw json.RawMessage) ChangePayload {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return ChangePayload{}
	}
	return ChangePayload{raw: bytes.Clone(trimmed)}
}

// NewChangePayloadFromValue snapshots value as JSON.
func NewChangePayloadFromValue[T any](value T) (ChangePayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}, err
	}
	return NewChangePayload(raw), nil
}

// Defined reports whether the payload holds a record.
func (p ChangePayload) Defined() bool {
	return len(p.raw) > 0
}

// Raw returns a copy of the snapshot bytes, or nil for the zero payload.
func (p ChangePayload) Raw() json.RawMessage {
	if !p.Defined() {
		return nil
	}
	return bytes.Clone(p.raw)
}

// MarshalJSON emits the snapshot verbatim, or null.
func (p ChangePayload) MarshalJSON() ([]byte, error) {
	if !p.Defined() {
		return jsonNull, nil
	}
	return bytes.Clone(p.raw), nil
}

// UnmarshalJSON restores a payload written by MarshalJSON.
func (p *ChangePayload) UnmarshalJSON(data []byte) error {
	*p = NewChangePayload(data)
	return nil
}

// DecodePayload unmarshals the snapshot into T. It reports false for the zero
// payload or a snapshot that does not decode as T.
func DecodePayload[T any](p ChangePayload) (T, bool) {
	var out T
	if !p.Defined() {
		return out, false
	}
	if err := json.Unmarshal(p.raw, &out); err != nil {
		return out, false
	}
	return out, true
}
