package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

type failingPayload struct{}

func (failingPayload) MarshalJSON() ([]byte, error) {
	return nil, errors.New("marshal failure")
}

func TestChangePayloadZeroValue(t *testing.T) {
	for name, p := range map[string]ChangePayload{
		"zero":  {},
		"nil":   NewChangePayload(nil),
		"null":  NewChangePayload(json.RawMessage(" null ")),
		"blank": NewChangePayload(json.RawMessage("  ")),
	} {
		if p.Defined() || p.Raw() != nil {
			t.Fatalf("%s: expected undefined payload", name)
		}
		data, err := json.Marshal(p)
		if err != nil || string(data) != "null" {
			t.Fatalf("%s: expected null, got %s %v", name, data, err)
		}
	}
}

func TestChangePayloadRawIsCopied(t *testing.T) {
	raw := json.RawMessage(`{"id":"h-1"}`)
	payload := NewChangePayload(raw)
	raw[2] = 'X'

	first := payload.Raw()
	first[2] = 'Y'
	if got := string(payload.Raw()); got != `{"id":"h-1"}` {
		t.Fatalf("stored payload mutated: %s", got)
	}
}

func TestDecodePayload(t *testing.T) {
	payload, err := NewChangePayloadFromValue(Insemination{Base: Base{ID: "i-1"}, Status: StatusConfirmedPregnant})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	insem, ok := DecodePayload[Insemination](payload)
	if !ok || insem.ID != "i-1" || insem.Status != StatusConfirmedPregnant {
		t.Fatalf("decode mismatch: %+v %v", insem, ok)
	}
	if _, ok := DecodePayload[Insemination](ChangePayload{}); ok {
		t.Fatalf("zero payload must not decode")
	}
	if _, ok := DecodePayload[int](payload); ok {
		t.Fatalf("object payload must not decode as int")
	}
	if _, err := NewChangePayloadFromValue(failingPayload{}); err == nil {
		t.Fatalf("expected marshal error")
	}
}
