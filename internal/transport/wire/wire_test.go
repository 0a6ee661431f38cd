package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/castlebay/deadline/internal/deadline"
)

func testMessage() deadline.Message {
	return deadline.Message{
		ScheduleID:  "sched-1",
		Name:        "expire",
		Payload:     &deadline.Payload{Type: "notice", JSON: json.RawMessage(`{"id":"a","count":2}`)},
		ScheduledAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Scope:       deadline.NewScope("timer", "root-1"),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := testMessage()
	record, err := Encode(msg, map[string]string{"trace": "abc"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if record.Scope != "timer/root-1" {
		t.Fatalf("scope = %q, want timer/root-1", record.Scope)
	}
	if record.Payload == nil || record.PayloadType != "notice" {
		t.Fatalf("payload = %v type = %q", record.Payload, record.PayloadType)
	}

	decoded, err := NewEnvelope(record).Message()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ScheduleID != msg.ScheduleID || decoded.Name != msg.Name {
		t.Fatalf("decoded = %+v", decoded)
	}
	if !decoded.Scope.Equal(msg.Scope) {
		t.Fatalf("scope = %v, want %v", decoded.Scope, msg.Scope)
	}
	if !decoded.ScheduledAt.Equal(msg.ScheduledAt) {
		t.Fatalf("scheduled at = %v, want %v", decoded.ScheduledAt, msg.ScheduledAt)
	}
	if decoded.Payload == nil {
		t.Fatal("payload missing after decode")
	}

	var got map[string]any
	if err := json.Unmarshal(decoded.Payload.JSON, &got); err != nil {
		t.Fatalf("unmarshal decoded payload: %v", err)
	}
	if got["id"] != "a" || got["count"] != float64(2) {
		t.Fatalf("payload = %v", got)
	}
}

func TestEncodePayloadless(t *testing.T) {
	msg := testMessage()
	msg.Payload = nil
	record, err := Encode(msg, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if record.Payload != nil || record.PayloadType != "" {
		t.Fatalf("payloadless record carries payload: %+v", record)
	}

	decoded, err := NewEnvelope(record).Message()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Payload != nil {
		t.Fatalf("payload = %+v, want nil", decoded.Payload)
	}
}

func TestEncodeNullPayloadStaysPayloadBearing(t *testing.T) {
	msg := testMessage()
	msg.Payload = &deadline.Payload{Type: "notice", JSON: json.RawMessage("null")}
	record, err := Encode(msg, nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if record.Payload == nil {
		t.Fatal("null payload lost its wire value")
	}

	decoded, err := NewEnvelope(record).Message()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Payload == nil || decoded.Payload.Type != "notice" {
		t.Fatalf("payload = %+v, want notice with null value", decoded.Payload)
	}
	if string(decoded.Payload.JSON) != "null" {
		t.Fatalf("payload json = %q, want null", decoded.Payload.JSON)
	}
}

func TestWithMetadataLeavesOriginalUntouched(t *testing.T) {
	record, err := Encode(testMessage(), map[string]string{"a": "1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env := NewEnvelope(record)

	replaced := env.WithMetadata(map[string]string{"b": "2"})
	if md := env.Metadata(); md["a"] != "1" || len(md) != 1 {
		t.Fatalf("original metadata mutated: %v", md)
	}
	if md := replaced.Metadata(); md["b"] != "2" || len(md) != 1 {
		t.Fatalf("replaced metadata = %v, want {b:2}", md)
	}

	merged := env.AndMetadata(map[string]string{"a": "override", "c": "3"})
	if md := merged.Metadata(); md["a"] != "override" || md["c"] != "3" {
		t.Fatalf("merged metadata = %v", md)
	}
	if md := env.Metadata(); md["a"] != "1" {
		t.Fatalf("original metadata mutated by merge: %v", md)
	}
}

func TestMetadataVariantsSharePayloadDecode(t *testing.T) {
	record, err := Encode(testMessage(), nil)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env := NewEnvelope(record)

	first, err := env.Message()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := env.WithMetadata(map[string]string{"b": "2"}).Message()
	if err != nil {
		t.Fatalf("decode variant: %v", err)
	}
	if first.Payload != second.Payload {
		t.Fatal("variant re-decoded payload instead of sharing it")
	}
}
