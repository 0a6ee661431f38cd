// Package event defines the event envelope appended to entity streams and
// the registry of known event types.
package event

import (
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/castlebay/deadline/internal/errors"
)

// Type identifies the kind of an event.
type Type string

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Event is an immutable record in an entity's stream.
type Event struct {
	// StreamID is the root instance this event belongs to.
	StreamID string
	// Seq is the event sequence number within the stream (starts at 1).
	// Assigned by the journal on append.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// EntityType is the entity type that owns the stream.
	EntityType string
	// MemberID is set when the event concerns a member of the root instance.
	MemberID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// PayloadValidator validates a payload JSON document.
type PayloadValidator func(json.RawMessage) error

// Definition registers metadata for an event type.
type Definition struct {
	Type            Type
	ValidatePayload PayloadValidator
}

// Registry stores event definitions and validates events before append.
type Registry struct {
	definitions map[Type]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{definitions: make(map[Type]Definition)}
}

// Register adds a new event type definition to the registry.
func (r *Registry) Register(def Definition) error {
	def.Type = Type(strings.TrimSpace(string(def.Type)))
	if !def.Type.IsValid() {
		return apperrors.New(apperrors.CodeEventInvalid, "event type is required")
	}
	if _, exists := r.definitions[def.Type]; exists {
		return apperrors.Newf(apperrors.CodeEventInvalid, "event type already registered: %s", def.Type)
	}
	r.definitions[def.Type] = def
	return nil
}

// ValidateForAppend validates and normalizes an event before it is appended.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	evt.StreamID = strings.TrimSpace(evt.StreamID)
	if evt.StreamID == "" {
		return Event{}, apperrors.New(apperrors.CodeEventInvalid, "stream id is required")
	}
	evt.Type = Type(strings.TrimSpace(string(evt.Type)))
	if !evt.Type.IsValid() {
		return Event{}, apperrors.New(apperrors.CodeEventInvalid, "event type is required")
	}
	def, ok := r.definitions[evt.Type]
	if !ok {
		return Event{}, apperrors.Newf(apperrors.CodeEventTypeUnknown, "event type is not registered: %s", evt.Type)
	}
	evt.EntityType = strings.TrimSpace(evt.EntityType)
	evt.MemberID = strings.TrimSpace(evt.MemberID)

	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, apperrors.New(apperrors.CodeEventInvalid, "payload json must be valid")
	}
	if def.ValidatePayload != nil {
		if err := def.ValidatePayload(json.RawMessage(evt.PayloadJSON)); err != nil {
			return Event{}, apperrors.Wrap(err, apperrors.CodeEventInvalid, "payload invalid")
		}
	}
	return evt, nil
}

// Known reports whether the event type is registered.
func (r *Registry) Known(eventType Type) bool {
	_, ok := r.definitions[Type(strings.TrimSpace(string(eventType)))]
	return ok
}
