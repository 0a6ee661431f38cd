// Package deadline implements scheduling of named, optionally payload-bearing
// deadlines scoped to the entity that created them, and resolution of fired
// deadlines to registered handlers.
package deadline

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apperrors "github.com/castlebay/deadline/internal/errors"
)

var (
	// ErrNameRequired indicates a missing deadline name.
	ErrNameRequired = apperrors.New(apperrors.CodeScheduleNameEmpty, "deadline name is required")
	// ErrScopeRequired indicates that no scope was captured at schedule time.
	ErrScopeRequired = apperrors.New(apperrors.CodeScheduleScopeMissing, "no entity scope in context")
	// ErrScheduleUnknown indicates a schedule id with no pending entry.
	ErrScheduleUnknown = apperrors.New(apperrors.CodeScheduleUnknown, "schedule is not pending")
	// ErrDuplicateSchedule indicates a schedule id that is already pending.
	ErrDuplicateSchedule = apperrors.New(apperrors.CodeScheduleDuplicateID, "schedule id is already pending")
)

// Payload is a tagged value carried by a deadline. Type is a dotted-path tag;
// a longer path is a more specific subtype of every prefix of itself. JSON
// holds the encoded value and may be the JSON literal null, which is distinct
// from a deadline that carries no payload at all.
type Payload struct {
	Type string
	JSON json.RawMessage
}

// Validate checks the payload tag and encoding.
func (p Payload) Validate() error {
	if strings.TrimSpace(p.Type) == "" {
		return apperrors.New(apperrors.CodeEventInvalid, "payload type tag is required")
	}
	if len(p.JSON) == 0 || !json.Valid(p.JSON) {
		return apperrors.New(apperrors.CodeEventInvalid, "payload json must be valid")
	}
	return nil
}

// Message is an immutable scheduled deadline. It is created at schedule time
// and logically destroyed when it fires or is cancelled.
type Message struct {
	// ScheduleID is the opaque token returned to the scheduling caller and
	// required for cancellation.
	ScheduleID string
	// Name identifies the logical deadline kind; handlers match on it.
	Name string
	// Payload is nil for a payloadless deadline.
	Payload *Payload
	// ScheduledAt is the instant the deadline is due to fire.
	ScheduledAt time.Time
	// Scope identifies the entity that scheduled the deadline and will
	// receive it on fire.
	Scope Scope
}

// Validate checks that the message can be scheduled.
func (m Message) Validate() error {
	if strings.TrimSpace(m.ScheduleID) == "" {
		return apperrors.New(apperrors.CodeCommandInvalid, "schedule id is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return ErrNameRequired
	}
	if m.ScheduledAt.IsZero() {
		return apperrors.New(apperrors.CodeCommandInvalid, "scheduled time is required")
	}
	if err := m.Scope.Validate(); err != nil {
		return err
	}
	if m.Payload != nil {
		if err := m.Payload.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Effect is the state change a deadline handler records against its target:
// an event type plus payload, appended through the target's normal mutation
// pipeline.
type Effect struct {
	Type        string
	PayloadJSON []byte
}

// Invocation carries a fired deadline into a handler along with the actual
// fire instant and the apply hook scoped to the resolved target.
type Invocation struct {
	Message Message
	FiredAt time.Time
	// Apply records an effect against the currently-dispatched entity.
	Apply func(Effect) error
}

// HandlerFunc receives a fired deadline for the entity it was scheduled on.
type HandlerFunc func(ctx context.Context, inv Invocation) error

// Scheduler holds pending deadline messages and fires each at or after its
// due time, exactly once, unless cancelled first.
type Scheduler interface {
	// Schedule registers the message. It returns before the delay elapses.
	Schedule(ctx context.Context, msg Message) error
	// Cancel removes a pending message. It returns ErrScheduleUnknown when
	// the id is not pending (already fired, already cancelled, or never
	// issued); once Cancel returns nil the fire will never happen.
	Cancel(ctx context.Context, scheduleID string) error
	// CancelAll removes every pending message with the given name and scope.
	CancelAll(ctx context.Context, deadlineName string, scope Scope) error
}
