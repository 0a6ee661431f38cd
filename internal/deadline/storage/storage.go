// Package storage defines the durable pending-deadline store used by the
// sweeping scheduler.
package storage

import (
	"context"
	"time"

	"github.com/castlebay/deadline/internal/deadline"
)

// PendingDeadline is one durable schedule row. It exists from Put until a
// claim or delete consumes it.
type PendingDeadline struct {
	ScheduleID string
	Name       string
	Scope      deadline.Scope
	Payload    *deadline.Payload
	DueAt      time.Time
	CreatedAt  time.Time
}

// Message converts the row back to its schedulable form.
func (p PendingDeadline) Message() deadline.Message {
	return deadline.Message{
		ScheduleID:  p.ScheduleID,
		Name:        p.Name,
		Payload:     p.Payload,
		ScheduledAt: p.DueAt,
		Scope:       p.Scope,
	}
}

// ListQuery selects pending rows for inspection.
type ListQuery struct {
	// Filter is an AIP-160 expression over schedule_id, name, entity_type,
	// scope, and due. Empty selects everything.
	Filter string
	// Limit caps the result; zero or less means no cap.
	Limit int
}

// Store persists pending deadlines. A row leaves the store exactly once,
// through Delete, DeleteAll, or ClaimDue.
type Store interface {
	// Put inserts a pending row. A duplicate schedule id is rejected with
	// ErrDuplicateSchedule.
	Put(ctx context.Context, row PendingDeadline) error
	// Delete removes a pending row. An absent id returns ErrScheduleUnknown.
	Delete(ctx context.Context, scheduleID string) error
	// DeleteAll removes every pending row with the given name and scope.
	DeleteAll(ctx context.Context, deadlineName string, scope deadline.Scope) error
	// ClaimDue atomically removes and returns up to limit rows due at or
	// before now, ordered by due time. A claimed row can never be claimed or
	// deleted again.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]PendingDeadline, error)
	// List returns pending rows matching the query, ordered by due time.
	List(ctx context.Context, query ListQuery) ([]PendingDeadline, error)
}
