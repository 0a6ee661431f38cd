package deadline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/castlebay/deadline/internal/platform/clock"
	"github.com/castlebay/deadline/internal/platform/id"
)

// Manager is the scheduling façade handed to entity code. It captures the
// caller's entity scope from context, builds deadline messages, and submits
// them to the configured scheduler. Schedule never blocks on the deadline
// firing.
type Manager struct {
	scheduler Scheduler
	clock     clock.Clock
	newID     func() (string, error)
}

// NewManager builds a manager around the given scheduler. A nil clk defaults
// to the system clock.
func NewManager(scheduler Scheduler, clk clock.Clock) (*Manager, error) {
	if scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{scheduler: scheduler, clock: clk, newID: id.NewID}, nil
}

// Schedule registers a deadline due after the given delay, scoped to the
// entity in the calling context, and returns its schedule id synchronously.
// A nil payload schedules a payloadless deadline.
func (m *Manager) Schedule(ctx context.Context, delay time.Duration, name string, payload *Payload) (string, error) {
	return m.ScheduleAt(ctx, m.clock.Now().Add(delay), name, payload)
}

// ScheduleAt registers a deadline due at the given absolute instant.
func (m *Manager) ScheduleAt(ctx context.Context, at time.Time, name string, payload *Payload) (string, error) {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return "", ErrScopeRequired
	}
	scheduleID, err := m.newID()
	if err != nil {
		return "", fmt.Errorf("assign schedule id: %w", err)
	}
	msg := Message{
		ScheduleID:  scheduleID,
		Name:        name,
		Payload:     payload,
		ScheduledAt: at,
		Scope:       scope,
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}
	if err := m.scheduler.Schedule(ctx, msg); err != nil {
		return "", fmt.Errorf("schedule %q: %w", name, err)
	}
	return scheduleID, nil
}

// CancelSchedule removes a pending schedule. Cancelling an id that is not
// pending — already fired, already cancelled, or never issued — succeeds
// silently, since expiry and cancellation race legitimately.
func (m *Manager) CancelSchedule(ctx context.Context, name, scheduleID string) error {
	err := m.scheduler.Cancel(ctx, scheduleID)
	if err == nil || errors.Is(err, ErrScheduleUnknown) {
		return nil
	}
	return fmt.Errorf("cancel schedule %q: %w", name, err)
}

// CancelAll removes every pending schedule with the given name for the entity
// scope in the calling context.
func (m *Manager) CancelAll(ctx context.Context, name string) error {
	scope, ok := ScopeFromContext(ctx)
	if !ok {
		return ErrScopeRequired
	}
	if err := m.scheduler.CancelAll(ctx, name, scope); err != nil {
		return fmt.Errorf("cancel all %q: %w", name, err)
	}
	return nil
}
