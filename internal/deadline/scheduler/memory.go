// Package scheduler provides the in-memory deadline scheduler: pending
// schedules keyed by id, one timer goroutine per schedule, and a claim
// protocol that lets fire and cancel race safely.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/castlebay/deadline/internal/deadline"
	"github.com/castlebay/deadline/internal/platform/clock"
)

// ErrDispatcherRequired indicates a missing dispatcher.
var ErrDispatcherRequired = errors.New("dispatcher is required")

// Dispatcher routes a fired deadline to the entity that scheduled it.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg deadline.Message, firedAt time.Time) error
}

// FailureReporter records dispatch failures. Implementations must not block.
type FailureReporter interface {
	ReportFailure(ctx context.Context, msg deadline.Message, err error)
}

// Memory schedules deadlines on in-process timers. Schedules do not survive
// a restart; the sweeper package provides the durable variant.
type Memory struct {
	dispatcher Dispatcher
	reporter   FailureReporter
	clock      clock.Clock

	mu      sync.Mutex
	pending map[string]*entry
}

type entry struct {
	msg   deadline.Message
	timer clock.Timer
}

// NewMemory creates an in-memory scheduler. The clock may be nil and
// defaults to the system clock; the reporter may be nil.
func NewMemory(dispatcher Dispatcher, reporter FailureReporter, clk clock.Clock) (*Memory, error) {
	if dispatcher == nil {
		return nil, ErrDispatcherRequired
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Memory{
		dispatcher: dispatcher,
		reporter:   reporter,
		clock:      clk,
		pending:    make(map[string]*entry),
	}, nil
}

// Schedule registers a pending deadline and arms its timer. A due time in
// the past arms a zero-delay timer; the fire still happens after Schedule
// returns, never inside it.
func (m *Memory) Schedule(_ context.Context, msg deadline.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[msg.ScheduleID]; exists {
		return deadline.ErrDuplicateSchedule
	}

	delay := msg.ScheduledAt.Sub(m.clock.Now())
	if delay < 0 {
		delay = 0
	}
	e := &entry{msg: msg}
	e.timer = m.clock.AfterFunc(delay, func() {
		m.fire(msg.ScheduleID)
	})
	m.pending[msg.ScheduleID] = e
	return nil
}

// fire claims the pending entry for id and dispatches it. Losing the claim
// means a cancel got there first.
func (m *Memory) fire(scheduleID string) {
	m.mu.Lock()
	e, ok := m.pending[scheduleID]
	if ok {
		delete(m.pending, scheduleID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	if err := m.dispatcher.Dispatch(ctx, e.msg, m.clock.Now()); err != nil {
		if m.reporter != nil {
			m.reporter.ReportFailure(ctx, e.msg, err)
		}
	}
}

// Cancel claims and discards the pending entry for scheduleID. An id with
// no pending entry returns ErrScheduleUnknown.
func (m *Memory) Cancel(_ context.Context, scheduleID string) error {
	m.mu.Lock()
	e, ok := m.pending[scheduleID]
	if ok {
		delete(m.pending, scheduleID)
	}
	m.mu.Unlock()
	if !ok {
		return deadline.ErrScheduleUnknown
	}
	e.timer.Stop()
	return nil
}

// CancelAll discards every pending schedule with the given name whose scope
// equals the given scope.
func (m *Memory) CancelAll(_ context.Context, deadlineName string, scope deadline.Scope) error {
	m.mu.Lock()
	var claimed []*entry
	for id, e := range m.pending {
		if e.msg.Name == deadlineName && e.msg.Scope.Equal(scope) {
			claimed = append(claimed, e)
			delete(m.pending, id)
		}
	}
	m.mu.Unlock()

	for _, e := range claimed {
		e.timer.Stop()
	}
	return nil
}

// Pending reports the number of schedules that have not fired or been
// cancelled.
func (m *Memory) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
