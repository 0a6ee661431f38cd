// Package sweeper provides the durable deadline scheduler: pending schedules
// live in the store, and a polling loop claims and dispatches due rows.
package sweeper

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/castlebay/deadline/internal/deadline"
	"github.com/castlebay/deadline/internal/deadline/scheduler"
	"github.com/castlebay/deadline/internal/deadline/storage"
	"github.com/castlebay/deadline/internal/platform/clock"
)

// ErrStoreRequired indicates a missing pending-deadline store.
var ErrStoreRequired = errors.New("pending-deadline store is required")

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Config controls sweep behavior.
type Config struct {
	// Interval is the pause between sweeps. Defaults to one second.
	Interval time.Duration
	// BatchSize caps how many due rows one sweep claims. Defaults to 100.
	BatchSize int
}

func (c Config) normalized() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

// Sweeper implements the scheduler contract on top of a durable store.
// Schedules survive restarts; fires happen on the sweep after the due time.
type Sweeper struct {
	store      storage.Store
	dispatcher scheduler.Dispatcher
	reporter   scheduler.FailureReporter
	clock      clock.Clock
	config     Config
}

// New wires a sweeper. The clock may be nil and defaults to the system
// clock; the reporter may be nil.
func New(store storage.Store, dispatcher scheduler.Dispatcher, reporter scheduler.FailureReporter, clk clock.Clock, config Config) (*Sweeper, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if dispatcher == nil {
		return nil, scheduler.ErrDispatcherRequired
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Sweeper{
		store:      store,
		dispatcher: dispatcher,
		reporter:   reporter,
		clock:      clk,
		config:     config.normalized(),
	}, nil
}

// Schedule persists a pending deadline.
func (s *Sweeper) Schedule(ctx context.Context, msg deadline.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return s.store.Put(ctx, storage.PendingDeadline{
		ScheduleID: msg.ScheduleID,
		Name:       msg.Name,
		Scope:      msg.Scope,
		Payload:    msg.Payload,
		DueAt:      msg.ScheduledAt,
		CreatedAt:  s.clock.Now(),
	})
}

// Cancel removes a pending deadline. An id that is not pending returns
// ErrScheduleUnknown.
func (s *Sweeper) Cancel(ctx context.Context, scheduleID string) error {
	return s.store.Delete(ctx, scheduleID)
}

// CancelAll removes every pending deadline with the given name and scope.
func (s *Sweeper) CancelAll(ctx context.Context, deadlineName string, scope deadline.Scope) error {
	return s.store.DeleteAll(ctx, deadlineName, scope)
}

// Sweep claims every row due by now and dispatches each exactly once.
// Dispatch failures are reported and do not stop the batch. It returns the
// number of claimed rows.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	claimed, err := s.store.ClaimDue(ctx, s.clock.Now(), s.config.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, row := range claimed {
		msg := row.Message()
		if err := s.dispatcher.Dispatch(ctx, msg, s.clock.Now()); err != nil {
			if s.reporter != nil {
				s.reporter.ReportFailure(ctx, msg, err)
			}
		}
	}
	return len(claimed), nil
}

// Run sweeps until the context ends. Sweep errors are logged and the loop
// keeps going; the store owns durability, so a failed sweep retries rows on
// the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			log.Printf("deadline sweep failed err=%v", err)
		}

		tick := make(chan struct{})
		timer := s.clock.AfterFunc(s.config.Interval, func() { close(tick) })
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-tick:
		}
	}
}
