// Package telemetry records operational observations from the deadline
// subsystem: dispatch failures and fire-path spans.
package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/castlebay/deadline/internal/deadline"
	apperrors "github.com/castlebay/deadline/internal/errors"
)

// Reporter counts deadline dispatch failures and logs a rate-limited sample
// of them. A nil Reporter is a no-op.
type Reporter struct {
	failures metric.Int64Counter
	limiter  *rate.Limiter
	logf     func(format string, args ...any)
}

// NewReporter creates a reporter backed by the given meter. The meter may be
// nil, in which case only logging happens.
func NewReporter(meter metric.Meter) (*Reporter, error) {
	r := &Reporter{
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logf:    log.Printf,
	}
	if meter != nil {
		failures, err := meter.Int64Counter(
			"deadline.dispatch.failures",
			metric.WithDescription("Deadline fires that could not be dispatched."),
		)
		if err != nil {
			return nil, err
		}
		r.failures = failures
	}
	return r, nil
}

// ReportFailure records one dispatch failure.
func (r *Reporter) ReportFailure(ctx context.Context, msg deadline.Message, err error) {
	if r == nil {
		return
	}
	code := string(apperrors.GetCode(err))
	if r.failures != nil {
		r.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("deadline.name", msg.Name),
			attribute.String("error.code", code),
		))
	}
	if r.limiter == nil || r.limiter.Allow() {
		r.logf("deadline dispatch failed schedule_id=%s name=%s scope=%s code=%s err=%v",
			msg.ScheduleID, msg.Name, msg.Scope, code, err)
	}
}
