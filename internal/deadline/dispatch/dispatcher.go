// Package dispatch routes fired deadlines to the entity instance that
// scheduled them, through the same single-writer section commands use.
package dispatch

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/castlebay/deadline/internal/deadline"
	"github.com/castlebay/deadline/internal/entity"
	"github.com/castlebay/deadline/internal/entity/event"
	apperrors "github.com/castlebay/deadline/internal/errors"
)

var (
	// ErrRuntimeRequired indicates a missing entity runtime.
	ErrRuntimeRequired = errors.New("entity runtime is required")
	// ErrHandlersRequired indicates a missing handler registry.
	ErrHandlersRequired = errors.New("handler registry is required")
)

// Dispatcher resolves a fired deadline to a handler and invokes it inside
// the target instance's section.
type Dispatcher struct {
	Runtime  *entity.Runtime
	Handlers *deadline.Registry
	Tracer   trace.Tracer
}

// Dispatch delivers one fired deadline. A target that no longer exists (or
// a process that has ended) absorbs the fire and returns nil; handler
// resolution failures and handler errors are returned for reporting.
func (d Dispatcher) Dispatch(ctx context.Context, msg deadline.Message, firedAt time.Time) error {
	if d.Runtime == nil {
		return ErrRuntimeRequired
	}
	if d.Handlers == nil {
		return ErrHandlersRequired
	}

	tracer := d.Tracer
	if tracer == nil {
		tracer = otel.Tracer("deadline/dispatch")
	}
	ctx, span := tracer.Start(ctx, "deadline.dispatch", trace.WithAttributes(
		attribute.String("deadline.schedule_id", msg.ScheduleID),
		attribute.String("deadline.name", msg.Name),
		attribute.String("deadline.scope", msg.Scope.String()),
	))
	defer span.End()

	collection, memberID, _ := msg.Scope.Member()
	handler, err := d.Handlers.Resolve(msg.Scope.EntityType, collection, msg.Name, msg.Payload)
	if err != nil {
		span.SetStatus(codes.Error, "handler resolution failed")
		span.RecordError(err)
		return err
	}

	err = d.Runtime.Enter(ctx, msg.Scope, func(tx *entity.Tx) error {
		inv := deadline.Invocation{
			Message: msg,
			FiredAt: firedAt,
			Apply: func(effect deadline.Effect) error {
				return tx.Apply(ctx, event.Event{
					Type:        event.Type(effect.Type),
					Timestamp:   firedAt,
					MemberID:    memberID,
					PayloadJSON: effect.PayloadJSON,
				})
			},
		}
		return handler.Handle(deadline.WithScope(ctx, msg.Scope), inv)
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeTargetUnavailable) {
			span.AddEvent("deadline.absorbed", trace.WithAttributes(
				attribute.String("reason", err.Error()),
			))
			return nil
		}
		span.SetStatus(codes.Error, "dispatch failed")
		span.RecordError(err)
		if apperrors.GetCode(err) == apperrors.CodeUnknown {
			return apperrors.Wrap(err, apperrors.CodeDispatchFailed, "deadline handler failed")
		}
		return err
	}
	return nil
}
