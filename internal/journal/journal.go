// Package journal stores the append-only event streams that entity state is
// rebuilt from.
package journal

import (
	"context"

	"github.com/castlebay/deadline/internal/entity/event"
)

// Journal owns the event stream boundary; it is the source of truth for
// state reconstruction.
type Journal interface {
	// Append atomically appends an event and returns it with its sequence set.
	Append(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns events for a stream ordered by sequence ascending.
	ListEvents(ctx context.Context, streamID string, afterSeq uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the latest sequence number for a stream, 0 when the
	// stream has no events.
	LatestSeq(ctx context.Context, streamID string) (uint64, error)
}
