package journal

import (
	"context"
	"sync"
	"time"

	"github.com/castlebay/deadline/internal/entity/event"
	apperrors "github.com/castlebay/deadline/internal/errors"
)

// Memory is an in-memory journal used by tests and single-process setups.
type Memory struct {
	mu       sync.Mutex
	registry *event.Registry
	streams  map[string][]event.Event
}

// NewMemory creates an empty in-memory journal. The registry validates
// events before append and may be nil to skip validation.
func NewMemory(registry *event.Registry) *Memory {
	return &Memory{
		registry: registry,
		streams:  make(map[string][]event.Event),
	}
}

// Append validates the event, assigns the next sequence number for its
// stream, and stores it.
func (m *Memory) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if m.registry != nil {
		vetted, err := m.registry.ValidateForAppend(evt)
		if err != nil {
			return event.Event{}, err
		}
		evt = vetted
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	evt.Seq = uint64(len(m.streams[evt.StreamID])) + 1
	m.streams[evt.StreamID] = append(m.streams[evt.StreamID], evt)
	return evt, nil
}

// ListEvents returns up to limit events with sequence greater than afterSeq.
// A limit of zero or less returns all matching events.
func (m *Memory) ListEvents(_ context.Context, streamID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if streamID == "" {
		return nil, apperrors.New(apperrors.CodeEventInvalid, "stream id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stream := m.streams[streamID]
	var page []event.Event
	for _, evt := range stream {
		if evt.Seq <= afterSeq {
			continue
		}
		page = append(page, evt)
		if limit > 0 && len(page) == limit {
			break
		}
	}
	return page, nil
}

// LatestSeq returns the newest sequence number in a stream.
func (m *Memory) LatestSeq(_ context.Context, streamID string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.streams[streamID])), nil
}
