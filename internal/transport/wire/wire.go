// Package wire carries scheduled deadlines across process boundaries. The
// payload travels as a protobuf Value and is decoded at most once per
// envelope family, on first access.
package wire

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/castlebay/deadline/internal/deadline"
)

// Record is the wire form of one scheduled deadline.
type Record struct {
	ScheduleID  string
	Name        string
	Scope       string
	ScheduledAt *timestamppb.Timestamp
	// PayloadType tags the payload; empty means a payloadless deadline and
	// Payload is nil.
	PayloadType string
	Payload     *structpb.Value
	Metadata    map[string]string
}

// Encode converts a deadline message to its wire record.
func Encode(msg deadline.Message, metadata map[string]string) (Record, error) {
	if err := msg.Validate(); err != nil {
		return Record{}, err
	}
	record := Record{
		ScheduleID:  msg.ScheduleID,
		Name:        msg.Name,
		Scope:       msg.Scope.String(),
		ScheduledAt: timestamppb.New(msg.ScheduledAt),
		Metadata:    copyMetadata(metadata),
	}
	if msg.Payload != nil {
		value := &structpb.Value{}
		if err := protojson.Unmarshal(msg.Payload.JSON, value); err != nil {
			return Record{}, fmt.Errorf("encode payload: %w", err)
		}
		record.PayloadType = msg.Payload.Type
		record.Payload = value
	}
	return record, nil
}

// payloadCell decodes the wire payload once and shares the result across
// every envelope derived from the same record.
type payloadCell struct {
	once    sync.Once
	payload *deadline.Payload
	err     error
}

func (c *payloadCell) decode(record Record) (*deadline.Payload, error) {
	c.once.Do(func() {
		if record.Payload == nil {
			return
		}
		raw, err := protojson.Marshal(record.Payload)
		if err != nil {
			c.err = fmt.Errorf("decode payload: %w", err)
			return
		}
		c.payload = &deadline.Payload{
			Type: record.PayloadType,
			JSON: json.RawMessage(raw),
		}
	})
	return c.payload, c.err
}

// Envelope is an immutable view over a wire record. Metadata variants share
// the decoded payload instead of re-decoding it.
type Envelope struct {
	record Record
	cell   *payloadCell
}

// NewEnvelope wraps a record. Nothing is decoded until Message is called.
func NewEnvelope(record Record) *Envelope {
	return &Envelope{record: record, cell: &payloadCell{}}
}

// Record returns the underlying wire record.
func (e *Envelope) Record() Record {
	return e.record
}

// Metadata returns a copy of the envelope metadata.
func (e *Envelope) Metadata() map[string]string {
	return copyMetadata(e.record.Metadata)
}

// Message decodes the record into a schedulable deadline message. The
// payload decode happens once; later calls and metadata variants reuse it.
func (e *Envelope) Message() (deadline.Message, error) {
	scope, err := deadline.ParseScope(e.record.Scope)
	if err != nil {
		return deadline.Message{}, fmt.Errorf("parse scope %q: %w", e.record.Scope, err)
	}
	var scheduledAt time.Time
	if e.record.ScheduledAt != nil {
		scheduledAt = e.record.ScheduledAt.AsTime()
	}
	payload, err := e.cell.decode(e.record)
	if err != nil {
		return deadline.Message{}, err
	}
	return deadline.Message{
		ScheduleID:  e.record.ScheduleID,
		Name:        e.record.Name,
		Payload:     payload,
		ScheduledAt: scheduledAt,
		Scope:       scope,
	}, nil
}

// WithMetadata returns an envelope whose metadata is replaced by md. The
// original envelope is untouched and the decoded payload is shared.
func (e *Envelope) WithMetadata(md map[string]string) *Envelope {
	record := e.record
	record.Metadata = copyMetadata(md)
	return &Envelope{record: record, cell: e.cell}
}

// AndMetadata returns an envelope whose metadata is the original metadata
// merged with md; md wins on key collisions. The decoded payload is shared.
func (e *Envelope) AndMetadata(md map[string]string) *Envelope {
	merged := copyMetadata(e.record.Metadata)
	if merged == nil {
		merged = make(map[string]string, len(md))
	}
	for k, v := range md {
		merged[k] = v
	}
	record := e.record
	record.Metadata = merged
	return &Envelope{record: record, cell: e.cell}
}

func copyMetadata(md map[string]string) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
