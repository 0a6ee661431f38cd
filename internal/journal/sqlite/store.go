// Package sqlite provides a SQLite-backed journal.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/castlebay/deadline/internal/entity/event"
	apperrors "github.com/castlebay/deadline/internal/errors"
	"github.com/castlebay/deadline/internal/journal/sqlite/migrations"
	"github.com/castlebay/deadline/internal/platform/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed event stream persistence.
type Store struct {
	sqlDB    *sql.DB
	registry *event.Registry

	// appendMu serializes appends so seq assignment stays gap-free under
	// concurrent writers sharing one connection pool.
	appendMu sync.Mutex
}

// Open opens a journal SQLite store and applies migrations. The registry
// validates events before append and may be nil to skip validation.
func Open(path string, registry *event.Registry) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, registry: registry}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Append validates the event, assigns the next sequence number for its
// stream inside a transaction, and stores it.
func (s *Store) Append(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if s.registry != nil {
		vetted, err := s.registry.ValidateForAppend(evt)
		if err != nil {
			return event.Event{}, err
		}
		evt = vetted
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var latest sql.NullInt64
	row := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM journal_events WHERE stream_id = ?`, evt.StreamID)
	if err := row.Scan(&latest); err != nil {
		return event.Event{}, fmt.Errorf("latest seq: %w", err)
	}
	evt.Seq = uint64(latest.Int64) + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal_events (stream_id, seq, timestamp_ms, event_type, entity_type, member_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.StreamID, evt.Seq, evt.Timestamp.UnixMilli(),
		string(evt.Type), evt.EntityType, evt.MemberID, string(evt.PayloadJSON))
	if err != nil {
		return event.Event{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}
	return evt, nil
}

// ListEvents returns up to limit events with sequence greater than afterSeq,
// ordered by sequence ascending. A limit of zero or less returns all
// matching events.
func (s *Store) ListEvents(ctx context.Context, streamID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return nil, apperrors.New(apperrors.CodeEventInvalid, "stream id is required")
	}

	query := `
		SELECT stream_id, seq, timestamp_ms, event_type, entity_type, member_id, payload_json
		FROM journal_events
		WHERE stream_id = ? AND seq > ?
		ORDER BY seq ASC`
	args := []any{streamID, afterSeq}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var page []event.Event
	for rows.Next() {
		var (
			evt         event.Event
			timestampMS int64
			eventType   string
			payloadJSON string
		)
		if err := rows.Scan(&evt.StreamID, &evt.Seq, &timestampMS, &eventType, &evt.EntityType, &evt.MemberID, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Timestamp = time.UnixMilli(timestampMS).UTC()
		evt.Type = event.Type(eventType)
		evt.PayloadJSON = []byte(payloadJSON)
		page = append(page, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return page, nil
}

// LatestSeq returns the newest sequence number in a stream, 0 when the
// stream has no events.
func (s *Store) LatestSeq(ctx context.Context, streamID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var latest sql.NullInt64
	row := s.sqlDB.QueryRowContext(ctx, `SELECT MAX(seq) FROM journal_events WHERE stream_id = ?`, strings.TrimSpace(streamID))
	if err := row.Scan(&latest); err != nil {
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	return uint64(latest.Int64), nil
}
