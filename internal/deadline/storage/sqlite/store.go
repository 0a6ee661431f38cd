// Package sqlite provides the SQLite-backed pending-deadline store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/castlebay/deadline/internal/deadline"
	"github.com/castlebay/deadline/internal/deadline/storage"
	"github.com/castlebay/deadline/internal/deadline/storage/sqlite/migrations"
	apperrors "github.com/castlebay/deadline/internal/errors"
	"github.com/castlebay/deadline/internal/platform/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed pending-deadline persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a pending-deadline SQLite store and applies migrations.
func Open(path string) (*Store, error) {
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

	store := &Store{sqlDB: sqlDB}
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

// Put inserts one pending row.
func (s *Store) Put(ctx context.Context, row storage.PendingDeadline) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := row.Message().Validate(); err != nil {
		return err
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	var payloadType, payloadJSON sql.NullString
	if row.Payload != nil {
		payloadType = sql.NullString{String: row.Payload.Type, Valid: true}
		payloadJSON = sql.NullString{String: string(row.Payload.JSON), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO pending_deadlines (schedule_id, name, entity_type, scope, payload_type, payload_json, due_ms, created_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ScheduleID, row.Name, row.Scope.EntityType, row.Scope.String(),
		payloadType, payloadJSON,
		row.DueAt.UTC().UnixMilli(), row.CreatedAt.UTC().UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return deadline.ErrDuplicateSchedule
		}
		return fmt.Errorf("insert pending deadline: %w", err)
	}
	return nil
}

// Delete removes one pending row by schedule id.
func (s *Store) Delete(ctx context.Context, scheduleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM pending_deadlines WHERE schedule_id = ?`, scheduleID)
	if err != nil {
		return fmt.Errorf("delete pending deadline: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return deadline.ErrScheduleUnknown
	}
	return nil
}

// DeleteAll removes every pending row with the given name and scope.
func (s *Store) DeleteAll(ctx context.Context, deadlineName string, scope deadline.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM pending_deadlines WHERE name = ? AND scope = ?`,
		deadlineName, scope.String())
	if err != nil {
		return fmt.Errorf("delete pending deadlines: %w", err)
	}
	return nil
}

// ClaimDue removes and returns up to limit rows due at or before now. The
// delete and the read run in one transaction, so a claimed row is gone
// before any dispatch starts.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, limit int) ([]storage.PendingDeadline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 100
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT schedule_id, name, scope, payload_type, payload_json, due_ms, created_ms
		FROM pending_deadlines
		WHERE due_ms <= ?
		ORDER BY due_ms ASC, schedule_id ASC
		LIMIT ?`,
		now.UTC().UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("select due: %w", err)
	}
	claimed, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	for _, row := range claimed {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM pending_deadlines WHERE schedule_id = ?`, row.ScheduleID); err != nil {
			return nil, fmt.Errorf("claim %s: %w", row.ScheduleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return claimed, nil
}

// List returns pending rows matching the query, ordered by due time.
func (s *Store) List(ctx context.Context, query storage.ListQuery) ([]storage.PendingDeadline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	cond, err := storage.ParseListFilter(query.Filter)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCommandInvalid, "invalid list filter")
	}

	sqlQuery := `
		SELECT schedule_id, name, scope, payload_type, payload_json, due_ms, created_ms
		FROM pending_deadlines`
	var args []any
	if cond.Clause != "" {
		sqlQuery += " WHERE " + cond.Clause
		args = append(args, cond.Params...)
	}
	sqlQuery += " ORDER BY due_ms ASC, schedule_id ASC"
	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending deadlines: %w", err)
	}
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]storage.PendingDeadline, error) {
	defer rows.Close()

	var out []storage.PendingDeadline
	for rows.Next() {
		var (
			row         storage.PendingDeadline
			scopeStr    string
			payloadType sql.NullString
			payloadJSON sql.NullString
			dueMS       int64
			createdMS   int64
		)
		if err := rows.Scan(&row.ScheduleID, &row.Name, &scopeStr, &payloadType, &payloadJSON, &dueMS, &createdMS); err != nil {
			return nil, fmt.Errorf("scan pending deadline: %w", err)
		}
		scope, err := deadline.ParseScope(scopeStr)
		if err != nil {
			return nil, fmt.Errorf("parse scope %q: %w", scopeStr, err)
		}
		row.Scope = scope
		if payloadType.Valid {
			row.Payload = &deadline.Payload{
				Type: payloadType.String,
				JSON: json.RawMessage(payloadJSON.String),
			}
		}
		row.DueAt = time.UnixMilli(dueMS).UTC()
		row.CreatedAt = time.UnixMilli(createdMS).UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending deadlines: %w", err)
	}
	return out, nil
}
