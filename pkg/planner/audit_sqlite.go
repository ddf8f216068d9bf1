package planner

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore persists audit events in SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

// OpenSQLiteAuditStore opens (creating if needed) the audit database at path.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteAuditStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			event_id, kind, expert, mode, query, call_count, status, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Kind,
		event.Expert,
		event.Mode,
		event.Query,
		event.CallCount,
		event.Status,
		event.Error,
		normalizeAuditTime(event.StartedAt),
		normalizeAuditTime(event.FinishedAt),
	)
	return err
}

// List returns audit events matching the filter, oldest first.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT event_id, kind, expert, mode, query, call_count, status, error_text, started_at, finished_at
		FROM audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Expert != "" {
		addFilter("expert = ?", filter.Expert)
	}
	if filter.Kind != "" {
		addFilter("kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event    AuditEvent
			started  sql.NullTime
			finished sql.NullTime
		)
		if err := rows.Scan(
			&event.ID,
			&event.Kind,
			&event.Expert,
			&event.Mode,
			&event.Query,
			&event.CallCount,
			&event.Status,
			&event.Error,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			expert TEXT NOT NULL,
			mode TEXT,
			query TEXT,
			call_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_text TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_expert ON audit_events(expert);
		CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_events(kind);
		CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_events(status);
	`)
	return err
}

func normalizeAuditTime(value time.Time) any {
	if value.IsZero() {
		return nil
	}
	return value.UTC()
}
