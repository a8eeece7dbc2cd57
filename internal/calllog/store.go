// Package calllog persists an audit trail of governed calls: one row per
// call recording whether the cache answered it, how many upstream attempts
// were made, and whether the caller got a real result or the fallback.
package calllog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Entry represents one governed call.
type Entry struct {
	TraceID      string
	Upstream     string
	Operation    string
	Outcome      string // "hit", "success", "fallback"
	FailureKind  string // classified kind when the upstream failed, else ""
	CacheHit     bool
	FallbackUsed bool
	Attempts     int
	LatencyMs    int64
	CreatedAt    time.Time
}

// Writer persists call log entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// NoopWriter ignores all log writes.
type NoopWriter struct{}

// Write implements Writer.
func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite or Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteWriter opens (creating if needed) a SQLite-backed call log.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "governor-calls.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite call log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter opens a Postgres-backed call log.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres call log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s call log: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS governed_calls (
	id INTEGER PRIMARY KEY,
	trace_id TEXT,
	upstream TEXT NOT NULL,
	operation TEXT NOT NULL,
	outcome TEXT NOT NULL,
	failure_kind TEXT,
	cache_hit INTEGER NOT NULL,
	fallback_used INTEGER NOT NULL,
	attempts INTEGER NOT NULL,
	latency_ms INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);`

	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS governed_calls (
	id BIGSERIAL PRIMARY KEY,
	trace_id TEXT,
	upstream TEXT NOT NULL,
	operation TEXT NOT NULL,
	outcome TEXT NOT NULL,
	failure_kind TEXT,
	cache_hit BOOLEAN NOT NULL,
	fallback_used BOOLEAN NOT NULL,
	attempts INTEGER NOT NULL,
	latency_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize call log schema: %w", err)
	}
	return nil
}

// Write implements Writer.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO governed_calls(trace_id, upstream, operation, outcome, failure_kind, cache_hit, fallback_used, attempts, latency_ms, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if w.dialect == "postgres" {
		query = `INSERT INTO governed_calls(trace_id, upstream, operation, outcome, failure_kind, cache_hit, fallback_used, attempts, latency_ms, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	}

	_, err := w.db.ExecContext(ctx, query,
		entry.TraceID,
		entry.Upstream,
		entry.Operation,
		entry.Outcome,
		entry.FailureKind,
		entry.CacheHit,
		entry.FallbackUsed,
		entry.Attempts,
		entry.LatencyMs,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write call log: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (w *SQLWriter) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT trace_id, upstream, operation, outcome, failure_kind, cache_hit, fallback_used, attempts, latency_ms, created_at
	FROM governed_calls ORDER BY created_at DESC LIMIT ?`
	if w.dialect == "postgres" {
		query = `SELECT trace_id, upstream, operation, outcome, failure_kind, cache_hit, fallback_used, attempts, latency_ms, created_at
		FROM governed_calls ORDER BY created_at DESC LIMIT $1`
	}

	rows, err := w.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list call log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TraceID, &e.Upstream, &e.Operation, &e.Outcome, &e.FailureKind,
			&e.CacheHit, &e.FallbackUsed, &e.Attempts, &e.LatencyMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan call log row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes entries created before the cutoff and returns how many were
// removed.
func (w *SQLWriter) Purge(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM governed_calls WHERE created_at < ?`
	if w.dialect == "postgres" {
		query = `DELETE FROM governed_calls WHERE created_at < $1`
	}

	res, err := w.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("purge call log: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the underlying database handle.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
