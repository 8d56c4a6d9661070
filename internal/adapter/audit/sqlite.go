// Package audit persists routing outcomes to SQLite so operators can
// review what the mesh did with each query.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"agentmesh/internal/usecase/network"
)

// SQLiteLog implements network.AuditLog backed by a SQLite database.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLiteLog opens (or creates) the database at dbPath and runs the
// schema migration.
func NewSQLiteLog(dbPath string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &SQLiteLog{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS routing_audit (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			query      TEXT NOT NULL,
			agent      TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			explicit   INTEGER NOT NULL DEFAULT 0,
			outcome    TEXT NOT NULL,
			detail     TEXT NOT NULL DEFAULT '',
			at         TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

// Record implements network.AuditLog.
func (l *SQLiteLog) Record(ctx context.Context, rec network.AuditRecord) error {
	explicit := 0
	if rec.Explicit {
		explicit = 1
	}
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO routing_audit (query, agent, confidence, explicit, outcome, detail, at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.Query, rec.Agent, rec.Confidence, explicit, rec.Outcome, rec.Detail,
		rec.At.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Recent returns the latest n records, newest first.
func (l *SQLiteLog) Recent(ctx context.Context, n int) ([]network.AuditRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT query, agent, confidence, explicit, outcome, detail, at FROM routing_audit ORDER BY id DESC LIMIT ?", n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []network.AuditRecord
	for rows.Next() {
		var rec network.AuditRecord
		var explicit int
		var at string
		if err := rows.Scan(&rec.Query, &rec.Agent, &rec.Confidence, &explicit, &rec.Outcome, &rec.Detail, &at); err != nil {
			return nil, err
		}
		rec.Explicit = explicit != 0
		rec.At, _ = time.Parse(time.RFC3339Nano, at)
		records = append(records, rec)
	}
	return records, rows.Err()
}

var _ network.AuditLog = (*SQLiteLog)(nil)
