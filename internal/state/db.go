// Package state provides SQLite-backed persistence for purposes, task
// nodes, and escalations, so a run can be inspected after the fact.
// The store handle is injected where needed; the supervisor treats it as
// optional and runs fine without one.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with society-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultDBPath returns the default database location under the data dir.
func DefaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, "society.db")
}

// Open opens an SQLite database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Purposes},
		{2, migrationV2TaskNodes},
		{3, migrationV3Escalations},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationV1Purposes = `
CREATE TABLE IF NOT EXISTS purposes (
	id TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	context TEXT,
	state TEXT NOT NULL DEFAULT 'analyzing',
	progress INTEGER NOT NULL DEFAULT 0,
	summary TEXT,
	created_at DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_purposes_state ON purposes(state);
`

const migrationV2TaskNodes = `
CREATE TABLE IF NOT EXISTS task_nodes (
	purpose_id TEXT NOT NULL,
	worker_id TEXT NOT NULL,
	task TEXT NOT NULL,
	context TEXT,
	dependencies TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	result TEXT,
	error TEXT,
	retries INTEGER NOT NULL DEFAULT 0,
	dispatched_at DATETIME,
	completed_at DATETIME,
	PRIMARY KEY (purpose_id, worker_id)
);

CREATE INDEX IF NOT EXISTS idx_task_nodes_status ON task_nodes(status);
`

const migrationV3Escalations = `
CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	purpose_id TEXT NOT NULL,
	priority TEXT NOT NULL,
	question TEXT NOT NULL,
	options TEXT,
	context TEXT,
	created_at DATETIME NOT NULL,
	response TEXT,
	responded_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_escalations_purpose ON escalations(purpose_id);
`

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullableTime formats an optional time for SQLite storage.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
