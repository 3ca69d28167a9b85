package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database connection shared by all gateway instances.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection avoids
	// SQLITE_BUSY churn and keeps :memory: databases coherent across calls.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// Serialize same-key writers instead of failing immediately on contention
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			client_id TEXT NOT NULL,
			integration_type TEXT NOT NULL DEFAULT 'slack',
			token_json TEXT NOT NULL,
			stored_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (client_id, integration_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_oauth_tokens_stored_at ON oauth_tokens(stored_at)`,
		`CREATE TABLE IF NOT EXISTS pending_authorizations (
			state TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			integration_type TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pending_expires_at ON pending_authorizations(expires_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// isTransient reports whether an error looks like a retryable SQLite
// contention failure rather than a real storage fault.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// execRetry runs fn, retrying exactly once after a short pause when the
// failure is transient contention.
func execRetry(fn func() error) error {
	err := fn()
	if err != nil && isTransient(err) {
		time.Sleep(50 * time.Millisecond)
		err = fn()
	}
	return err
}
