// Package kvstore provides the durable local key-value store that backs
// offline state for the app.
//
// The store maps string keys to JSON-serialized values in a single SQLite
// table, mirroring the browser localStorage surface the UI collaborators
// write through (per-feature keys such as "dayGoal:<date>" are opaque to
// the sync subsystem; only the pending-queue key is interpreted).
//
// The database runs in embedded mode with WAL for concurrent reads.
// Reads never fail: a missing or unparseable value yields the caller's
// fallback and a logged diagnostic. Writes serialize the full value and
// overwrite unconditionally.
package kvstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection holding the local key-value state.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open creates a new store at the specified path.
//
// The parent directory is created if needed, the kv table is created on
// first use, and WAL mode is enabled for concurrent readers. The caller
// MUST call Close() when done.
//
// If logger is nil, a default logger writing to stderr is used.
//
// Example:
//
//	store, err := kvstore.Open(filepath.Join(dataDir, "faceyourself.db"), nil)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[kvstore] ", log.LstdFlags)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path, logger: logger}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the kv table if it doesn't exist. Idempotent.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize kv schema: %w", err)
	}
	return nil
}

// Close closes the store, checkpointing the WAL first.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// Path returns the filesystem path of the underlying database.
func (s *Store) Path() string {
	return s.path
}

// Set serializes value to JSON and stores it under key, unconditionally
// overwriting any prior value.
//
// Unlike Get, a failed write is reported to the caller: there is no safe
// local fallback for a value that was never persisted.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value for %q: %w", key, err)
	}

	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	if _, err := s.conn.Exec(query, key, string(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to store %q: %w", key, err)
	}
	return nil
}

// Delete removes key from the store. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	if _, err := s.conn.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// lookup returns the raw stored text for key, with ok=false when absent.
// Read errors are logged and treated as absence: callers always receive
// their fallback rather than an error.
func (s *Store) lookup(key string) (string, bool) {
	var raw string
	err := s.conn.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		s.logger.Printf("Error reading %q, substituting fallback: %v", key, err)
		return "", false
	}
	return raw, true
}

// Get looks up key and unmarshals the stored JSON into T.
//
// If the key is absent, or the stored text does not parse as T, Get
// returns fallback and logs the failure as a non-fatal diagnostic.
// It never returns an error: local reads must not break callers.
func Get[T any](s *Store, key string, fallback T) T {
	raw, ok := s.lookup(key)
	if !ok {
		return fallback
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		s.logger.Printf("Error parsing %q, substituting fallback: %v", key, err)
		return fallback
	}
	return value
}
