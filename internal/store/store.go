// Package store implements the Fingerprint Store: a durable, transactional
// key/value mapping from item-key to content hash. It is the only
// component in kiln with durable state; every other component's view of
// the world is reconstructed fresh on each run.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// ErrLocked is returned by Open when another process already holds the
// store's exclusive lock.
var ErrLocked = errors.New("store: locked by another run")

const lockFilename = "kiln.lock"

// Store provides a SQLite-backed persistence layer for the fingerprint
// table. It uses a two-connection pattern: a single writer connection
// with MaxOpenConns=1 for serialised writes, and a separate reader pool
// for concurrent plain reads outside a transaction (e.g. All).
type Store struct {
	writer    *sql.DB
	reader    *sql.DB
	path      string
	lockPath  string
	lockFile  *os.File
	closeOnce sync.Once
}

// Open creates or opens a Store backed by the SQLite database at path. It
// acquires the store's process-wide exclusive lock, creates the parent
// directory if needed, enables WAL mode, and runs all pending migrations.
//
// schemaVersion is the fingerprint-row schema version this binary expects
// (see CurrentSchemaVersion doc). If the store was last written by a
// different schema version, every fingerprint row is treated as absent —
// equivalent to --clean semantics for the fingerprint table only.
func Open(path string, schemaVersion int) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}

	lockPath := filepath.Join(dir, lockFilename)
	lockFile, err := acquireLock(lockPath)
	if err != nil {
		return nil, err
	}

	writerDSN := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	writer, err := sql.Open("sqlite", writerDSN)
	if err != nil {
		releaseLock(lockFile, lockPath)
		return nil, fmt.Errorf("store: open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	if err := writer.Ping(); err != nil {
		writer.Close()
		releaseLock(lockFile, lockPath)
		return nil, fmt.Errorf("store: ping writer: %w", err)
	}

	readerDSN := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=query_only(ON)"
	reader, err := sql.Open("sqlite", readerDSN)
	if err != nil {
		writer.Close()
		releaseLock(lockFile, lockPath)
		return nil, fmt.Errorf("store: open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	reader.SetMaxIdleConns(4)
	reader.SetConnMaxLifetime(0)

	if err := reader.Ping(); err != nil {
		writer.Close()
		reader.Close()
		releaseLock(lockFile, lockPath)
		return nil, fmt.Errorf("store: ping reader: %w", err)
	}

	s := &Store{
		writer:   writer,
		reader:   reader,
		path:     path,
		lockPath: lockPath,
		lockFile: lockFile,
	}

	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	if err := s.reconcileSchemaVersion(schemaVersion); err != nil {
		s.Close()
		return nil, fmt.Errorf("store: reconcile schema version: %w", err)
	}

	return s, nil
}

// Clean removes every fingerprint row, equivalent to the --clean CLI flag.
// The caller is responsible for also wiping the output tree.
func (s *Store) Clean() error {
	_, err := s.writer.Exec("DELETE FROM fingerprints")
	if err != nil {
		return fmt.Errorf("store: clean: %w", err)
	}
	log.Info().Msg("store: fingerprint table cleared")
	return nil
}

// reconcileSchemaVersion compares the schema version stamped on existing
// fingerprint rows against the expected version. If they differ for any
// row, the whole fingerprint table is cleared: every item is then
// directly dirty on this run, which is the required behavior for a
// schema mismatch.
func (s *Store) reconcileSchemaVersion(expected int) error {
	var stored, storedMax sql.NullInt64
	err := s.writer.QueryRow("SELECT MIN(schema_version), MAX(schema_version) FROM fingerprints").Scan(&stored, &storedMax)
	if err != nil {
		return err
	}
	if !stored.Valid {
		// No rows yet; nothing to reconcile.
		return nil
	}
	if stored.Int64 == int64(expected) && storedMax.Int64 == int64(expected) {
		return nil
	}
	log.Warn().
		Int64("stored_schema_version", stored.Int64).
		Int("expected_schema_version", expected).
		Msg("store: schema version mismatch, clearing fingerprints (full rebuild)")
	return s.Clean()
}

// Close closes both database connections and releases the store lock. It
// is safe to call Close multiple times.
func (s *Store) Close() error {
	var firstErr error
	s.closeOnce.Do(func() {
		if s.writer != nil {
			if err := s.writer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if s.reader != nil {
			if err := s.reader.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		releaseLock(s.lockFile, s.lockPath)
	})
	return firstErr
}

// Path returns the filesystem path of the database.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies that both the writer and reader database connections are
// alive.
func (s *Store) Ping() error {
	if err := s.writer.Ping(); err != nil {
		return fmt.Errorf("store: writer ping: %w", err)
	}
	if err := s.reader.Ping(); err != nil {
		return fmt.Errorf("store: reader ping: %w", err)
	}
	return nil
}

// All returns every persisted fingerprint row (item-key → content hash),
// read through the reader pool outside any transaction. The orchestrator's
// deletion-reconciliation phase uses Txn.Keys instead.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.reader.Query("SELECT item_key, content_hash FROM fingerprints")
	if err != nil {
		return nil, fmt.Errorf("store: list fingerprints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("store: scan fingerprint row: %w", err)
		}
		out[key] = hash
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list fingerprints iteration: %w", err)
	}
	return out, nil
}

func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("store: acquire lock %s: %w", path, err)
	}
	fmt.Fprintf(f, "pid=%d locked_at=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return f, nil
}

func releaseLock(f *os.File, path string) {
	if f != nil {
		f.Close()
	}
	os.Remove(path)
}
