package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrTxnClosed is returned by any Txn method called after Commit or Abort.
var ErrTxnClosed = errors.New("store: transaction already closed")

// Txn is a single writer transaction against the fingerprint table. The
// orchestrator opens exactly one Txn per build run: every fingerprint
// read and write for that run goes through it, and its Commit is the
// single atomic point at which the run's fingerprints become durable —
// a crash before Commit leaves the store exactly as it was before the
// run started.
type Txn struct {
	tx     *sql.Tx
	runID  uuid.UUID
	closed bool
}

// Begin starts a new Txn against the writer connection, stamped with a
// fresh run ID. The run ID has no effect on fingerprint semantics; it
// exists purely for log correlation.
func (s *Store) Begin() (*Txn, error) {
	tx, err := s.writer.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	return &Txn{tx: tx, runID: uuid.New()}, nil
}

// RunID returns this transaction's diagnostic run identifier.
func (t *Txn) RunID() string {
	return t.runID.String()
}

// Get returns the persisted content hash for key, and ok=false if no
// fingerprint row exists for it (the item is new, or was previously
// deleted, or the store was cleared by a schema-version mismatch).
func (t *Txn) Get(key string) (digest string, ok bool, err error) {
	if t.closed {
		return "", false, ErrTxnClosed
	}
	row := t.tx.QueryRow("SELECT content_hash FROM fingerprints WHERE item_key = ?", key)
	err = row.Scan(&digest)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get fingerprint %s: %w", key, err)
	}
	return digest, true, nil
}

// Upsert records digest as the current content hash for key, stamped
// with schemaVersion. schemaVersion is fixed per Store (see
// reconcileSchemaVersion); it is written on every row so a later schema
// bump can be detected even if only some items were rebuilt since.
func (t *Txn) Upsert(key, digest string, schemaVersion int) error {
	if t.closed {
		return ErrTxnClosed
	}
	_, err := t.tx.Exec(
		`INSERT INTO fingerprints (item_key, content_hash, schema_version)
		 VALUES (?, ?, ?)
		 ON CONFLICT(item_key) DO UPDATE SET content_hash = excluded.content_hash, schema_version = excluded.schema_version`,
		key, digest, schemaVersion,
	)
	if err != nil {
		return fmt.Errorf("store: upsert fingerprint %s: %w", key, err)
	}
	return nil
}

// SetOutputPaths records the set of output file paths key's item produced
// this run, so a later run in which key disappears from the discovered
// set can find and delete those files during deletion-reconciliation.
// Call Upsert first to ensure the row exists.
func (t *Txn) SetOutputPaths(key string, paths []string) error {
	if t.closed {
		return ErrTxnClosed
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("store: marshal output paths for %s: %w", key, err)
	}
	if _, err := t.tx.Exec("UPDATE fingerprints SET output_paths = ? WHERE item_key = ?", string(data), key); err != nil {
		return fmt.Errorf("store: set output paths %s: %w", key, err)
	}
	return nil
}

// OutputPaths returns the output file paths last recorded for key, or nil
// if key has no fingerprint row or never had any recorded.
func (t *Txn) OutputPaths(key string) ([]string, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	var data string
	row := t.tx.QueryRow("SELECT output_paths FROM fingerprints WHERE item_key = ?", key)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get output paths %s: %w", key, err)
	}
	if data == "" {
		return nil, nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(data), &paths); err != nil {
		return nil, fmt.Errorf("store: unmarshal output paths %s: %w", key, err)
	}
	return paths, nil
}

// Delete removes the fingerprint row for key, used when the orchestrator's
// deletion-reconciliation phase finds a source item that no longer
// exists on disk.
func (t *Txn) Delete(key string) error {
	if t.closed {
		return ErrTxnClosed
	}
	if _, err := t.tx.Exec("DELETE FROM fingerprints WHERE item_key = ?", key); err != nil {
		return fmt.Errorf("store: delete fingerprint %s: %w", key, err)
	}
	return nil
}

// Keys returns every item key currently in the fingerprint table, for the
// deletion-reconciliation phase to diff against the discovered item set.
func (t *Txn) Keys() ([]string, error) {
	if t.closed {
		return nil, ErrTxnClosed
	}
	rows, err := t.tx.Query("SELECT item_key FROM fingerprints")
	if err != nil {
		return nil, fmt.Errorf("store: list fingerprint keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("store: scan fingerprint key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Commit persists every Get/Upsert/Delete made on this Txn.
func (t *Txn) Commit() error {
	if t.closed {
		return ErrTxnClosed
	}
	t.closed = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Abort rolls back every Get/Upsert/Delete made on this Txn. It is safe
// to call Abort after Commit has already succeeded; it is then a no-op.
func (t *Txn) Abort() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("store: abort: %w", err)
	}
	return nil
}
