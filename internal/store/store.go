// Package store implements the Conversation/Request store (spec.md §4.5):
// a single SQLite file, WAL-journaled, holding conversations, messages,
// and requests. It is safe for many concurrent callers within one process.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB opened against one SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path, enables WAL
// journaling and a busy timeout so concurrent writers back off instead of
// failing outright (spec.md §4.5: "a writer may briefly block another
// writer"), and creates the schema if it does not already exist.
//
// First-run schema creation is not the "schema migration tooling" the
// spec's Non-goals excludes — there is exactly one schema version, and no
// up/down migration path is offered across versions (SPEC_FULL.md §6.5).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// A single shared connection avoids SQLITE_BUSY from this process's
	// own concurrent writers; WAL still lets concurrent readers proceed.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy_timeout: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-process, non-persistent store for tests.
func OpenMemory() (*Store, error) {
	return Open("file::memory:?cache=shared")
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the underlying database handle is still usable,
// for the health tool's storeOpen field.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration statement: %w", err)
		}
	}
	return nil
}
