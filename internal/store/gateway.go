package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	amerrors "github.com/PLeVasseur/iso26262-retrieval/internal/errors"
)

// Store is typed read/write access to the chunk store over a single SQLite
// connection.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if absent) the chunk store at path and configures
// write-ahead logging with normal-level durability, a 5 s busy timeout, and
// foreign-key enforcement. Pass "" for an in-memory store (tests, standalone
// tooling).
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, amerrors.New(amerrors.ErrCodeStoreOpen,
					fmt.Sprintf("create chunk store directory %s", dir), err)
			}
		}
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, amerrors.New(amerrors.ErrCodeStoreOpen,
			fmt.Sprintf("open chunk store %s", path), err)
	}

	// One writer per run: the core assumes no external concurrent writers
	// during an embedding run (§5).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, amerrors.New(amerrors.ErrCodeStoreOpen,
				fmt.Sprintf("set pragma %q on chunk store %s", pragma, path), err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the chunk/node/embedding tables and indexes if absent.
// Ingestion populates them; the gateway owns schema creation so the module
// is runnable standalone for tests and manifests.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return amerrors.New(amerrors.ErrCodeStoreSchema, "create chunk store schema", err)
	}
	return nil
}

// DB exposes the underlying connection, e.g. for tests that seed rows
// directly. The lexical and semantic indexes do not use it; they are built
// in memory from fetched rows.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the chunk store's file path ("" for an in-memory store).
func (s *Store) Path() string {
	return s.path
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return amerrors.New(amerrors.ErrCodeStoreRead, "close chunk store", err)
	}
	return nil
}
