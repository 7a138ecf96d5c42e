// Package store provides jobman's durable record of Jobs and Runs: a
// WAL-journaled, foreign-key-enforcing SQLite database, schema-managed by
// embedded goose migrations. Grounded on
// rezkam-mono/internal/storage/sql/connection.go's NewSQLiteStore, which
// opens modernc.org/sqlite with the same pragma set
// (_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on) and runs goose
// migrations from an embedded FS before returning a usable store.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store is jobman's handle on the embedded database. GetJob, ListJobs and
// DeleteJobCascade scope their queries to a single host_id; the Run
// queries and the Job updates are keyed by job_id alone and do not filter
// by host.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and brings
// its schema up to date. Schema initialization is idempotent: calling Open
// repeatedly against the same path is safe and cheap once migrations have
// been applied.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)&_pragma=cache_size(-64000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "open store")
	}
	// SQLite allows only a single writer; keep the pool to one connection so
	// WAL-mode locking (not an in-process pool) is what serializes writers
	// across jobman invocations.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "ping store")
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, jobmanerr.Wrap(jobmanerr.Internal, err, "migrate store")
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers (e.g. tests) that need raw
// access.
func (s *Store) DB() *sql.DB {
	return s.db
}
