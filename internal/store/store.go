package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/splitledger/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is len(migrations). Version 1 added the
// transactions.revision counter.
const currentSchemaVersion = 1

// ErrReadOnly is returned by the backend hooks of a read-only store.
var ErrReadOnly = errors.New("store is read-only")

var (
	_ engine.Journal              = (*Store)(nil)
	_ engine.Backend              = (*Store)(nil)
	_ engine.TransactionDestroyer = (*Store)(nil)
)

// Store provides durable storage for a book's journal and committed
// transactions. Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db       *sql.DB
	readOnly bool
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// ReadOnly makes the backend hooks reject every commit and delete. The
// journal is still written, so rejected edits leave an audit trail.
func ReadOnly() Option {
	return func(s *Store) {
		s.readOnly = true
	}
}

// WithLogger sets the store's logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Open opens the ledger database at path, creating the journal and
// transactions tables on first use. Reopening an existing file is safe.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger database %s: %w", path, err)
	}

	// One connection: pragmas are per-connection and SQLite has one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure ledger database: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare ledger schema: %w", err)
	}

	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for ad hoc queries in tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// IsReadOnly reports whether the backend hooks reject writes.
func (s *Store) IsReadOnly() bool {
	return s.readOnly
}

// JournalClock returns a logical clock positioned at the highest journal
// seq, so a new book continues the sequence without collisions.
func (s *Store) JournalClock(ctx context.Context) (*engine.Clock, error) {
	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM journal`).Scan(&maxSeq); err != nil {
		return nil, fmt.Errorf("journal clock: %w", err)
	}
	return engine.NewClockAt(maxSeq.Int64), nil
}

// connSettings are applied in order on every open. journal_mode must come
// first; the others are per-connection and rely on MaxOpenConns(1).
var connSettings = []struct{ name, value string }{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

func applyPragmas(db *sql.DB) error {
	for _, p := range connSettings {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	return nil
}

// migrations[i] upgrades a database from user_version i to i+1. Fresh
// files get the full schema from schema.sql and only have user_version
// bumped.
var migrations = []func(*sql.DB) error{
	addRevisionColumn,
}

// applySchema is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if err := migrations[v](db); err != nil {
			return fmt.Errorf("migrate %d -> %d: %w", v, v+1, err)
		}
	}
	if version != currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, currentSchemaVersion)); err != nil {
			return fmt.Errorf("write user_version: %w", err)
		}
	}
	return nil
}

// addRevisionColumn covers transactions tables created before revision
// existed. CREATE TABLE IF NOT EXISTS leaves those untouched.
func addRevisionColumn(db *sql.DB) error {
	var present int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('transactions') WHERE name = 'revision'`,
	).Scan(&present); err != nil {
		return err
	}
	if present > 0 {
		return nil
	}
	_, err := db.Exec(`ALTER TABLE transactions ADD COLUMN revision INTEGER NOT NULL DEFAULT 1`)
	return err
}
