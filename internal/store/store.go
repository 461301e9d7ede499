package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Postgres driver, registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store holds the database handle and provides access to repositories.
type Store struct {
	db      *sql.DB
	drv     *entsql.Driver
	dialect string
	seq     *sequenceCounter
}

// Open creates a new Store. A postgres:// or postgresql:// dsn connects to
// Postgres; anything else is treated as a SQLite path or URI, which gets the
// recommended pragmas. The schema is migrated on open.
func Open(dsn string) (*Store, error) {
	driverName, dialectName := "sqlite", dialect.SQLite
	if isPostgres(dsn) {
		driverName, dialectName = "pgx", dialect.Postgres
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialectName == dialect.SQLite {
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		drv:     entsql.OpenDB(dialectName, db),
		dialect: dialectName,
		seq:     seq,
	}, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the ent dialect name of the connection.
func (s *Store) Dialect() string {
	return s.dialect
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.drv.Close()
}

// ItemRepo returns an ItemRepo backed by this store.
func (s *Store) ItemRepo() ItemRepo {
	return &itemRepo{drv: s.drv}
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{drv: s.drv, seq: s.seq}
}

// schema is valid for both SQLite and Postgres. Timestamps are unix millis.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		cell TEXT NOT NULL,
		text TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		answer_key TEXT NOT NULL,
		expected_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
		exposure_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS items_topic ON items (topic)`,
	`CREATE TABLE IF NOT EXISTS session_events (
		sequence BIGINT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		session_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		action TEXT NOT NULL,
		blocks_completed INTEGER NOT NULL DEFAULT 0,
		answered INTEGER NOT NULL DEFAULT 0,
		correct INTEGER NOT NULL DEFAULT 0,
		ability INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS block_events (
		sequence BIGINT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		session_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		block_index INTEGER NOT NULL,
		target_difficulty INTEGER NOT NULL,
		margin INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		item_ids TEXT NOT NULL,
		insufficient BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answer_events (
		sequence BIGINT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		session_id TEXT NOT NULL,
		attempt INTEGER NOT NULL,
		block_index INTEGER NOT NULL,
		item_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		cell TEXT NOT NULL,
		difficulty INTEGER NOT NULL,
		user_answer TEXT NOT NULL,
		correct BOOLEAN NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS answer_events_topic ON answer_events (topic)`,
}

// migrate applies the idempotent schema.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. QUANTIZ_DB environment variable
// 2. $XDG_DATA_HOME/quantiz/quantiz.db
// 3. ~/.local/share/quantiz/quantiz.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("QUANTIZ_DB"); p != "" {
		if isPostgres(p) {
			return p, nil
		}
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "quantiz", "quantiz.db")
	return p, ensureDir(p)
}

// EnsureDir creates the parent directory of a SQLite path. Postgres DSNs
// and in-memory URIs are left alone.
func EnsureDir(dsn string) error {
	if isPostgres(dsn) || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	return ensureDir(dsn)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
