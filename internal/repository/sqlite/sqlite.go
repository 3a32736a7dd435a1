// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database. It lives inside the Go binary and keeps
// everything in a single file, with no server to install or manage. For a
// todo service running on one machine that is all the database we need, and
// ":memory:" gives every test its own throwaway instance.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means a C compiler at build time and
// painful cross-compilation. modernc.org/sqlite is a pure Go translation of
// SQLite, so `go build` is all it takes.
//
// SCHEMA OVERVIEW:
//
//	users      one row per account
//	todos      one row per todo, owner_id → users.id
//	todo_tags  one row per (todo, tag), ordered by position
//
// Tags get their own table instead of a JSON column so that "has tag X"
// is an indexed equality lookup rather than a string scan.
//
// CASE-INSENSITIVE MATCHING:
// SQLite's LOWER() and LIKE only fold ASCII. To agree with the Go side
// (search.Match) on every input, we store a folded copy of the text and of
// each tag, computed in Go with search.Fold, and compare against those.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// BLANK IMPORT:
	// `_ "modernc.org/sqlite"` runs the driver's init(), which registers it
	// with database/sql under the name "sqlite". After this import,
	// sql.Open("sqlite", ...) knows how to talk to SQLite.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/todos.db" → file-based database (persistent)
//   - ":memory:"      → in-memory database (tests; lost on close)
//
// CONNECTION POOL:
// sql.Open() does NOT open a connection, it only creates the pool manager.
// We Ping right away so a bad path or permissions problem fails at startup
// instead of on the first request.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// ":memory:" is per CONNECTION, not per pool. With more than one open
	// connection, each would see its own empty database and half our
	// queries would fail with "no such table". One connection keeps the
	// whole pool on the same in-memory database.
	if isMemory(dbPath) {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// PRAGMA STATEMENTS:
	// WAL lets readers proceed while a write is in progress, which matters
	// for a web server where list requests and edits interleave.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The PRAGMA is per
	// connection, so the todo and tag deletes below do not rely on
	// ON DELETE CASCADE; it is a second line of defence.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func isMemory(dbPath string) bool {
	return dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database file is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS and addColumnIfNotExists make every step
// idempotent, so migrate runs on every start (and from the `migrate`
// subcommand) without tracking which steps already ran.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL DEFAULT '',
			email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
			password_hash TEXT NOT NULL DEFAULT '',
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			profile_image TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS todos (
			id          TEXT PRIMARY KEY,
			owner_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text        TEXT NOT NULL,
			text_folded TEXT NOT NULL,
			completed   INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_todos_owner_created ON todos(owner_id, created_at);

		CREATE TABLE IF NOT EXISTS todo_tags (
			todo_id    TEXT NOT NULL REFERENCES todos(id) ON DELETE CASCADE,
			position   INTEGER NOT NULL,
			tag        TEXT NOT NULL,
			tag_folded TEXT NOT NULL,
			PRIMARY KEY (todo_id, position)
		);
		CREATE INDEX IF NOT EXISTS idx_todo_tags_folded ON todo_tags(tag_folded, todo_id);
	`)
	if err != nil {
		return fmt.Errorf("creating todos tables: %w", err)
	}

	// GitHub sign-in came after password accounts. ALTER TABLE cannot add a
	// UNIQUE column, so uniqueness lives in a separate index. NULLs never
	// collide in a unique index, which is exactly what unlinked accounts need.
	if err := db.addColumnIfNotExists("users", "github_id", "INTEGER"); err != nil {
		return fmt.Errorf("adding github_id to users: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id ON users(github_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users github_id index: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent — safe to run multiple times.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// The driver exposes the SQLite result code, but matching the message keeps
// us off its internal error types.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
