// Package sqlite implements the repository interfaces on an embedded SQLite
// database.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary builds without CGo and
// cross-compiles like any other Go program. The blank-import registers the
// "sqlite" driver with database/sql.
//
// The three logical collections map onto tables:
//
//	usernames   username (PK) → uid
//	profiles    uid (PK)      → profile fields, one column per contact channel
//	links       id (PK)       → link fields, scoped by uid
//
// plus credentials for local email/password logins.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// DB wraps a sql.DB connection pool. The per-collection repositories share it.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/linkbio.db" → file-based database (persistent)
//   - ":memory:"        → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every pooled connection to ":memory:" is its own empty database, so the
	// pool is pinned to a single connection.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Store returns every repository backed by db.
func (db *DB) Store() repository.Store {
	return repository.Store{
		Usernames:   db.Usernames(),
		Profiles:    db.Profiles(),
		Links:       db.Links(),
		Credentials: db.Credentials(),
	}
}

// migrate creates the schema. Every statement is idempotent, so it runs on
// each start.
//
// profiles has no foreign key to usernames: the registry is a weak index and
// a reservation may exist without a profile (and, after a rename, a profile
// keeps only its newest reservation).
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS usernames (
			username   TEXT PRIMARY KEY,
			uid        TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_usernames_uid ON usernames(uid);
	`)
	if err != nil {
		return fmt.Errorf("creating usernames table: %w", err)
	}

	var contactCols strings.Builder
	for _, ch := range model.DefaultContactOrder {
		fmt.Fprintf(&contactCols, "\t\t\t%s TEXT NOT NULL DEFAULT '',\n", repository.ContactColumn(ch))
	}
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			uid            TEXT PRIMARY KEY,
			username       TEXT NOT NULL DEFAULT '',
			display_name   TEXT NOT NULL DEFAULT '',
			bio            TEXT NOT NULL DEFAULT '',
			location       TEXT NOT NULL DEFAULT '',
			photo          TEXT NOT NULL DEFAULT '',
` + contactCols.String() + `
			contacts_order TEXT,
			provider       TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS links (
			id          TEXT PRIMARY KEY,
			uid         TEXT NOT NULL,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL,
			icon        TEXT NOT NULL DEFAULT 'link',
			sort_order  INTEGER,
			clicks      INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_links_uid_order ON links(uid, sort_order, id);
	`)
	if err != nil {
		return fmt.Errorf("creating links table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS credentials (
			email         TEXT PRIMARY KEY,
			uid           TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating credentials table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a PRIMARY KEY or UNIQUE failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// setClause renders assignments as "col = ?, col = ?" and returns the args.
func setClause(set []repository.Assignment) (string, []any) {
	parts := make([]string, len(set))
	args := make([]any, len(set))
	for i, a := range set {
		parts[i] = a.Column + " = ?"
		args[i] = a.Value
	}
	return strings.Join(parts, ", "), args
}
