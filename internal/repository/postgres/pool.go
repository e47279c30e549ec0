// Package postgres implements the repository interfaces on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/linkbio/internal/repository"
)

// PgxPool is the subset of a connection pool the repositories use. It is
// implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// DB wraps the pool so tests can substitute pgxmock.
type DB struct{ Pool PgxPool }

// New creates a connection pool for dsn and verifies it with a ping.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Store returns every repository backed by db.
func (db *DB) Store() repository.Store {
	return repository.Store{
		Usernames:   NewUsernameRepo(db),
		Profiles:    NewProfileRepo(db),
		Links:       NewLinkRepo(db),
		Credentials: NewCredentialRepo(db),
	}
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// setClause renders assignments as "col=$1, col=$2" and returns the args.
// The next free placeholder index is len(args)+1.
func setClause(set []repository.Assignment) (string, []any) {
	parts := make([]string, len(set))
	args := make([]any, len(set))
	for i, a := range set {
		parts[i] = fmt.Sprintf("%s=$%d", a.Column, i+1)
		args[i] = a.Value
	}
	return strings.Join(parts, ", "), args
}

func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}
