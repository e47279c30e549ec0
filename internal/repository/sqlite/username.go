package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

var _ repository.UsernameRepository = (*UsernameDB)(nil)

// UsernameDB is the registry table. Uniqueness rests on the PRIMARY KEY, so
// Reserve needs no application-level locking.
type UsernameDB struct {
	conn *sql.DB
}

// Usernames returns the username registry backed by db.
func (db *DB) Usernames() *UsernameDB {
	return &UsernameDB{conn: db.conn}
}

// Reserve inserts r if r.Username is free.
func (u *UsernameDB) Reserve(ctx context.Context, r *model.Reservation) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO usernames (username, uid, created_at) VALUES (?, ?, ?)`,
		r.Username, r.UID, r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", r.Username)
		}
		return fmt.Errorf("sqlite: reserving username %s: %w", r.Username, err)
	}
	return nil
}

// Lookup returns the reservation for username or apperror.ErrNotFound.
func (u *UsernameDB) Lookup(ctx context.Context, username string) (*model.Reservation, error) {
	var r model.Reservation
	err := u.conn.QueryRowContext(ctx,
		`SELECT username, uid, created_at FROM usernames WHERE username = ?`,
		username,
	).Scan(&r.Username, &r.UID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("username", username)
		}
		return nil, fmt.Errorf("sqlite: looking up username %s: %w", username, err)
	}
	return &r, nil
}

// Release deletes username if uid holds it.
func (u *UsernameDB) Release(ctx context.Context, username, uid string) error {
	result, err := u.conn.ExecContext(ctx,
		`DELETE FROM usernames WHERE username = ? AND uid = ?`,
		username, uid,
	)
	if err != nil {
		return fmt.Errorf("sqlite: releasing username %s: %w", username, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("username", username)
	}
	return nil
}

// ListByUID returns every reservation held by uid, oldest first.
func (u *UsernameDB) ListByUID(ctx context.Context, uid string) ([]model.Reservation, error) {
	rows, err := u.conn.QueryContext(ctx,
		`SELECT username, uid, created_at FROM usernames
		 WHERE uid = ?
		 ORDER BY created_at, username`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing usernames for %s: %w", uid, err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := rows.Scan(&r.Username, &r.UID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning username row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating usernames: %w", err)
	}
	return out, nil
}
