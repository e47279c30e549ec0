package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

var _ repository.UsernameRepository = (*UsernameRepo)(nil)

// UsernameRepo is the registry table. ON CONFLICT DO NOTHING makes Reserve a
// single conditional create.
type UsernameRepo struct{ db *DB }

// NewUsernameRepo constructs a UsernameRepo.
func NewUsernameRepo(db *DB) *UsernameRepo { return &UsernameRepo{db: db} }

// Reserve inserts r if r.Username is free.
func (r *UsernameRepo) Reserve(ctx context.Context, res *model.Reservation) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO usernames (username, uid, created_at) VALUES ($1, $2, $3) ON CONFLICT (username) DO NOTHING`,
		res.Username, res.UID, res.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("username", res.Username)
		}
		return fmt.Errorf("postgres: reserving username %s: %w", res.Username, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.Conflict("username", res.Username)
	}
	return nil
}

// Lookup returns the reservation for username.
func (r *UsernameRepo) Lookup(ctx context.Context, username string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.Pool.QueryRow(ctx,
		`SELECT username, uid, created_at FROM usernames WHERE username=$1`, username,
	).Scan(&res.Username, &res.UID, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("username", username)
		}
		return nil, fmt.Errorf("postgres: looking up username %s: %w", username, err)
	}
	return &res, nil
}

// Release deletes username if uid holds it.
func (r *UsernameRepo) Release(ctx context.Context, username, uid string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM usernames WHERE username=$1 AND uid=$2`, username, uid)
	if err != nil {
		return fmt.Errorf("postgres: releasing username %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("username", username)
	}
	return nil
}

// ListByUID returns every reservation held by uid, oldest first.
func (r *UsernameRepo) ListByUID(ctx context.Context, uid string) ([]model.Reservation, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT username, uid, created_at FROM usernames WHERE uid=$1 ORDER BY created_at, username`, uid)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing usernames for %s: %w", uid, err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.Username, &res.UID, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning username row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
