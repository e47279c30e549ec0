package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

var _ repository.LinkRepository = (*LinkRepo)(nil)

// LinkRepo stores every uid's link collection. All statements filter on uid.
type LinkRepo struct{ db *DB }

// NewLinkRepo constructs a LinkRepo.
func NewLinkRepo(db *DB) *LinkRepo { return &LinkRepo{db: db} }

const linkColumns = `id, uid, title, description, url, icon, COALESCE(sort_order, 0), clicks, created_at, updated_at`

// Create assigns l an xid and inserts it.
func (r *LinkRepo) Create(ctx context.Context, l *model.Link) error {
	l.ID = xid.New().String()
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Icon == "" {
		l.Icon = model.IconLink
	}

	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO links (id, uid, title, description, url, icon, sort_order, clicks, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.UID, l.Title, l.Description, l.URL, string(l.Icon), l.Order, l.Clicks, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: creating link for %s: %w", l.UID, err)
	}
	return nil
}

// List returns uid's links sorted by order, then id.
func (r *LinkRepo) List(ctx context.Context, uid string) ([]model.Link, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+linkColumns+` FROM links WHERE uid=$1 ORDER BY COALESCE(sort_order, 0) ASC, id ASC`, uid)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing links for %s: %w", uid, err)
	}
	defer rows.Close()

	links := make([]model.Link, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning link row: %w", err)
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating links: %w", err)
	}
	return links, nil
}

// Get returns one link owned by uid.
func (r *LinkRepo) Get(ctx context.Context, uid, id string) (*model.Link, error) {
	l, err := scanLink(r.db.Pool.QueryRow(ctx,
		`SELECT `+linkColumns+` FROM links WHERE uid=$1 AND id=$2`, uid, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("link", id)
		}
		return nil, fmt.Errorf("postgres: getting link %s: %w", id, err)
	}
	return l, nil
}

// Update writes only the supplied fields of u.
func (r *LinkRepo) Update(ctx context.Context, uid, id string, u model.LinkUpdate) error {
	set := append(repository.LinkAssignments(u),
		repository.Assignment{Column: "updated_at", Value: time.Now().UTC()})
	clause, args := setClause(set)
	n := len(args)
	tag, err := r.db.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE links SET %s WHERE uid=$%d AND id=$%d`, clause, n+1, n+2),
		append(args, uid, id)...)
	return checkAffected(tag, err, "updating", id)
}

// Delete removes one link owned by uid.
func (r *LinkRepo) Delete(ctx context.Context, uid, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM links WHERE uid=$1 AND id=$2`, uid, id)
	return checkAffected(tag, err, "deleting", id)
}

// IncrementClicks bumps the counter in a single statement.
func (r *LinkRepo) IncrementClicks(ctx context.Context, uid, id string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE links SET clicks = clicks + 1 WHERE uid=$1 AND id=$2`, uid, id)
	return checkAffected(tag, err, "counting click on", id)
}

func scanLink(row pgx.Row) (*model.Link, error) {
	var (
		l    model.Link
		icon string
	)
	if err := row.Scan(&l.ID, &l.UID, &l.Title, &l.Description, &l.URL, &icon,
		&l.Order, &l.Clicks, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Icon = model.ParseIcon(icon)
	return &l, nil
}

func checkAffected(tag pgconn.CommandTag, err error, action, id string) error {
	if err != nil {
		return fmt.Errorf("postgres: %s link %s: %w", action, id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("link", id)
	}
	return nil
}
