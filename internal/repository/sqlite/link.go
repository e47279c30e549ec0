package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

var _ repository.LinkRepository = (*LinkDB)(nil)

// LinkDB stores every uid's link collection in one table. All queries filter
// on uid, so an id belonging to someone else is reported as not found.
type LinkDB struct {
	conn *sql.DB
}

// Links returns the link store backed by db.
func (db *DB) Links() *LinkDB {
	return &LinkDB{conn: db.conn}
}

const linkColumns = `id, uid, title, description, url, icon, COALESCE(sort_order, 0), clicks, created_at, updated_at`

// Create assigns l an xid and inserts it. l.Order is stored as given.
func (s *LinkDB) Create(ctx context.Context, l *model.Link) error {
	l.ID = xid.New().String()
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Icon == "" {
		l.Icon = model.IconLink
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO links (id, uid, title, description, url, icon, sort_order, clicks, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UID, l.Title, l.Description, l.URL, string(l.Icon),
		l.Order, l.Clicks, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating link for %s: %w", l.UID, err)
	}
	return nil
}

// List returns uid's links sorted by order, then id. A missing order sorts as 0.
func (s *LinkDB) List(ctx context.Context, uid string) ([]model.Link, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+linkColumns+` FROM links
		 WHERE uid = ?
		 ORDER BY COALESCE(sort_order, 0) ASC, id ASC`,
		uid,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing links for %s: %w", uid, err)
	}
	defer rows.Close()

	links := make([]model.Link, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning link row: %w", err)
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating links: %w", err)
	}
	return links, nil
}

// Get returns one link owned by uid.
func (s *LinkDB) Get(ctx context.Context, uid, id string) (*model.Link, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM links WHERE uid = ? AND id = ?`,
		uid, id,
	)
	l, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("link", id)
		}
		return nil, fmt.Errorf("sqlite: getting link %s: %w", id, err)
	}
	return l, nil
}

// Update writes only the supplied fields of u.
func (s *LinkDB) Update(ctx context.Context, uid, id string, u model.LinkUpdate) error {
	set := append(repository.LinkAssignments(u),
		repository.Assignment{Column: "updated_at", Value: time.Now().UTC()})
	clause, args := setClause(set)
	result, err := s.conn.ExecContext(ctx,
		`UPDATE links SET `+clause+` WHERE uid = ? AND id = ?`,
		append(args, uid, id)...,
	)
	return checkAffected(result, err, "updating", id)
}

// Delete removes one link owned by uid.
func (s *LinkDB) Delete(ctx context.Context, uid, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM links WHERE uid = ? AND id = ?`,
		uid, id,
	)
	return checkAffected(result, err, "deleting", id)
}

// IncrementClicks bumps the counter in place; concurrent clicks never lose a count.
func (s *LinkDB) IncrementClicks(ctx context.Context, uid, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE links SET clicks = clicks + 1 WHERE uid = ? AND id = ?`,
		uid, id,
	)
	return checkAffected(result, err, "counting click on", id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(row scanner) (*model.Link, error) {
	var (
		l    model.Link
		icon string
	)
	if err := row.Scan(
		&l.ID, &l.UID, &l.Title, &l.Description, &l.URL, &icon,
		&l.Order, &l.Clicks, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Icon = model.ParseIcon(icon)
	return &l, nil
}

func checkAffected(result sql.Result, err error, action, id string) error {
	if err != nil {
		return fmt.Errorf("sqlite: %s link %s: %w", action, id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("link", id)
	}
	return nil
}
