package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

var _ repository.ProfileRepository = (*ProfileDB)(nil)

// ProfileDB stores one row per uid.
type ProfileDB struct {
	conn *sql.DB
}

// Profiles returns the profile store backed by db.
func (db *DB) Profiles() *ProfileDB {
	return &ProfileDB{conn: db.conn}
}

// Create inserts p. A second profile for the same uid fails with AlreadyExists.
func (s *ProfileDB) Create(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	cols := repository.ProfileInsertColumns
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO profiles (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders+`)`,
		repository.ProfileInsertValues(p)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("profile", p.UID)
		}
		return fmt.Errorf("sqlite: creating profile %s: %w", p.UID, err)
	}
	return nil
}

// Get returns the profile for uid or apperror.ErrNotFound.
func (s *ProfileDB) Get(ctx context.Context, uid string) (*model.Profile, error) {
	var (
		p     model.Profile
		order string
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT `+repository.ProfileColumns+` FROM profiles WHERE uid = ?`,
		uid,
	).Scan(repository.ProfileScanTargets(&p, &order)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", uid)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", uid, err)
	}
	p.ContactsOrder = repository.DecodeContactsOrder(order)
	return &p, nil
}

// Update merges u into the stored profile. Only the supplied columns are
// written, so concurrent updates to different fields both survive.
func (s *ProfileDB) Update(ctx context.Context, uid string, u model.ProfileUpdate) error {
	set := append(repository.ProfileAssignments(u),
		repository.Assignment{Column: "updated_at", Value: time.Now().UTC()})
	return s.exec(ctx, uid, set)
}

// SetUsername records the active username on the profile.
func (s *ProfileDB) SetUsername(ctx context.Context, uid, username string) error {
	return s.exec(ctx, uid, []repository.Assignment{
		{Column: "username", Value: username},
		{Column: "updated_at", Value: time.Now().UTC()},
	})
}

func (s *ProfileDB) exec(ctx context.Context, uid string, set []repository.Assignment) error {
	clause, args := setClause(set)
	result, err := s.conn.ExecContext(ctx,
		`UPDATE profiles SET `+clause+` WHERE uid = ?`,
		append(args, uid)...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", uid, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("profile", uid)
	}
	return nil
}
