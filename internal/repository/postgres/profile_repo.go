package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

var _ repository.ProfileRepository = (*ProfileRepo)(nil)

// ProfileRepo stores one row per uid.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a ProfileRepo.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Create inserts p. A second profile for the same uid fails with AlreadyExists.
func (r *ProfileRepo) Create(ctx context.Context, p *model.Profile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	cols := repository.ProfileInsertColumns
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO profiles (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders(1, len(cols))+`)`,
		repository.ProfileInsertValues(p)...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("profile", p.UID)
		}
		return fmt.Errorf("postgres: creating profile %s: %w", p.UID, err)
	}
	return nil
}

// Get returns the profile for uid.
func (r *ProfileRepo) Get(ctx context.Context, uid string) (*model.Profile, error) {
	var (
		p     model.Profile
		order string
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT `+repository.ProfileColumns+` FROM profiles WHERE uid=$1`, uid,
	).Scan(repository.ProfileScanTargets(&p, &order)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("profile", uid)
		}
		return nil, fmt.Errorf("postgres: getting profile %s: %w", uid, err)
	}
	p.ContactsOrder = repository.DecodeContactsOrder(order)
	return &p, nil
}

// Update writes only the supplied columns of u.
func (r *ProfileRepo) Update(ctx context.Context, uid string, u model.ProfileUpdate) error {
	set := append(repository.ProfileAssignments(u),
		repository.Assignment{Column: "updated_at", Value: time.Now().UTC()})
	return r.exec(ctx, uid, set)
}

// SetUsername records the active username on the profile.
func (r *ProfileRepo) SetUsername(ctx context.Context, uid, username string) error {
	return r.exec(ctx, uid, []repository.Assignment{
		{Column: "username", Value: username},
		{Column: "updated_at", Value: time.Now().UTC()},
	})
}

func (r *ProfileRepo) exec(ctx context.Context, uid string, set []repository.Assignment) error {
	clause, args := setClause(set)
	tag, err := r.db.Pool.Exec(ctx,
		fmt.Sprintf(`UPDATE profiles SET %s WHERE uid=$%d`, clause, len(args)+1),
		append(args, uid)...)
	if err != nil {
		return fmt.Errorf("postgres: updating profile %s: %w", uid, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("profile", uid)
	}
	return nil
}
