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

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// CredentialRepo stores local email/password logins.
type CredentialRepo struct{ db *DB }

// NewCredentialRepo constructs a CredentialRepo.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Create inserts c. Emails are unique.
func (r *CredentialRepo) Create(ctx context.Context, c *model.Credential) error {
	c.CreatedAt = time.Now().UTC()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO credentials (email, uid, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		c.Email, c.UID, c.PasswordHash, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("account", c.Email)
		}
		return fmt.Errorf("postgres: creating credential: %w", err)
	}
	return nil
}

// GetByEmail returns the credential registered for email.
func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var c model.Credential
	err := r.db.Pool.QueryRow(ctx,
		`SELECT email, uid, password_hash, created_at FROM credentials WHERE email=$1`, email,
	).Scan(&c.Email, &c.UID, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("postgres: getting credential: %w", err)
	}
	return &c, nil
}
