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

var _ repository.CredentialRepository = (*CredentialDB)(nil)

// CredentialDB stores local email/password logins.
type CredentialDB struct {
	conn *sql.DB
}

// Credentials returns the credential store backed by db.
func (db *DB) Credentials() *CredentialDB {
	return &CredentialDB{conn: db.conn}
}

// Create inserts c. Emails are unique.
func (s *CredentialDB) Create(ctx context.Context, c *model.Credential) error {
	c.CreatedAt = time.Now().UTC()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO credentials (email, uid, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		c.Email, c.UID, c.PasswordHash, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyExists("account", c.Email)
		}
		return fmt.Errorf("sqlite: creating credential: %w", err)
	}
	return nil
}

// GetByEmail returns the credential registered for email.
func (s *CredentialDB) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	var c model.Credential
	err := s.conn.QueryRowContext(ctx,
		`SELECT email, uid, password_hash, created_at FROM credentials WHERE email = ?`,
		email,
	).Scan(&c.Email, &c.UID, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("account", email)
		}
		return nil, fmt.Errorf("sqlite: getting credential: %w", err)
	}
	return &c, nil
}
