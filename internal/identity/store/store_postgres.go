package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"mindwell/internal/identity"
	"mindwell/pkg/platform/sentinel"
)

// PostgresIdentityStore persists identities in PostgreSQL. Pure I/O; lockout
// policy values (threshold, window) are passed in by the service.
type PostgresIdentityStore struct {
	db *sql.DB
}

func NewPostgresIdentityStore(db *sql.DB) *PostgresIdentityStore {
	return &PostgresIdentityStore{db: db}
}

const identityColumns = `id, email, password_hash, role, full_name, license_number, verified,
	failed_attempts, locked_until, last_login_at, created_at`

func (s *PostgresIdentityStore) Create(ctx context.Context, ident *identity.Identity) error {
	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		ident.ID, strings.ToLower(ident.Email), ident.PasswordHash, string(ident.Role),
		ident.FullName, ident.LicenseNumber, ident.Verified,
		ident.FailedAttempts, ident.LockedUntil, ident.LastLoginAt, ident.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrDuplicate
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (s *PostgresIdentityStore) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = $1`
	return scanIdentity(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

func (s *PostgresIdentityStore) FindByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return scanIdentity(s.db.QueryRowContext(ctx, query, id))
}

// RecordLoginFailure is a single statement so concurrent failed logins cannot
// race past the threshold: the increment and the post-increment comparison
// happen inside the one UPDATE.
func (s *PostgresIdentityStore) RecordLoginFailure(ctx context.Context, id uuid.UUID, now time.Time, threshold int, lockFor time.Duration) (*identity.Identity, error) {
	query := `
		UPDATE identities
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE
		        WHEN failed_attempts + 1 >= $2 THEN $3
		        ELSE locked_until
		    END
		WHERE id = $1
		RETURNING ` + identityColumns + `
	`
	return scanIdentity(s.db.QueryRowContext(ctx, query, id, threshold, now.Add(lockFor)))
}

func (s *PostgresIdentityStore) ResetLoginFailures(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE identities
		SET failed_attempts = 0, locked_until = NULL, last_login_at = $2
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("reset login failures: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresIdentityStore) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE identities SET verified = $2 WHERE id = $1`, id, verified)
	if err != nil {
		return fmt.Errorf("set verified: %w", err)
	}
	return requireRow(result)
}

// PostgresRefreshTokenStore persists refresh-token hashes.
type PostgresRefreshTokenStore struct {
	db *sql.DB
}

func NewPostgresRefreshTokenStore(db *sql.DB) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{db: db}
}

func (s *PostgresRefreshTokenStore) Create(ctx context.Context, rec *identity.RefreshTokenRecord) error {
	query := `
		INSERT INTO refresh_tokens (token_hash, identity_id, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, rec.TokenHash, rec.IdentityID, rec.ExpiresAt, rec.RevokedAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func (s *PostgresRefreshTokenStore) FindValid(ctx context.Context, tokenHash string, now time.Time) (*identity.RefreshTokenRecord, error) {
	query := `
		SELECT token_hash, identity_id, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
	`
	var rec identity.RefreshTokenRecord
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tokenHash, now).
		Scan(&rec.TokenHash, &rec.IdentityID, &rec.ExpiresAt, &revokedAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}

func (s *PostgresRefreshTokenStore) RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID, now time.Time) (int, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE identity_id = $1 AND revoked_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, identityID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens rows affected: %w", err)
	}
	return int(rows), nil
}

type identityRow interface {
	Scan(dest ...any) error
}

func scanIdentity(row identityRow) (*identity.Identity, error) {
	var ident identity.Identity
	var role string
	var lockedUntil, lastLoginAt sql.NullTime
	err := row.Scan(
		&ident.ID, &ident.Email, &ident.PasswordHash, &role, &ident.FullName,
		&ident.LicenseNumber, &ident.Verified, &ident.FailedAttempts,
		&lockedUntil, &lastLoginAt, &ident.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}
	ident.Role = identity.Role(role)
	if lockedUntil.Valid {
		ident.LockedUntil = &lockedUntil.Time
	}
	if lastLoginAt.Valid {
		ident.LastLoginAt = &lastLoginAt.Time
	}
	return &ident, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
