// Package store defines persistence for identities and refresh tokens.
// Stores are interface-driven so the services can be tested against the
// in-memory implementation without a live database.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mindwell/internal/identity"
)

// Error contract: implementations return sentinel.ErrNotFound for missing
// rows and sentinel.ErrDuplicate for unique-constraint violations; anything
// else is an infrastructure failure wrapped with context.
type IdentityStore interface {
	Create(ctx context.Context, ident *identity.Identity) error
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error)

	// RecordLoginFailure increments the failed-attempt counter and, in the
	// same atomic write, sets lockedUntil when the post-increment count
	// reaches the threshold. Returns the updated identity so the caller can
	// see whether this failure triggered the lock.
	RecordLoginFailure(ctx context.Context, id uuid.UUID, now time.Time, threshold int, lockFor time.Duration) (*identity.Identity, error)

	// ResetLoginFailures clears the counter and lock and stamps lastLoginAt.
	ResetLoginFailures(ctx context.Context, id uuid.UUID, now time.Time) error

	SetVerified(ctx context.Context, id uuid.UUID, verified bool) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, rec *identity.RefreshTokenRecord) error

	// FindValid returns the record for tokenHash only if it is unrevoked and
	// unexpired at now; otherwise sentinel.ErrNotFound.
	FindValid(ctx context.Context, tokenHash string, now time.Time) (*identity.RefreshTokenRecord, error)

	// RevokeAllForIdentity marks every live refresh token for the identity
	// revoked and reports how many were affected.
	RevokeAllForIdentity(ctx context.Context, identityID uuid.UUID, now time.Time) (int, error)
}
