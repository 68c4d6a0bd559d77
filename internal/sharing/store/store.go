// Package store persists sharing connections. The claim path is the one spot
// where correctness depends on the store: binding a clinician must be a
// single conditional write, not a read-then-write.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"mindwell/internal/sharing"
)

// ConnectionStore implementations return sentinel errors for factual states
// (not found, already claimed, revoked, expired) and wrapped errors for
// infrastructure failures.
type ConnectionStore interface {
	Create(ctx context.Context, conn *sharing.Connection) error
	FindByID(ctx context.Context, id uuid.UUID) (*sharing.Connection, error)

	// FindByCodeHash locates the connection for a keyed code hash regardless
	// of its lifecycle state; the service decides how each state fails.
	FindByCodeHash(ctx context.Context, codeHash string) (*sharing.Connection, error)

	ListActiveByPatient(ctx context.Context, patientID uuid.UUID, now time.Time) ([]sharing.Connection, error)

	// Revoke deactivates a connection owned by patientID. Idempotent: a
	// connection that is already revoked yields nil, a connection that does
	// not exist or belongs to someone else yields ErrNotFound.
	Revoke(ctx context.Context, id, patientID uuid.UUID, now time.Time, reason string) error

	// BindDoctor atomically sets doctorID where it is currently null (or
	// already equal to doctorID, for repeat access by the bound clinician)
	// and the connection is active and unexpired, incrementing accessCount
	// and stamping lastAccessed in the same write. Fails ErrAlreadyClaimed
	// when a different clinician is bound, ErrRevoked/ErrExpired/ErrNotFound
	// otherwise.
	BindDoctor(ctx context.Context, id, doctorID uuid.UUID, now time.Time) (*sharing.Connection, error)
}
