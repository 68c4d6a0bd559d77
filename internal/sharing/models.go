// Package sharing models the capability tokens ("session codes") a patient
// mints for an external clinician.
package sharing

import (
	"time"

	"github.com/google/uuid"
)

// Permissions is the closed set of boolean gates controlling which data
// categories a connection discloses. The set is fixed at creation and never
// mutated; adding a category means touching every consumption site, which is
// exactly the point of keeping it a struct instead of a map.
type Permissions struct {
	Mood             bool `json:"mood"`
	JournalSummaries bool `json:"journalSummaries"`
	VoiceSummary     bool `json:"voiceSummary"`
	Medications      bool `json:"medications"`
	RawExport        bool `json:"rawExport"`
}

// Status is the lazily evaluated connection lifecycle state. Expiry is
// computed from ExpiresAt at read time, never stored.
type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Connection is a capability token record. The plaintext code is returned to
// the patient exactly once at creation; only its ciphertext and a keyed
// lookup hash are persisted.
type Connection struct {
	ID            uuid.UUID
	PatientID     uuid.UUID
	DoctorID      *uuid.UUID // nil until claimed, then fixed
	EncryptedCode string
	CodeIV        string
	CodeHash      string
	Permissions   Permissions
	ExpiresAt     time.Time
	IsActive      bool
	AccessCount   int
	LastAccessed  *time.Time
	RevokedAt     *time.Time
	RevokeReason  string
	CreatedAt     time.Time
}

// UsableAt reports whether the connection can still be claimed or read.
func (c Connection) UsableAt(now time.Time) bool {
	return c.IsActive && now.Before(c.ExpiresAt)
}

// StatusAt derives the lifecycle state at the given instant.
func (c Connection) StatusAt(now time.Time) Status {
	switch {
	case !c.IsActive:
		return StatusRevoked
	case !now.Before(c.ExpiresAt):
		return StatusExpired
	case c.DoctorID != nil:
		return StatusClaimed
	default:
		return StatusPending
	}
}
