// Package identity holds the principal model shared by the credential issuer
// and the sharing service.
package identity

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Identity is a patient or clinician principal. Rows are never hard-deleted;
// login outcomes mutate the failure counters, nothing else.
type Identity struct {
	ID             uuid.UUID
	Email          string
	PasswordHash   string
	Role           Role
	FullName       string
	LicenseNumber  string // clinicians only
	Verified       bool   // clinicians only; gates claim eligibility
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	CreatedAt      time.Time
}

// IsLockedAt reports whether the lockout window is still in effect.
func (i Identity) IsLockedAt(now time.Time) bool {
	return i.LockedUntil != nil && now.Before(*i.LockedUntil)
}

// RefreshTokenRecord is the server-side half of a refresh token. Only a keyed
// hash of the raw token is stored, so a database leak alone cannot mint
// sessions.
type RefreshTokenRecord struct {
	TokenHash  string
	IdentityID uuid.UUID
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// ValidAt reports whether the record can still redeem an access token.
func (r RefreshTokenRecord) ValidAt(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// TokenPair is returned on registration, login, and refresh. The access token
// is a stateless JWT; the refresh token is opaque and revocable.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
