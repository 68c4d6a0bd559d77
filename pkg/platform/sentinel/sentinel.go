package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrDuplicate: unique constraint already holds (email, code hash)
// - ErrExpired: token/connection has passed its absolute expiry
// - ErrAlreadyClaimed: connection already bound to a clinician
// - ErrRevoked: connection deactivated by its owner
// - ErrUnavailable: backing service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("duplicate")
	ErrExpired        = errors.New("expired")
	ErrAlreadyClaimed = errors.New("already claimed")
	ErrRevoked        = errors.New("revoked")
	ErrUnavailable    = errors.New("unavailable")
)
