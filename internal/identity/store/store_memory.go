package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindwell/internal/identity"
	"mindwell/pkg/platform/sentinel"
)

// In-memory stores keep the services testable without a database. The mutex
// gives the same atomicity the SQL implementations get from single-statement
// writes, so concurrency tests exercise the real semantics.
type InMemoryIdentityStore struct {
	mu         sync.Mutex
	byID       map[uuid.UUID]*identity.Identity
	emailIndex map[string]uuid.UUID
}

func NewInMemoryIdentityStore() *InMemoryIdentityStore {
	return &InMemoryIdentityStore{
		byID:       make(map[uuid.UUID]*identity.Identity),
		emailIndex: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryIdentityStore) Create(_ context.Context, ident *identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(ident.Email)
	if _, exists := s.emailIndex[key]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *ident
	s.byID[ident.ID] = &cp
	s.emailIndex[key] = ident.ID
	return nil
}

func (s *InMemoryIdentityStore) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emailIndex[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemoryIdentityStore) FindByID(_ context.Context, id uuid.UUID) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *ident
	return &cp, nil
}

func (s *InMemoryIdentityStore) RecordLoginFailure(_ context.Context, id uuid.UUID, now time.Time, threshold int, lockFor time.Duration) (*identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	// Increment first, then evaluate: the lock triggers on the attempt that
	// reaches the threshold, not one later.
	ident.FailedAttempts++
	if ident.FailedAttempts >= threshold {
		until := now.Add(lockFor)
		ident.LockedUntil = &until
	}
	cp := *ident
	return &cp, nil
}

func (s *InMemoryIdentityStore) ResetLoginFailures(_ context.Context, id uuid.UUID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.FailedAttempts = 0
	ident.LockedUntil = nil
	last := now
	ident.LastLoginAt = &last
	return nil
}

func (s *InMemoryIdentityStore) SetVerified(_ context.Context, id uuid.UUID, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	ident.Verified = verified
	return nil
}

type InMemoryRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*identity.RefreshTokenRecord
}

func NewInMemoryRefreshTokenStore() *InMemoryRefreshTokenStore {
	return &InMemoryRefreshTokenStore{tokens: make(map[string]*identity.RefreshTokenRecord)}
}

func (s *InMemoryRefreshTokenStore) Create(_ context.Context, rec *identity.RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.tokens[rec.TokenHash] = &cp
	return nil
}

func (s *InMemoryRefreshTokenStore) FindValid(_ context.Context, tokenHash string, now time.Time) (*identity.RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[tokenHash]
	if !ok || !rec.ValidAt(now) {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryRefreshTokenStore) RevokeAllForIdentity(_ context.Context, identityID uuid.UUID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := 0
	for _, rec := range s.tokens {
		if rec.IdentityID == identityID && rec.RevokedAt == nil {
			at := now
			rec.RevokedAt = &at
			revoked++
		}
	}
	return revoked, nil
}
