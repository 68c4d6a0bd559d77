package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mindwell/internal/sharing"
	"mindwell/pkg/platform/sentinel"
)

// InMemoryConnectionStore mirrors the SQL implementation's atomicity with a
// mutex so the claim race tests exercise real single-writer semantics.
type InMemoryConnectionStore struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*sharing.Connection
	byHash map[string]uuid.UUID
}

func NewInMemoryConnectionStore() *InMemoryConnectionStore {
	return &InMemoryConnectionStore{
		byID:   make(map[uuid.UUID]*sharing.Connection),
		byHash: make(map[string]uuid.UUID),
	}
}

func (s *InMemoryConnectionStore) Create(_ context.Context, conn *sharing.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byHash[conn.CodeHash]; exists {
		return sentinel.ErrDuplicate
	}
	cp := *conn
	s.byID[conn.ID] = &cp
	s.byHash[conn.CodeHash] = conn.ID
	return nil
}

func (s *InMemoryConnectionStore) FindByID(_ context.Context, id uuid.UUID) (*sharing.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *conn
	return &cp, nil
}

func (s *InMemoryConnectionStore) FindByCodeHash(_ context.Context, codeHash string) (*sharing.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byHash[codeHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *InMemoryConnectionStore) ListActiveByPatient(_ context.Context, patientID uuid.UUID, now time.Time) ([]sharing.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sharing.Connection
	for _, conn := range s.byID {
		if conn.PatientID == patientID && conn.UsableAt(now) {
			out = append(out, *conn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryConnectionStore) Revoke(_ context.Context, id, patientID uuid.UUID, now time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.byID[id]
	if !ok || conn.PatientID != patientID {
		return sentinel.ErrNotFound
	}
	if !conn.IsActive {
		// Already revoked: deliberate no-op success.
		return nil
	}
	conn.IsActive = false
	at := now
	conn.RevokedAt = &at
	conn.RevokeReason = reason
	return nil
}

func (s *InMemoryConnectionStore) BindDoctor(_ context.Context, id, doctorID uuid.UUID, now time.Time) (*sharing.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	switch {
	case !conn.IsActive:
		return nil, sentinel.ErrRevoked
	case !now.Before(conn.ExpiresAt):
		return nil, sentinel.ErrExpired
	case conn.DoctorID != nil && *conn.DoctorID != doctorID:
		return nil, sentinel.ErrAlreadyClaimed
	}
	d := doctorID
	conn.DoctorID = &d
	conn.AccessCount++
	at := now
	conn.LastAccessed = &at
	cp := *conn
	return &cp, nil
}
