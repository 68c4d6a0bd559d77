package audit

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Store persists audit entries. Append-only by contract: implementations must
// not expose update or delete operations.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByActor(ctx context.Context, actorID uuid.UUID) ([]Entry, error)
}

// InMemoryStore keeps entries in memory for tests and development.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID uuid.UUID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.ActorID != nil && *e.ActorID == actorID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns a copy of every entry, newest last. Test helper.
func (s *InMemoryStore) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry{}, s.entries...)
}
