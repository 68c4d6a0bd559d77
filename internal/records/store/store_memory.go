package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mindwell/internal/records"
)

// InMemoryStore backs tests and local development.
type InMemoryStore struct {
	mu          sync.Mutex
	mood        []records.MoodEntry
	journal     []records.JournalEntry
	voice       []records.VoiceAnalysis
	medications []records.MedicationLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) CreateMood(_ context.Context, entry *records.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mood = append(s.mood, *entry)
	return nil
}

func (s *InMemoryStore) CreateJournal(_ context.Context, entry *records.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal = append(s.journal, *entry)
	return nil
}

func (s *InMemoryStore) CreateVoice(_ context.Context, analysis *records.VoiceAnalysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = append(s.voice, *analysis)
	return nil
}

func (s *InMemoryStore) CreateMedicationLog(_ context.Context, log *records.MedicationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medications = append(s.medications, *log)
	return nil
}

func (s *InMemoryStore) RecentMood(_ context.Context, patientID uuid.UUID, limit int) ([]records.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.MoodEntry
	for _, e := range s.mood {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return truncate(out, limit), nil
}

func (s *InMemoryStore) RecentJournal(_ context.Context, patientID uuid.UUID, limit int) ([]records.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.JournalEntry
	for _, e := range s.journal {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *InMemoryStore) RecentVoice(_ context.Context, patientID uuid.UUID, limit int) ([]records.VoiceAnalysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.VoiceAnalysis
	for _, e := range s.voice {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.After(out[j].RecordedAt) })
	return truncate(out, limit), nil
}

func (s *InMemoryStore) RecentMedicationLogs(_ context.Context, patientID uuid.UUID, limit int) ([]records.MedicationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.MedicationLog
	for _, e := range s.medications {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return truncate(out, limit), nil
}

func truncate[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		return in[:limit]
	}
	return in
}
