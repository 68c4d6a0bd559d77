// Package store persists patient wellness records. Reads are windowed and
// strictly patient-scoped; there is no cross-patient query surface.
package store

import (
	"context"

	"github.com/google/uuid"

	"mindwell/internal/records"
)

// Store implementations return results newest-first, capped at limit.
type Store interface {
	CreateMood(ctx context.Context, entry *records.MoodEntry) error
	CreateJournal(ctx context.Context, entry *records.JournalEntry) error
	CreateVoice(ctx context.Context, analysis *records.VoiceAnalysis) error
	CreateMedicationLog(ctx context.Context, log *records.MedicationLog) error

	RecentMood(ctx context.Context, patientID uuid.UUID, limit int) ([]records.MoodEntry, error)
	RecentJournal(ctx context.Context, patientID uuid.UUID, limit int) ([]records.JournalEntry, error)
	RecentVoice(ctx context.Context, patientID uuid.UUID, limit int) ([]records.VoiceAnalysis, error)
	RecentMedicationLogs(ctx context.Context, patientID uuid.UUID, limit int) ([]records.MedicationLog, error)
}
