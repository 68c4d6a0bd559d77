// Package records holds the patient wellness record types. Journal content is
// the only free-text field and is stored encrypted; everything else is
// numeric or categorical.
package records

import (
	"time"

	"github.com/google/uuid"
)

// MoodEntry is a self-reported mood check-in on a 1-10 scale.
type MoodEntry struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	Score       int
	EnergyLevel int
	Notes       string
	RecordedAt  time.Time
	CreatedAt   time.Time
}

// JournalEntry stores the content ciphertext next to the sentiment fields
// produced at write time. Plaintext never touches the database and never
// leaves the patient's own read path.
type JournalEntry struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	EncryptedContent string
	ContentIV        string
	SentimentScore   float64
	Sentiment        string
	WordCount        int
	CreatedAt        time.Time
}

// VoiceAnalysis carries the derived acoustic scores for one voice sample.
// Scores are 0-100; the audio itself is never persisted here.
type VoiceAnalysis struct {
	ID                  uuid.UUID
	PatientID           uuid.UUID
	VocalHealthScore    float64
	FlatAffectScore     float64
	AgitatedSpeechScore float64
	DurationSeconds     float64
	RecordedAt          time.Time
	CreatedAt           time.Time
}

// MedicationLog records whether a scheduled dose was taken.
type MedicationLog struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	Name        string
	Dosage      string
	Taken       bool
	ScheduledAt time.Time
	CreatedAt   time.Time
}
