// Package view assembles the permission-filtered snapshot a clinician sees
// after claiming a session code. A section exists only when its permission
// gate is set; an absent gate means the field is omitted entirely, not
// zeroed.
package view

import (
	"time"

	"github.com/google/uuid"
)

// SectionStatus tells the reader whether a section had enough underlying data
// to be meaningful.
type SectionStatus string

const (
	StatusOK               SectionStatus = "ok"
	StatusInsufficientData SectionStatus = "insufficient_data"
)

// Mood trend labels.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// Vocal health buckets.
const (
	VocalGood           = "good"
	VocalFair           = "fair"
	VocalNeedsAttention = "needs_attention"
)

// SharedView is the full snapshot returned from a claim. Nil sections were
// not shared, never "empty".
type SharedView struct {
	PatientID   uuid.UUID          `json:"patientId"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Mood        *MoodSection       `json:"mood,omitempty"`
	Journal     *JournalSection    `json:"journal,omitempty"`
	Voice       *VoiceSection      `json:"voice,omitempty"`
	Medications *MedicationSection `json:"medications,omitempty"`
	RawExport   *RawExportSection  `json:"rawExport,omitempty"`
}

type MoodPoint struct {
	Score       int       `json:"score"`
	EnergyLevel int       `json:"energyLevel"`
	RecordedAt  time.Time `json:"recordedAt"`
}

type MoodSection struct {
	Status       SectionStatus `json:"status"`
	Trend        string        `json:"trend,omitempty"`
	AverageScore float64       `json:"averageScore"`
	Points       []MoodPoint   `json:"points"`
}

// JournalSummary exposes only derived sentiment. Content ciphertext and
// plaintext never appear in a shared view.
type JournalSummary struct {
	Sentiment      string    `json:"sentiment"`
	SentimentScore float64   `json:"sentimentScore"`
	WordCount      int       `json:"wordCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

type JournalSection struct {
	Status    SectionStatus    `json:"status"`
	Summaries []JournalSummary `json:"summaries"`
}

type VoiceSection struct {
	Status              SectionStatus `json:"status"`
	VocalHealth         string        `json:"vocalHealth,omitempty"`
	AvgVocalHealthScore float64       `json:"avgVocalHealthScore"`
	AvgFlatAffectScore  float64       `json:"avgFlatAffectScore"`
	SampleCount         int           `json:"sampleCount"`
}

type MedicationSection struct {
	Status        SectionStatus `json:"status"`
	AdherenceRate float64       `json:"adherenceRate"`
	TakenCount    int           `json:"takenCount"`
	TotalCount    int           `json:"totalCount"`
}

// RawExportSection is the flat dump behind the rawExport gate. Journal
// entries stay summary-only even here.
type RawExportSection struct {
	Status      SectionStatus    `json:"status"`
	Mood        []MoodExportRow  `json:"mood"`
	Voice       []VoiceExportRow `json:"voice"`
	Medications []MedicationRow  `json:"medications"`
	Journal     []JournalSummary `json:"journal"`
}

type MoodExportRow struct {
	Score       int       `json:"score"`
	EnergyLevel int       `json:"energyLevel"`
	Notes       string    `json:"notes"`
	RecordedAt  time.Time `json:"recordedAt"`
}

type VoiceExportRow struct {
	VocalHealthScore    float64   `json:"vocalHealthScore"`
	FlatAffectScore     float64   `json:"flatAffectScore"`
	AgitatedSpeechScore float64   `json:"agitatedSpeechScore"`
	DurationSeconds     float64   `json:"durationSeconds"`
	RecordedAt          time.Time `json:"recordedAt"`
}

type MedicationRow struct {
	Name        string    `json:"name"`
	Dosage      string    `json:"dosage"`
	Taken       bool      `json:"taken"`
	ScheduledAt time.Time `json:"scheduledAt"`
}
