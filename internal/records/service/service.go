// Package service owns the patient-side write paths for wellness records.
// Journal content is encrypted before it reaches the store; sentiment is
// derived once at write time.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindwell/internal/audit"
	"mindwell/internal/insight"
	"mindwell/internal/platform/fieldcrypt"
	"mindwell/internal/records"
	"mindwell/internal/records/store"
	dErrors "mindwell/pkg/domain-errors"
)

const maxJournalLength = 50_000

type Service struct {
	store   store.Store
	cipher  *fieldcrypt.Cipher
	insight *insight.Client

	logger  *slog.Logger
	auditor *audit.Recorder
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(rec *audit.Recorder) Option {
	return func(s *Service) { s.auditor = rec }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, cipher *fieldcrypt.Cipher, insightClient *insight.Client, opts ...Option) *Service {
	s := &Service{
		store:   st,
		cipher:  cipher,
		insight: insightClient,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LogMoodRequest struct {
	Score       int
	EnergyLevel int
	Notes       string
}

func (s *Service) LogMood(ctx context.Context, patientID uuid.UUID, req LogMoodRequest) (*records.MoodEntry, error) {
	if req.Score < 1 || req.Score > 10 {
		return nil, dErrors.New(dErrors.CodeValidation, "score must be between 1 and 10")
	}
	if req.EnergyLevel < 0 || req.EnergyLevel > 10 {
		return nil, dErrors.New(dErrors.CodeValidation, "energyLevel must be between 0 and 10")
	}

	now := s.now()
	entry := &records.MoodEntry{
		ID:          uuid.New(),
		PatientID:   patientID,
		Score:       req.Score,
		EnergyLevel: req.EnergyLevel,
		Notes:       strings.TrimSpace(req.Notes),
		RecordedAt:  now,
		CreatedAt:   now,
	}
	if err := s.store.CreateMood(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store mood entry")
	}
	s.record(ctx, patientID, audit.ActionMoodLogged, "mood_entry", entry.ID)
	return entry, nil
}

// JournalResult echoes the derived analysis without the content. The caller
// already has the plaintext; we never send it back.
type JournalResult struct {
	ID             uuid.UUID `json:"id"`
	Sentiment      string    `json:"sentiment"`
	SentimentScore float64   `json:"sentimentScore"`
	WordCount      int       `json:"wordCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *Service) CreateJournal(ctx context.Context, patientID uuid.UUID, content string) (*JournalResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if len(content) > maxJournalLength {
		return nil, dErrors.New(dErrors.CodeValidation, "content is too long")
	}

	analysis, err := s.insight.AnalyzeText(ctx, content)
	if err != nil {
		analysis = &insight.Analysis{Sentiment: "neutral", Unavailable: true}
	}

	encrypted, iv, err := s.cipher.Encrypt(content, patientID.String())
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &records.JournalEntry{
		ID:               uuid.New(),
		PatientID:        patientID,
		EncryptedContent: encrypted,
		ContentIV:        iv,
		SentimentScore:   analysis.SentimentScore,
		Sentiment:        analysis.Sentiment,
		WordCount:        countWords(content),
		CreatedAt:        now,
	}
	if err := s.store.CreateJournal(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store journal entry")
	}

	s.record(ctx, patientID, audit.ActionJournalCreated, "journal_entry", entry.ID)
	return &JournalResult{
		ID:             entry.ID,
		Sentiment:      entry.Sentiment,
		SentimentScore: entry.SentimentScore,
		WordCount:      entry.WordCount,
		CreatedAt:      entry.CreatedAt,
	}, nil
}

type LogVoiceRequest struct {
	VocalHealthScore    float64
	FlatAffectScore     float64
	AgitatedSpeechScore float64
	DurationSeconds     float64
}

// LogVoice persists the scores produced by the voice-analysis collaborator.
// Audio never reaches this service; only derived scores are stored.
func (s *Service) LogVoice(ctx context.Context, patientID uuid.UUID, req LogVoiceRequest) (*records.VoiceAnalysis, error) {
	if req.VocalHealthScore < 0 || req.VocalHealthScore > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "vocalHealthScore must be between 0 and 100")
	}
	if req.FlatAffectScore < 0 || req.FlatAffectScore > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "flatAffectScore must be between 0 and 100")
	}
	if req.AgitatedSpeechScore < 0 || req.AgitatedSpeechScore > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "agitatedSpeechScore must be between 0 and 100")
	}
	if req.DurationSeconds < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "durationSeconds must not be negative")
	}

	now := s.now()
	analysis := &records.VoiceAnalysis{
		ID:                  uuid.New(),
		PatientID:           patientID,
		VocalHealthScore:    req.VocalHealthScore,
		FlatAffectScore:     req.FlatAffectScore,
		AgitatedSpeechScore: req.AgitatedSpeechScore,
		DurationSeconds:     req.DurationSeconds,
		RecordedAt:          now,
		CreatedAt:           now,
	}
	if err := s.store.CreateVoice(ctx, analysis); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store voice analysis")
	}
	s.record(ctx, patientID, audit.ActionVoiceLogged, "voice_analysis", analysis.ID)
	return analysis, nil
}

type LogMedicationRequest struct {
	Name        string
	Dosage      string
	Taken       bool
	ScheduledAt time.Time
}

func (s *Service) LogMedication(ctx context.Context, patientID uuid.UUID, req LogMedicationRequest) (*records.MedicationLog, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "medication name is required")
	}

	now := s.now()
	scheduled := req.ScheduledAt
	if scheduled.IsZero() {
		scheduled = now
	}
	log := &records.MedicationLog{
		ID:          uuid.New(),
		PatientID:   patientID,
		Name:        strings.TrimSpace(req.Name),
		Dosage:      strings.TrimSpace(req.Dosage),
		Taken:       req.Taken,
		ScheduledAt: scheduled,
		CreatedAt:   now,
	}
	if err := s.store.CreateMedicationLog(ctx, log); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store medication log")
	}
	s.record(ctx, patientID, audit.ActionMedicationLogged, "medication_log", log.ID)
	return log, nil
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

func (s *Service) record(ctx context.Context, patientID uuid.UUID, action audit.Action, resourceType string, resourceID uuid.UUID) {
	if s.auditor == nil {
		return
	}
	actor := patientID
	s.auditor.Record(ctx, audit.Entry{
		ActorID:      &actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID.String(),
	})
}
