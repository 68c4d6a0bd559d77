package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mindwell/internal/records"
)

// PostgresStore persists wellness records through a pgx pool. Record tables
// are append-only; there are no update or delete paths.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateMood(ctx context.Context, entry *records.MoodEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mood_entries (id, patient_id, score, energy_level, notes, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.PatientID, entry.Score, entry.EnergyLevel, entry.Notes, entry.RecordedAt, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create mood entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateJournal(ctx context.Context, entry *records.JournalEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO journal_entries (id, patient_id, encrypted_content, content_iv, sentiment_score, sentiment, word_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.PatientID, entry.EncryptedContent, entry.ContentIV,
		entry.SentimentScore, entry.Sentiment, entry.WordCount, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateVoice(ctx context.Context, analysis *records.VoiceAnalysis) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO voice_analyses (id, patient_id, vocal_health_score, flat_affect_score, agitated_speech_score, duration_seconds, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		analysis.ID, analysis.PatientID, analysis.VocalHealthScore, analysis.FlatAffectScore,
		analysis.AgitatedSpeechScore, analysis.DurationSeconds, analysis.RecordedAt, analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create voice analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateMedicationLog(ctx context.Context, log *records.MedicationLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO medication_logs (id, patient_id, name, dosage, taken, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.PatientID, log.Name, log.Dosage, log.Taken, log.ScheduledAt, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create medication log: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentMood(ctx context.Context, patientID uuid.UUID, limit int) ([]records.MoodEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, score, energy_level, notes, recorded_at, created_at
		FROM mood_entries
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query mood entries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.MoodEntry, error) {
		var e records.MoodEntry
		err := row.Scan(&e.ID, &e.PatientID, &e.Score, &e.EnergyLevel, &e.Notes, &e.RecordedAt, &e.CreatedAt)
		return e, err
	})
}

func (s *PostgresStore) RecentJournal(ctx context.Context, patientID uuid.UUID, limit int) ([]records.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, encrypted_content, content_iv, sentiment_score, sentiment, word_count, created_at
		FROM journal_entries
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.JournalEntry, error) {
		var e records.JournalEntry
		err := row.Scan(&e.ID, &e.PatientID, &e.EncryptedContent, &e.ContentIV,
			&e.SentimentScore, &e.Sentiment, &e.WordCount, &e.CreatedAt)
		return e, err
	})
}

func (s *PostgresStore) RecentVoice(ctx context.Context, patientID uuid.UUID, limit int) ([]records.VoiceAnalysis, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, vocal_health_score, flat_affect_score, agitated_speech_score, duration_seconds, recorded_at, created_at
		FROM voice_analyses
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query voice analyses: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.VoiceAnalysis, error) {
		var v records.VoiceAnalysis
		err := row.Scan(&v.ID, &v.PatientID, &v.VocalHealthScore, &v.FlatAffectScore,
			&v.AgitatedSpeechScore, &v.DurationSeconds, &v.RecordedAt, &v.CreatedAt)
		return v, err
	})
}

func (s *PostgresStore) RecentMedicationLogs(ctx context.Context, patientID uuid.UUID, limit int) ([]records.MedicationLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, patient_id, name, dosage, taken, scheduled_at, created_at
		FROM medication_logs
		WHERE patient_id = $1
		ORDER BY scheduled_at DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("query medication logs: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (records.MedicationLog, error) {
		var m records.MedicationLog
		err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Taken, &m.ScheduledAt, &m.CreatedAt)
		return m, err
	})
}
