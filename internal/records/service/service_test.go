package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindwell/internal/insight"
	"mindwell/internal/platform/fieldcrypt"
	"mindwell/internal/records/store"
	dErrors "mindwell/pkg/domain-errors"
)

const testSecret = "unit-test-secret-0123456789abcdef"

func newTestService(t *testing.T, insightURL string) (*Service, *store.InMemoryStore, *fieldcrypt.Cipher) {
	t.Helper()
	st := store.NewInMemoryStore()
	cipher, err := fieldcrypt.New(testSecret)
	require.NoError(t, err)
	svc := New(st, cipher, insight.New(insightURL))
	return svc, st, cipher
}

func TestLogMoodValidatesScore(t *testing.T) {
	svc, _, _ := newTestService(t, "")
	for _, score := range []int{0, 11, -3} {
		_, err := svc.LogMood(context.Background(), uuid.New(), LogMoodRequest{Score: score})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
	}
}

func TestLogMoodStoresEntry(t *testing.T) {
	svc, st, _ := newTestService(t, "")
	patientID := uuid.New()

	entry, err := svc.LogMood(context.Background(), patientID, LogMoodRequest{Score: 7, EnergyLevel: 5, Notes: " feeling ok "})
	require.NoError(t, err)
	assert.Equal(t, "feeling ok", entry.Notes)

	stored, err := st.RecentMood(context.Background(), patientID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 7, stored[0].Score)
}

func TestCreateJournalEncryptsContent(t *testing.T) {
	analyzed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sentimentScore":-0.6,"sentiment":"negative"}`))
	}))
	defer analyzed.Close()

	svc, st, cipher := newTestService(t, analyzed.URL)
	patientID := uuid.New()
	const content = "today was really hard"

	result, err := svc.CreateJournal(context.Background(), patientID, content)
	require.NoError(t, err)
	assert.Equal(t, "negative", result.Sentiment)
	assert.Equal(t, 4, result.WordCount)

	stored, err := st.RecentJournal(context.Background(), patientID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotContains(t, stored[0].EncryptedContent, content)
	assert.Equal(t, content, cipher.Decrypt(stored[0].EncryptedContent, stored[0].ContentIV, patientID.String()))
}

func TestCreateJournalFallsBackToNeutralSentiment(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	svc, st, _ := newTestService(t, down.URL)
	patientID := uuid.New()

	result, err := svc.CreateJournal(context.Background(), patientID, "still works without analysis")
	require.NoError(t, err)
	assert.Equal(t, "neutral", result.Sentiment)
	assert.Zero(t, result.SentimentScore)

	stored, err := st.RecentJournal(context.Background(), patientID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCreateJournalRequiresContent(t *testing.T) {
	svc, _, _ := newTestService(t, "")
	_, err := svc.CreateJournal(context.Background(), uuid.New(), "   ")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
}

func TestLogVoiceValidatesScores(t *testing.T) {
	svc, _, _ := newTestService(t, "")
	tests := []struct {
		name string
		req  LogVoiceRequest
	}{
		{"vocal health above range", LogVoiceRequest{VocalHealthScore: 101}},
		{"flat affect below range", LogVoiceRequest{VocalHealthScore: 50, FlatAffectScore: -1}},
		{"agitated speech above range", LogVoiceRequest{VocalHealthScore: 50, AgitatedSpeechScore: 140}},
		{"negative duration", LogVoiceRequest{VocalHealthScore: 50, DurationSeconds: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LogVoice(context.Background(), uuid.New(), tt.req)
			require.Error(t, err)
			assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
		})
	}
}

func TestLogVoiceStoresAnalysis(t *testing.T) {
	svc, st, _ := newTestService(t, "")
	patientID := uuid.New()

	analysis, err := svc.LogVoice(context.Background(), patientID, LogVoiceRequest{
		VocalHealthScore:    72.5,
		FlatAffectScore:     12,
		AgitatedSpeechScore: 8,
		DurationSeconds:     41.2,
	})
	require.NoError(t, err)
	assert.False(t, analysis.RecordedAt.IsZero())

	stored, err := st.RecentVoice(context.Background(), patientID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.InDelta(t, 72.5, stored[0].VocalHealthScore, 1e-9)
	assert.InDelta(t, 41.2, stored[0].DurationSeconds, 1e-9)
}

func TestLogMedication(t *testing.T) {
	svc, st, _ := newTestService(t, "")
	patientID := uuid.New()

	_, err := svc.LogMedication(context.Background(), patientID, LogMedicationRequest{Name: "", Taken: true})
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))

	log, err := svc.LogMedication(context.Background(), patientID, LogMedicationRequest{Name: "sertraline", Dosage: "50mg", Taken: true})
	require.NoError(t, err)
	assert.False(t, log.ScheduledAt.IsZero())

	stored, err := st.RecentMedicationLogs(context.Background(), patientID, 10)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
