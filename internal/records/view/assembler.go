package view

import (
	"context"
	"log/slog"
	"time"

	dErrors "mindwell/pkg/domain-errors"

	"mindwell/internal/platform/metrics"
	"mindwell/internal/records"
	"mindwell/internal/records/store"
	"mindwell/internal/sharing"
)

// Read windows per category. Windows bound how much history one claim
// discloses, independent of what the patient has accumulated.
const (
	moodWindow       = 30
	journalWindow    = 30
	voiceWindow      = 10
	medicationWindow = 30
)

// trendHysteresis keeps single noisy check-ins from flipping the mood trend.
const trendHysteresis = 0.5

// minTrendPoints is the smallest history that supports a trend statement:
// three recent scores against a prior window of at least two.
const minTrendPoints = 5

// Assembler builds shared views from windowed record reads.
type Assembler struct {
	store   store.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Assembler)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

func NewAssembler(st store.Store, opts ...Option) *Assembler {
	a := &Assembler{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble reads each permitted category and derives its section. Permissions
// come from the connection passed in; the caller is responsible for that
// connection reflecting current state.
func (a *Assembler) Assemble(ctx context.Context, conn *sharing.Connection) (*SharedView, error) {
	view := &SharedView{
		PatientID:   conn.PatientID,
		GeneratedAt: a.now(),
	}

	if conn.Permissions.Mood {
		entries, err := a.store.RecentMood(ctx, conn.PatientID, moodWindow)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mood history")
		}
		view.Mood = buildMoodSection(entries)
	}

	if conn.Permissions.JournalSummaries {
		entries, err := a.store.RecentJournal(ctx, conn.PatientID, journalWindow)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load journal history")
		}
		view.Journal = buildJournalSection(entries)
	}

	if conn.Permissions.VoiceSummary {
		analyses, err := a.store.RecentVoice(ctx, conn.PatientID, voiceWindow)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voice history")
		}
		view.Voice = buildVoiceSection(analyses)
	}

	if conn.Permissions.Medications {
		logs, err := a.store.RecentMedicationLogs(ctx, conn.PatientID, medicationWindow)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load medication history")
		}
		view.Medications = buildMedicationSection(logs)
	}

	if conn.Permissions.RawExport {
		export, err := a.buildRawExport(ctx, conn)
		if err != nil {
			return nil, err
		}
		view.RawExport = export
	}

	if a.metrics != nil {
		a.metrics.ViewsAssembled.Inc()
	}
	return view, nil
}

// buildMoodSection averages the window and compares the newest three scores
// against the two or three before them. Fewer than five points yields
// insufficient_data with no trend rather than a guess.
func buildMoodSection(entries []records.MoodEntry) *MoodSection {
	section := &MoodSection{Points: make([]MoodPoint, 0, len(entries))}

	var sum float64
	for _, e := range entries {
		section.Points = append(section.Points, MoodPoint{
			Score:       e.Score,
			EnergyLevel: e.EnergyLevel,
			RecordedAt:  e.RecordedAt,
		})
		sum += float64(e.Score)
	}
	if len(entries) > 0 {
		section.AverageScore = sum / float64(len(entries))
	}

	if len(entries) < minTrendPoints {
		section.Status = StatusInsufficientData
		return section
	}
	section.Status = StatusOK

	recent := avgScores(entries[:3])
	prior := avgScores(entries[3:min(6, len(entries))])
	switch diff := recent - prior; {
	case diff > trendHysteresis:
		section.Trend = TrendImproving
	case diff < -trendHysteresis:
		section.Trend = TrendDeclining
	default:
		section.Trend = TrendStable
	}
	return section
}

func avgScores(entries []records.MoodEntry) float64 {
	var sum float64
	for _, e := range entries {
		sum += float64(e.Score)
	}
	return sum / float64(len(entries))
}

func buildJournalSection(entries []records.JournalEntry) *JournalSection {
	section := &JournalSection{Summaries: journalSummaries(entries)}
	if len(entries) == 0 {
		section.Status = StatusInsufficientData
		return section
	}
	section.Status = StatusOK
	return section
}

func journalSummaries(entries []records.JournalEntry) []JournalSummary {
	out := make([]JournalSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, JournalSummary{
			Sentiment:      e.Sentiment,
			SentimentScore: e.SentimentScore,
			WordCount:      e.WordCount,
			CreatedAt:      e.CreatedAt,
		})
	}
	return out
}

func buildVoiceSection(analyses []records.VoiceAnalysis) *VoiceSection {
	section := &VoiceSection{SampleCount: len(analyses)}
	if len(analyses) == 0 {
		section.Status = StatusInsufficientData
		return section
	}

	var health, flat float64
	for _, v := range analyses {
		health += v.VocalHealthScore
		flat += v.FlatAffectScore
	}
	section.AvgVocalHealthScore = health / float64(len(analyses))
	section.AvgFlatAffectScore = flat / float64(len(analyses))
	section.VocalHealth = vocalBucket(section.AvgVocalHealthScore)
	section.Status = StatusOK
	return section
}

func vocalBucket(avgScore float64) string {
	switch {
	case avgScore >= 70:
		return VocalGood
	case avgScore >= 40:
		return VocalFair
	default:
		return VocalNeedsAttention
	}
}

// buildMedicationSection reports adherence over the window. An empty window
// is zero adherence flagged insufficient_data, never a division error.
func buildMedicationSection(logs []records.MedicationLog) *MedicationSection {
	section := &MedicationSection{TotalCount: len(logs)}
	if len(logs) == 0 {
		section.Status = StatusInsufficientData
		return section
	}
	for _, l := range logs {
		if l.Taken {
			section.TakenCount++
		}
	}
	section.AdherenceRate = float64(section.TakenCount) / float64(section.TotalCount)
	section.Status = StatusOK
	return section
}

func (a *Assembler) buildRawExport(ctx context.Context, conn *sharing.Connection) (*RawExportSection, error) {
	mood, err := a.store.RecentMood(ctx, conn.PatientID, moodWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load mood history")
	}
	voice, err := a.store.RecentVoice(ctx, conn.PatientID, voiceWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voice history")
	}
	meds, err := a.store.RecentMedicationLogs(ctx, conn.PatientID, medicationWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load medication history")
	}
	journal, err := a.store.RecentJournal(ctx, conn.PatientID, journalWindow)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load journal history")
	}

	export := &RawExportSection{
		Mood:        make([]MoodExportRow, 0, len(mood)),
		Voice:       make([]VoiceExportRow, 0, len(voice)),
		Medications: make([]MedicationRow, 0, len(meds)),
		Journal:     journalSummaries(journal),
	}
	for _, e := range mood {
		export.Mood = append(export.Mood, MoodExportRow{
			Score:       e.Score,
			EnergyLevel: e.EnergyLevel,
			Notes:       e.Notes,
			RecordedAt:  e.RecordedAt,
		})
	}
	for _, v := range voice {
		export.Voice = append(export.Voice, VoiceExportRow{
			VocalHealthScore:    v.VocalHealthScore,
			FlatAffectScore:     v.FlatAffectScore,
			AgitatedSpeechScore: v.AgitatedSpeechScore,
			DurationSeconds:     v.DurationSeconds,
			RecordedAt:          v.RecordedAt,
		})
	}
	for _, m := range meds {
		export.Medications = append(export.Medications, MedicationRow{
			Name:        m.Name,
			Dosage:      m.Dosage,
			Taken:       m.Taken,
			ScheduledAt: m.ScheduledAt,
		})
	}

	export.Status = StatusOK
	if len(mood)+len(voice)+len(meds)+len(journal) == 0 {
		export.Status = StatusInsufficientData
	}
	return export, nil
}
