package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"mindwell/internal/identity"
	recordsservice "mindwell/internal/records/service"
	dErrors "mindwell/pkg/domain-errors"
)

type RecordsHandler struct {
	records *recordsservice.Service
}

func NewRecordsHandler(svc *recordsservice.Service) *RecordsHandler {
	return &RecordsHandler{records: svc}
}

type logMoodRequest struct {
	Score       int    `json:"score"`
	EnergyLevel int    `json:"energyLevel"`
	Notes       string `json:"notes"`
}

func (h *RecordsHandler) handleLogMood(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	var req logMoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	entry, err := h.records.LogMood(r.Context(), IdentityID(r.Context()), recordsservice.LogMoodRequest{
		Score:       req.Score,
		EnergyLevel: req.EnergyLevel,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"id":         entry.ID,
		"score":      entry.Score,
		"recordedAt": entry.RecordedAt.Format(time.RFC3339),
	})
}

type createJournalRequest struct {
	Content string `json:"content"`
}

func (h *RecordsHandler) handleCreateJournal(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	var req createJournalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	result, err := h.records.CreateJournal(r.Context(), IdentityID(r.Context()), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, result)
}

type logVoiceRequest struct {
	VocalHealthScore    float64 `json:"vocalHealthScore"`
	FlatAffectScore     float64 `json:"flatAffectScore"`
	AgitatedSpeechScore float64 `json:"agitatedSpeechScore"`
	DurationSeconds     float64 `json:"durationSeconds"`
}

func (h *RecordsHandler) handleLogVoice(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	var req logVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	analysis, err := h.records.LogVoice(r.Context(), IdentityID(r.Context()), recordsservice.LogVoiceRequest{
		VocalHealthScore:    req.VocalHealthScore,
		FlatAffectScore:     req.FlatAffectScore,
		AgitatedSpeechScore: req.AgitatedSpeechScore,
		DurationSeconds:     req.DurationSeconds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"id":               analysis.ID,
		"vocalHealthScore": analysis.VocalHealthScore,
		"recordedAt":       analysis.RecordedAt.Format(time.RFC3339),
	})
}

type logMedicationRequest struct {
	Name        string     `json:"name"`
	Dosage      string     `json:"dosage"`
	Taken       bool       `json:"taken"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

func (h *RecordsHandler) handleLogMedication(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	var req logMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	svcReq := recordsservice.LogMedicationRequest{
		Name:   req.Name,
		Dosage: req.Dosage,
		Taken:  req.Taken,
	}
	if req.ScheduledAt != nil {
		svcReq.ScheduledAt = *req.ScheduledAt
	}

	log, err := h.records.LogMedication(r.Context(), IdentityID(r.Context()), svcReq)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, map[string]any{
		"id":          log.ID,
		"name":        log.Name,
		"taken":       log.Taken,
		"scheduledAt": log.ScheduledAt.Format(time.RFC3339),
	})
}
