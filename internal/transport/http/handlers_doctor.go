package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mindwell/internal/identity"
	"mindwell/internal/sharing"
	sharingservice "mindwell/internal/sharing/service"
	dErrors "mindwell/pkg/domain-errors"
)

// DoctorHandler serves the session-code lifecycle. Creation, listing, and
// revocation are patient operations; claiming is the doctor operation.
type DoctorHandler struct {
	sharing *sharingservice.Service
}

func NewDoctorHandler(svc *sharingservice.Service) *DoctorHandler {
	return &DoctorHandler{sharing: svc}
}

type createSessionRequest struct {
	Permissions    sharing.Permissions `json:"permissions"`
	ExpiresInHours int                 `json:"expiresInHours"`
}

type createSessionResponse struct {
	ID          string              `json:"id"`
	SessionCode string              `json:"sessionCode"`
	Permissions sharing.Permissions `json:"permissions"`
	ExpiresAt   string              `json:"expiresAt"`
}

func (h *DoctorHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	result, err := h.sharing.Create(r.Context(), IdentityID(r.Context()), sharingservice.CreateRequest{
		Permissions: req.Permissions,
		TTLHours:    req.ExpiresInHours,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, createSessionResponse{
		ID:          result.Connection.ID.String(),
		SessionCode: result.Code,
		Permissions: result.Connection.Permissions,
		ExpiresAt:   result.Connection.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *DoctorHandler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	sessions, err := h.sharing.ListActive(r.Context(), IdentityID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type revokeSessionRequest struct {
	Reason string `json:"reason"`
}

func (h *DoctorHandler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RolePatient); err != nil {
		writeError(w, err)
		return
	}

	connectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid session id"))
		return
	}

	var req revokeSessionRequest
	if r.Body != nil {
		// Reason is optional; an empty or absent body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.sharing.Revoke(r.Context(), IdentityID(r.Context()), connectionID, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type claimRequest struct {
	SessionCode string `json:"sessionCode"`
}

func (h *DoctorHandler) handleClaim(w http.ResponseWriter, r *http.Request) {
	if err := requireRole(r.Context(), identity.RoleDoctor); err != nil {
		writeError(w, err)
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionCode == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "sessionCode is required"))
		return
	}

	result, err := h.sharing.Claim(r.Context(), IdentityID(r.Context()), req.SessionCode)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}
