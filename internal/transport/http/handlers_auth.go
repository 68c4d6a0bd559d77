package httptransport

import (
	"encoding/json"
	"net/http"

	"mindwell/internal/identity"
	identityservice "mindwell/internal/identity/service"
	dErrors "mindwell/pkg/domain-errors"
)

type AuthHandler struct {
	identity *identityservice.Service
}

func NewAuthHandler(svc *identityservice.Service) *AuthHandler {
	return &AuthHandler{identity: svc}
}

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"fullName"`
	Role          string `json:"role"`
	LicenseNumber string `json:"licenseNumber"`
	ConsentGiven  bool   `json:"consentGiven"`
}

type identityResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

type authResponse struct {
	Identity identityResponse    `json:"identity"`
	Tokens   *identity.TokenPair `json:"tokens"`
}

func toIdentityResponse(ident *identity.Identity) identityResponse {
	return identityResponse{
		ID:       ident.ID.String(),
		Email:    ident.Email,
		FullName: ident.FullName,
		Role:     string(ident.Role),
		Verified: ident.Verified,
	}
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	ident, tokens, err := h.identity.Register(r.Context(), identityservice.RegisterRequest{
		Email:         req.Email,
		Password:      req.Password,
		FullName:      req.FullName,
		Role:          identity.Role(req.Role),
		LicenseNumber: req.LicenseNumber,
		ConsentGiven:  req.ConsentGiven,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusCreated, authResponse{Identity: toIdentityResponse(ident), Tokens: tokens})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}

	ident, tokens, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, authResponse{Identity: toIdentityResponse(ident), Tokens: tokens})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "refreshToken is required"))
		return
	}

	tokens, err := h.identity.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, tokens)
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.Logout(r.Context(), IdentityID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identity.Me(r.Context(), IdentityID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	respond(w, http.StatusOK, toIdentityResponse(ident))
}
