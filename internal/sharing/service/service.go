// Package service mints, lists, revokes, and claims session codes. The
// plaintext code exists in exactly two places: the creation response and the
// claiming clinician's request.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"mindwell/internal/audit"
	"mindwell/internal/identity"
	"mindwell/internal/platform/fieldcrypt"
	"mindwell/internal/platform/metrics"
	"mindwell/internal/records/view"
	"mindwell/internal/sharing"
	"mindwell/internal/sharing/store"
	dErrors "mindwell/pkg/domain-errors"
	"mindwell/pkg/platform/sentinel"
)

// codeAlphabet omits I, L, O, 0 and 1 so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 12

const (
	minTTLHours = 1
	maxTTLHours = 72
)

// createRetries bounds retries on the astronomically unlikely lookup-hash
// collision.
const createRetries = 3

// DoctorDirectory resolves clinician identities. Satisfied by the identity
// store.
type DoctorDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
}

// ViewAssembler builds the permission-filtered snapshot returned to a
// claiming clinician.
type ViewAssembler interface {
	Assemble(ctx context.Context, conn *sharing.Connection) (*view.SharedView, error)
}

type Service struct {
	connections store.ConnectionStore
	doctors     DoctorDirectory
	assembler   ViewAssembler
	cipher      *fieldcrypt.Cipher
	shareSecret []byte

	names   *DoctorNameCache
	logger  *slog.Logger
	auditor *audit.Recorder
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAudit(rec *audit.Recorder) Option {
	return func(s *Service) { s.auditor = rec }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDoctorNameCache(c *DoctorNameCache) Option {
	return func(s *Service) { s.names = c }
}

func New(connections store.ConnectionStore, doctors DoctorDirectory, assembler ViewAssembler, cipher *fieldcrypt.Cipher, shareSecret string, opts ...Option) (*Service, error) {
	if connections == nil || doctors == nil || assembler == nil || cipher == nil {
		return nil, errors.New("sharing service requires a store, directory, assembler, and cipher")
	}
	if err := fieldcrypt.CheckSecret(shareSecret); err != nil {
		return nil, err
	}
	s := &Service{
		connections: connections,
		doctors:     doctors,
		assembler:   assembler,
		cipher:      cipher,
		shareSecret: []byte(shareSecret),
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type CreateRequest struct {
	Permissions sharing.Permissions
	TTLHours    int
}

// CreateResult carries the plaintext code. It is never persisted in this
// form and never retrievable again.
type CreateResult struct {
	Connection *sharing.Connection
	Code       string
}

func (s *Service) Create(ctx context.Context, patientID uuid.UUID, req CreateRequest) (*CreateResult, error) {
	if req.TTLHours < minTTLHours || req.TTLHours > maxTTLHours {
		return nil, dErrors.New(dErrors.CodeValidation, "expiresInHours must be between 1 and 72")
	}

	now := s.now()
	for attempt := 0; attempt < createRetries; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate session code")
		}

		encrypted, iv, err := s.cipher.Encrypt(code, patientID.String())
		if err != nil {
			return nil, err
		}

		conn := &sharing.Connection{
			ID:            uuid.New(),
			PatientID:     patientID,
			EncryptedCode: encrypted,
			CodeIV:        iv,
			CodeHash:      s.hashCode(code),
			Permissions:   req.Permissions,
			ExpiresAt:     now.Add(time.Duration(req.TTLHours) * time.Hour),
			IsActive:      true,
			CreatedAt:     now,
		}
		if err := s.connections.Create(ctx, conn); err != nil {
			if errors.Is(err, sentinel.ErrDuplicate) {
				continue
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store connection")
		}

		if s.metrics != nil {
			s.metrics.ShareCodesCreated.Inc()
		}
		s.record(ctx, &patientID, audit.ActionShareCodeCreated, conn.ID)
		return &CreateResult{Connection: conn, Code: code}, nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "failed to generate a unique session code")
}

// ConnectionSummary is the patient-facing listing row. The code itself is
// absent in every form.
type ConnectionSummary struct {
	ID           uuid.UUID           `json:"id"`
	DoctorName   string              `json:"doctorName,omitempty"`
	Status       sharing.Status      `json:"status"`
	Permissions  sharing.Permissions `json:"permissions"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	AccessCount  int                 `json:"accessCount"`
	LastAccessed *time.Time          `json:"lastAccessed,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func (s *Service) ListActive(ctx context.Context, patientID uuid.UUID) ([]ConnectionSummary, error) {
	now := s.now()
	conns, err := s.connections.ListActiveByPatient(ctx, patientID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list connections")
	}

	out := make([]ConnectionSummary, 0, len(conns))
	for _, conn := range conns {
		summary := ConnectionSummary{
			ID:           conn.ID,
			Status:       conn.StatusAt(now),
			Permissions:  conn.Permissions,
			ExpiresAt:    conn.ExpiresAt,
			AccessCount:  conn.AccessCount,
			LastAccessed: conn.LastAccessed,
			CreatedAt:    conn.CreatedAt,
		}
		if conn.DoctorID != nil {
			summary.DoctorName = s.doctorName(ctx, *conn.DoctorID)
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *Service) Revoke(ctx context.Context, patientID, connectionID uuid.UUID, reason string) error {
	err := s.connections.Revoke(ctx, connectionID, patientID, s.now(), strings.TrimSpace(reason))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "connection not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke connection")
	}
	s.record(ctx, &patientID, audit.ActionShareRevoked, connectionID)
	return nil
}

// ClaimResult is what the clinician receives: the assembled view plus the
// bounds of the grant.
type ClaimResult struct {
	ConnectionID uuid.UUID           `json:"connectionId"`
	View         *view.SharedView    `json:"view"`
	Permissions  sharing.Permissions `json:"permissions"`
	ExpiresAt    time.Time           `json:"expiresAt"`
}

// Claim exchanges a session code for a shared view. The clinician's verified
// flag is read fresh here, the doctor binding is one conditional store write,
// and the connection is re-read before assembly so a concurrent revoke
// between bind and read is honored.
func (s *Service) Claim(ctx context.Context, doctorID uuid.UUID, code string) (*ClaimResult, error) {
	start := s.now()
	result, outcome, err := s.claim(ctx, doctorID, code)

	if s.metrics != nil {
		s.metrics.ClaimsTotal.WithLabelValues(outcome).Inc()
		s.metrics.ClaimDuration.Observe(s.now().Sub(start).Seconds())
	}
	return result, err
}

func (s *Service) claim(ctx context.Context, doctorID uuid.UUID, code string) (*ClaimResult, string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := s.now()

	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "doctor_not_found", dErrors.New(dErrors.CodeNotFound, "doctor not found")
		}
		return nil, "error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load doctor")
	}
	if doctor.Role != identity.RoleDoctor {
		return nil, "doctor_not_found", dErrors.New(dErrors.CodeNotFound, "doctor not found")
	}
	if !doctor.Verified {
		return nil, "unverified", dErrors.New(dErrors.CodeForbidden, "clinician account is not verified")
	}

	conn, err := s.connections.FindByCodeHash(ctx, s.hashCode(code))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.rejectClaim(ctx, doctorID, uuid.Nil)
			return nil, "invalid_code", dErrors.New(dErrors.CodeNotFound, "invalid session code")
		}
		return nil, "error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up session code")
	}

	if !conn.IsActive {
		s.rejectClaim(ctx, doctorID, conn.ID)
		return nil, "revoked", dErrors.New(dErrors.CodeForbidden, "session code has been revoked")
	}
	if !now.Before(conn.ExpiresAt) {
		s.rejectClaim(ctx, doctorID, conn.ID)
		return nil, "expired", dErrors.New(dErrors.CodeForbidden, "session code has expired")
	}

	// The hash located the row; the decrypted code is the actual credential
	// check.
	if s.cipher.Decrypt(conn.EncryptedCode, conn.CodeIV, conn.PatientID.String()) != code {
		s.rejectClaim(ctx, doctorID, conn.ID)
		return nil, "invalid_code", dErrors.New(dErrors.CodeNotFound, "invalid session code")
	}

	bound, err := s.connections.BindDoctor(ctx, conn.ID, doctorID, now)
	if err != nil {
		s.rejectClaim(ctx, doctorID, conn.ID)
		switch {
		case errors.Is(err, sentinel.ErrAlreadyClaimed):
			return nil, "already_claimed", dErrors.New(dErrors.CodeConflict, "session code already claimed by another clinician")
		case errors.Is(err, sentinel.ErrRevoked):
			return nil, "revoked", dErrors.New(dErrors.CodeForbidden, "session code has been revoked")
		case errors.Is(err, sentinel.ErrExpired):
			return nil, "expired", dErrors.New(dErrors.CodeForbidden, "session code has expired")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, "invalid_code", dErrors.New(dErrors.CodeNotFound, "invalid session code")
		default:
			return nil, "error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim session code")
		}
	}

	// Re-read before assembly so the view reflects the latest permissions and
	// a just-landed revoke wins.
	current, err := s.connections.FindByID(ctx, bound.ID)
	if err != nil {
		return nil, "error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload connection")
	}
	if !current.UsableAt(s.now()) {
		s.rejectClaim(ctx, doctorID, current.ID)
		return nil, "revoked", dErrors.New(dErrors.CodeForbidden, "session code has been revoked")
	}

	sharedView, err := s.assembler.Assemble(ctx, current)
	if err != nil {
		return nil, "error", err
	}

	s.record(ctx, &doctorID, audit.ActionShareClaimed, current.ID)
	return &ClaimResult{
		ConnectionID: current.ID,
		View:         sharedView,
		Permissions:  current.Permissions,
		ExpiresAt:    current.ExpiresAt,
	}, "success", nil
}

func (s *Service) doctorName(ctx context.Context, doctorID uuid.UUID) string {
	if s.names != nil {
		if name, ok := s.names.Get(ctx, doctorID); ok {
			return name
		}
	}
	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		s.logger.Warn("failed to resolve doctor name", "doctor_id", doctorID, "error", err)
		return ""
	}
	if s.names != nil {
		s.names.Set(ctx, doctorID, doctor.FullName)
	}
	return doctor.FullName
}

// hashCode keys the lookup hash with the share secret, so the connections
// table alone does not allow offline guessing of short codes.
func (s *Service) hashCode(code string) string {
	mac := hmac.New(sha256.New, s.shareSecret)
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateCode() (string, error) {
	out := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

func (s *Service) record(ctx context.Context, actorID *uuid.UUID, action audit.Action, connectionID uuid.UUID) {
	if s.auditor == nil {
		return
	}
	resourceID := ""
	if connectionID != uuid.Nil {
		resourceID = connectionID.String()
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: "connection",
		ResourceID:   resourceID,
	})
}

func (s *Service) rejectClaim(ctx context.Context, doctorID, connectionID uuid.UUID) {
	s.record(ctx, &doctorID, audit.ActionShareClaimRejected, connectionID)
}
