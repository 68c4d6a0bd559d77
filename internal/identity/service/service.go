// Package service implements the credential and session issuer: registration,
// login with brute-force lockout, refresh-token rotation, and logout.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"mindwell/internal/audit"
	"mindwell/internal/identity"
	idjwt "mindwell/internal/identity/jwt"
	"mindwell/internal/identity/store"
	"mindwell/internal/platform/fieldcrypt"
	"mindwell/internal/platform/metrics"
	dErrors "mindwell/pkg/domain-errors"
	"mindwell/pkg/platform/sentinel"
)

const minPasswordLength = 8

type Service struct {
	identities    store.IdentityStore
	refreshTokens store.RefreshTokenStore
	tokens        *idjwt.Service
	refreshSecret []byte

	logger  *slog.Logger
	auditor *audit.Recorder
	metrics *metrics.Metrics
	now     func() time.Time

	// hashSem bounds concurrent bcrypt work so one slow hash cannot stall
	// unrelated request handling.
	hashSem *semaphore.Weighted

	accessTTL        time.Duration
	refreshTTL       time.Duration
	lockoutThreshold int
	lockoutWindow    time.Duration
	doctorAutoVerify bool
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

func WithTokenTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		s.accessTTL = access
		s.refreshTTL = refresh
	}
}

func WithLockoutPolicy(threshold int, window time.Duration) Option {
	return func(s *Service) {
		s.lockoutThreshold = threshold
		s.lockoutWindow = window
	}
}

func WithDoctorAutoVerify(enabled bool) Option {
	return func(s *Service) { s.doctorAutoVerify = enabled }
}

func WithHashWorkers(n int64) Option {
	return func(s *Service) { s.hashSem = semaphore.NewWeighted(n) }
}

func New(identities store.IdentityStore, refreshTokens store.RefreshTokenStore, tokens *idjwt.Service, refreshSecret string, opts ...Option) (*Service, error) {
	if identities == nil || refreshTokens == nil || tokens == nil {
		return nil, errors.New("identity service requires stores and a token service")
	}
	if err := fieldcrypt.CheckSecret(refreshSecret); err != nil {
		return nil, err
	}
	s := &Service{
		identities:       identities,
		refreshTokens:    refreshTokens,
		tokens:           tokens,
		refreshSecret:    []byte(refreshSecret),
		logger:           slog.Default(),
		now:              time.Now,
		hashSem:          semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		accessTTL:        15 * time.Minute,
		refreshTTL:       7 * 24 * time.Hour,
		lockoutThreshold: 5,
		lockoutWindow:    15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type RegisterRequest struct {
	Email         string
	Password      string
	FullName      string
	Role          identity.Role
	LicenseNumber string
	ConsentGiven  bool
}

func (r *RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if !r.ConsentGiven {
		return dErrors.New(dErrors.CodeValidation, "consent is required")
	}
	if !govalidator.IsEmail(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	if len(r.Password) < minPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if !r.Role.Valid() {
		return dErrors.New(dErrors.CodeValidation, "role must be patient or doctor")
	}
	if r.Role == identity.RoleDoctor && strings.TrimSpace(r.LicenseNumber) == "" {
		return dErrors.New(dErrors.CodeValidation, "license number is required for clinicians")
	}
	return nil
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*identity.Identity, *identity.TokenPair, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	hash, err := s.hashPassword(ctx, req.Password)
	if err != nil {
		return nil, nil, err
	}

	ident := &identity.Identity{
		ID:            uuid.New(),
		Email:         req.Email,
		PasswordHash:  hash,
		Role:          req.Role,
		FullName:      strings.TrimSpace(req.FullName),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		Verified:      req.Role == identity.RoleDoctor && s.doctorAutoVerify,
		CreatedAt:     s.now(),
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		if errors.Is(err, sentinel.ErrDuplicate) {
			return nil, nil, dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create identity")
	}

	pair, err := s.issueTokenPair(ctx, ident)
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.RegistrationsTotal.Inc()
	}
	s.record(ctx, &ident.ID, audit.ActionUserRegistered, "identity", ident.ID.String())
	return ident, pair, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*identity.Identity, *identity.TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	now := s.now()

	ident, err := s.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.countLogin("failed")
			s.record(ctx, nil, audit.ActionLoginFailed, "identity", email)
			return nil, nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up identity")
	}

	if ident.IsLockedAt(now) {
		s.countLogin("locked")
		s.record(ctx, &ident.ID, audit.ActionLoginFailed, "identity", ident.ID.String())
		return nil, nil, dErrors.New(dErrors.CodeAccountLocked, "account temporarily locked, try again later")
	}

	match, err := s.comparePassword(ctx, ident.PasswordHash, password)
	if err != nil {
		return nil, nil, err
	}
	if !match {
		return nil, nil, s.handleLoginFailure(ctx, ident, now)
	}

	if err := s.identities.ResetLoginFailures(ctx, ident.ID, now); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset login failures")
	}
	last := now
	ident.FailedAttempts = 0
	ident.LockedUntil = nil
	ident.LastLoginAt = &last

	pair, err := s.issueTokenPair(ctx, ident)
	if err != nil {
		return nil, nil, err
	}

	s.countLogin("success")
	s.record(ctx, &ident.ID, audit.ActionLoginSucceeded, "identity", ident.ID.String())
	return ident, pair, nil
}

// handleLoginFailure records the failed attempt through the store's single
// atomic write. The post-increment counter decides the lock, so exactly the
// configured number of consecutive failures locks the account.
func (s *Service) handleLoginFailure(ctx context.Context, ident *identity.Identity, now time.Time) error {
	wasLocked := ident.LockedUntil != nil
	updated, err := s.identities.RecordLoginFailure(ctx, ident.ID, now, s.lockoutThreshold, s.lockoutWindow)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}

	s.countLogin("failed")
	s.record(ctx, &ident.ID, audit.ActionLoginFailed, "identity", ident.ID.String())

	if updated.LockedUntil != nil && !wasLocked {
		if s.metrics != nil {
			s.metrics.LockoutsTriggered.Inc()
		}
		s.logger.Warn("account locked after repeated login failures",
			"identity_id", ident.ID,
			"failed_attempts", updated.FailedAttempts,
			"locked_until", updated.LockedUntil,
		)
		s.record(ctx, &ident.ID, audit.ActionAccountLocked, "identity", ident.ID.String())
	}
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself is left untouched.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error) {
	now := s.now()
	rec, err := s.refreshTokens.FindValid(ctx, s.hashRefreshToken(refreshToken), now)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up refresh token")
	}

	ident, err := s.identities.FindByID(ctx, rec.IdentityID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
	}

	access, accessExp, err := s.tokens.GenerateAccessToken(ident.ID, ident.Role, s.accessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}
	return &identity.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Logout revokes every stored refresh token for the identity. Access tokens
// already issued stay valid until their own short TTL elapses; stateless
// tokens cannot be recalled mid-flight and that limitation is accepted.
func (s *Service) Logout(ctx context.Context, identityID uuid.UUID) error {
	if _, err := s.refreshTokens.RevokeAllForIdentity(ctx, identityID, s.now()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke refresh tokens")
	}
	s.record(ctx, &identityID, audit.ActionUserLoggedOut, "identity", identityID.String())
	return nil
}

// Verify validates an access token without touching persistence.
func (s *Service) Verify(accessToken string) (uuid.UUID, identity.Role, error) {
	return s.tokens.Verify(accessToken)
}

// Me returns the identity behind an authenticated request.
func (s *Service) Me(ctx context.Context, identityID uuid.UUID) (*identity.Identity, error) {
	ident, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load identity")
	}
	return ident, nil
}

// VerifyDoctor marks a clinician as verified. Exposed for operational tooling;
// claim refuses unverified clinicians.
func (s *Service) VerifyDoctor(ctx context.Context, doctorID uuid.UUID) error {
	ident, err := s.identities.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "doctor not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load doctor")
	}
	if ident.Role != identity.RoleDoctor {
		return dErrors.New(dErrors.CodeValidation, "identity is not a clinician")
	}
	if err := s.identities.SetVerified(ctx, doctorID, true); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify doctor")
	}
	return nil
}

func (s *Service) issueTokenPair(ctx context.Context, ident *identity.Identity) (*identity.TokenPair, error) {
	now := s.now()

	access, accessExp, err := s.tokens.GenerateAccessToken(ident.ID, ident.Role, s.accessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}

	raw := make([]byte, 48)
	if _, err := rand.Read(raw); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	refresh := hex.EncodeToString(raw)
	refreshExp := now.Add(s.refreshTTL)

	rec := &identity.RefreshTokenRecord{
		TokenHash:  s.hashRefreshToken(refresh),
		IdentityID: ident.ID,
		ExpiresAt:  refreshExp,
		CreatedAt:  now,
	}
	if err := s.refreshTokens.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}

	return &identity.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// hashRefreshToken keys the stored hash with the refresh secret so a leaked
// database alone cannot be replayed as live tokens.
func (s *Service) hashRefreshToken(raw string) string {
	mac := hmac.New(sha256.New, s.refreshSecret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Service) hashPassword(ctx context.Context, password string) (string, error) {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "request cancelled")
	}
	defer s.hashSem.Release(1)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return string(hash), nil
}

func (s *Service) comparePassword(ctx context.Context, hash, password string) (bool, error) {
	if err := s.hashSem.Acquire(ctx, 1); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "request cancelled")
	}
	defer s.hashSem.Release(1)
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	return true, nil
}

func (s *Service) countLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Service) record(ctx context.Context, actorID *uuid.UUID, action audit.Action, resourceType, resourceID string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(ctx, audit.Entry{
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
}
