package httptransport

import (
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindwell/internal/identity"
	idjwt "mindwell/internal/identity/jwt"
	identityservice "mindwell/internal/identity/service"
	identitystore "mindwell/internal/identity/store"
	"mindwell/internal/insight"
	"mindwell/internal/platform/fieldcrypt"
	recordsservice "mindwell/internal/records/service"
	recordsstore "mindwell/internal/records/store"
	"mindwell/internal/records/view"
	sharingservice "mindwell/internal/sharing/service"
	sharingstore "mindwell/internal/sharing/store"
	"mindwell/pkg/testutil"
)

const testSecret = "unit-test-secret-0123456789abcdef"

type env struct {
	router http.Handler
	tokens *idjwt.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.Default()
	tokens := idjwt.NewService(testSecret, "mindwell-test")
	cipher, err := fieldcrypt.New(testSecret)
	require.NoError(t, err)

	identities := identitystore.NewInMemoryIdentityStore()
	identitySvc, err := identityservice.New(
		identities,
		identitystore.NewInMemoryRefreshTokenStore(),
		tokens,
		testSecret,
		identityservice.WithDoctorAutoVerify(true),
	)
	require.NoError(t, err)

	recordStore := recordsstore.NewInMemoryStore()
	assembler := view.NewAssembler(recordStore)

	sharingSvc, err := sharingservice.New(
		sharingstore.NewInMemoryConnectionStore(),
		identities,
		assembler,
		cipher,
		testSecret,
	)
	require.NoError(t, err)

	recordsSvc := recordsservice.New(recordStore, cipher, insight.New(""))

	router := NewRouter(
		NewAuthHandler(identitySvc),
		NewDoctorHandler(sharingSvc),
		NewRecordsHandler(recordsSvc),
		identitySvc,
		logger,
		nil,
	)
	return &env{router: router, tokens: tokens}
}

func (e *env) register(t *testing.T, role, email, license string) (uuid.UUID, string) {
	t.Helper()
	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]any{
		"email":         email,
		"password":      "long-enough-pass",
		"fullName":      "Test User",
		"role":          role,
		"licenseNumber": license,
		"consentGiven":  true,
	})
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	resp := testutil.UnmarshalResponse[struct {
		Identity struct {
			ID string `json:"id"`
		} `json:"identity"`
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}](t, rr)
	id, err := uuid.Parse(resp.Identity.ID)
	require.NoError(t, err)
	return id, resp.Tokens.AccessToken
}

func TestRegisterValidationEnvelope(t *testing.T) {
	e := newEnv(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", map[string]any{
		"email":    "bad",
		"password": "long-enough-pass",
		"role":     "patient",
	})
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "VALIDATION")
}

func TestLoginWrongPassword(t *testing.T) {
	e := newEnv(t)
	e.register(t, "patient", "alice@example.com", "")

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAccountLockedStatus(t *testing.T) {
	e := newEnv(t)
	e.register(t, "patient", "alice@example.com", "")

	for i := 0; i < 5; i++ {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
			"email":    "alice@example.com",
			"password": "wrong-password",
		})
		testutil.DoRequest(e.router, req)
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]any{
		"email":    "alice@example.com",
		"password": "long-enough-pass",
	})
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusLocked, "ACCOUNT_LOCKED")
}

func TestMeRequiresToken(t *testing.T) {
	e := newEnv(t)
	rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet, "/auth/me"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestMeReturnsIdentity(t *testing.T) {
	e := newEnv(t)
	_, token := e.register(t, "patient", "alice@example.com", "")

	req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/auth/me"), token)
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "email", "alice@example.com")
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	_, patientToken := e.register(t, "patient", "alice@example.com", "")
	_, doctorToken := e.register(t, "doctor", "doc@example.com", "LIC-1234")

	// Patient mints a session code.
	createReq := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/doctor/session", map[string]any{
		"permissions":    map[string]bool{"mood": true},
		"expiresInHours": 24,
	}), patientToken)
	rr := testutil.DoRequest(e.router, createReq)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[struct {
		ID          string `json:"id"`
		SessionCode string `json:"sessionCode"`
		ExpiresAt   string `json:"expiresAt"`
	}](t, rr)
	assert.Len(t, created.SessionCode, 12)
	assert.NotEmpty(t, created.ExpiresAt)

	// Doctor claims it.
	claimReq := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/doctor/access", map[string]any{
		"sessionCode": created.SessionCode,
	}), doctorToken)
	rr = testutil.DoRequest(e.router, claimReq)
	testutil.AssertStatusOK(t, rr)

	// Patient sees the claimed session.
	listReq := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/doctor/sessions"), patientToken)
	rr = testutil.DoRequest(e.router, listReq)
	testutil.AssertStatusOK(t, rr)

	// Patient revokes; a second revoke still succeeds.
	for i := 0; i < 2; i++ {
		revokeReq := testutil.WithBearer(testutil.NewRequest(t, http.MethodDelete, "/doctor/sessions/"+created.ID), patientToken)
		rr = testutil.DoRequest(e.router, revokeReq)
		testutil.AssertStatusOK(t, rr)
	}

	// Claim after revoke is rejected.
	claimAgain := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/doctor/access", map[string]any{
		"sessionCode": created.SessionCode,
	}), doctorToken)
	rr = testutil.DoRequest(e.router, claimAgain)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "FORBIDDEN")
}

func TestClaimRequiresDoctorRole(t *testing.T) {
	e := newEnv(t)
	_, patientToken := e.register(t, "patient", "alice@example.com", "")

	req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/doctor/access", map[string]any{
		"sessionCode": "SOMECODE2345",
	}), patientToken)
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "FORBIDDEN")
}

func TestClaimUnknownCode(t *testing.T) {
	e := newEnv(t)
	_, doctorToken := e.register(t, "doctor", "doc@example.com", "LIC-1234")

	req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/doctor/access", map[string]any{
		"sessionCode": "WRONGCODE234",
	}), doctorToken)
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "NOT_FOUND")
}

func TestCreateSessionRequiresPatientRole(t *testing.T) {
	e := newEnv(t)
	_, doctorToken := e.register(t, "doctor", "doc@example.com", "LIC-1234")

	req := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/doctor/session", map[string]any{
		"permissions":    map[string]bool{"mood": true},
		"expiresInHours": 24,
	}), doctorToken)
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "FORBIDDEN")
}

func TestRecordWrites(t *testing.T) {
	e := newEnv(t)
	_, patientToken := e.register(t, "patient", "alice@example.com", "")

	moodReq := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/mood", map[string]any{
		"score": 7, "energyLevel": 5,
	}), patientToken)
	rr := testutil.DoRequest(e.router, moodReq)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	journalReq := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/journal", map[string]any{
		"content": "wrote some words today",
	}), patientToken)
	rr = testutil.DoRequest(e.router, journalReq)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr, "sentiment", "neutral")

	voiceReq := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/voice", map[string]any{
		"vocalHealthScore": 68.0, "flatAffectScore": 10.0, "durationSeconds": 30.5,
	}), patientToken)
	rr = testutil.DoRequest(e.router, voiceReq)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	medReq := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/medications/log", map[string]any{
		"name": "sertraline", "dosage": "50mg", "taken": true,
	}), patientToken)
	rr = testutil.DoRequest(e.router, medReq)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	badVoice := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/voice", map[string]any{
		"vocalHealthScore": 250.0,
	}), patientToken)
	rr = testutil.DoRequest(e.router, badVoice)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "VALIDATION")

	badMood := testutil.WithBearer(testutil.NewJSONRequest(t, http.MethodPost, "/mood", map[string]any{
		"score": 42,
	}), patientToken)
	rr = testutil.DoRequest(e.router, badMood)
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "VALIDATION")
}

func TestExpiredTokenCode(t *testing.T) {
	e := newEnv(t)
	// A token from a different signing key fails as plain unauthorized.
	other := idjwt.NewService("another-signing-key", "mindwell-test")
	token := testutil.AccessToken(t, other, uuid.New(), identity.RolePatient)

	req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/auth/me"), token)
	rr := testutil.DoRequest(e.router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	rr := testutil.DoRequest(e.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")
}
