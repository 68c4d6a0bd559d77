package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindwell/internal/identity"
	identitystore "mindwell/internal/identity/store"
	"mindwell/internal/platform/fieldcrypt"
	"mindwell/internal/records/view"
	"mindwell/internal/sharing"
	"mindwell/internal/sharing/store"
	dErrors "mindwell/pkg/domain-errors"
)

const testSecret = "unit-test-secret-0123456789abcdef"

// stubAssembler echoes the connection it was handed so tests can check the
// re-read state.
type stubAssembler struct {
	mu       sync.Mutex
	lastConn *sharing.Connection
}

func (a *stubAssembler) Assemble(_ context.Context, conn *sharing.Connection) (*view.SharedView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastConn = conn
	return &view.SharedView{PatientID: conn.PatientID, GeneratedAt: time.Now()}, nil
}

type fixture struct {
	svc       *Service
	doctors   *identitystore.InMemoryIdentityStore
	assembler *stubAssembler
	patientID uuid.UUID
	clock     *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	current := time.Now()
	doctors := identitystore.NewInMemoryIdentityStore()
	assembler := &stubAssembler{}
	cipher, err := fieldcrypt.New(testSecret)
	require.NoError(t, err)

	svc, err := New(store.NewInMemoryConnectionStore(), doctors, assembler, cipher, testSecret,
		WithClock(func() time.Time { return current }),
	)
	require.NoError(t, err)
	return &fixture{
		svc:       svc,
		doctors:   doctors,
		assembler: assembler,
		patientID: uuid.New(),
		clock:     &current,
	}
}

func (f *fixture) addDoctor(t *testing.T, verified bool) uuid.UUID {
	t.Helper()
	ident := &identity.Identity{
		ID:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		Role:     identity.RoleDoctor,
		FullName: "Dr Example",
		Verified: verified,
	}
	require.NoError(t, f.doctors.Create(context.Background(), ident))
	return ident.ID
}

func (f *fixture) create(t *testing.T, ttlHours int) *CreateResult {
	t.Helper()
	result, err := f.svc.Create(context.Background(), f.patientID, CreateRequest{
		Permissions: sharing.Permissions{Mood: true, Medications: true},
		TTLHours:    ttlHours,
	})
	require.NoError(t, err)
	return result
}

func TestCreateReturnsCodeExactlyOnce(t *testing.T) {
	f := newFixture(t)
	result := f.create(t, 24)

	assert.Len(t, result.Code, 12)
	assert.NotContains(t, result.Connection.EncryptedCode, result.Code)
	assert.NotEqual(t, result.Code, result.Connection.CodeHash)

	sessions, err := f.svc.ListActive(context.Background(), f.patientID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sharing.StatusPending, sessions[0].Status)
}

func TestCreateRejectsBadTTL(t *testing.T) {
	f := newFixture(t)
	for _, ttl := range []int{0, -1, 73} {
		_, err := f.svc.Create(context.Background(), f.patientID, CreateRequest{TTLHours: ttl})
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeValidation, dErrors.CodeOf(err))
	}
}

func TestClaimHappyPath(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, true)
	created := f.create(t, 24)

	result, err := f.svc.Claim(context.Background(), doctorID, created.Code)
	require.NoError(t, err)
	assert.Equal(t, created.Connection.ID, result.ConnectionID)
	assert.Equal(t, f.patientID, result.View.PatientID)
	assert.True(t, result.Permissions.Mood)

	sessions, err := f.svc.ListActive(context.Background(), f.patientID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, sharing.StatusClaimed, sessions[0].Status)
	assert.Equal(t, 1, sessions[0].AccessCount)
}

func TestClaimIsCaseInsensitiveOnInput(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, true)
	created := f.create(t, 24)

	_, err := f.svc.Claim(context.Background(), doctorID, "  "+created.Code+" ")
	require.NoError(t, err)
}

func TestClaimRejectsInvalidCode(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, true)
	f.create(t, 24)

	_, err := f.svc.Claim(context.Background(), doctorID, "WRONGCODE234")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestClaimRejectsUnverifiedDoctor(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, false)
	created := f.create(t, 24)

	_, err := f.svc.Claim(context.Background(), doctorID, created.Code)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
}

func TestClaimRejectsUnknownDoctor(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, 24)

	_, err := f.svc.Claim(context.Background(), uuid.New(), created.Code)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestClaimTTLBoundary(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, true)
	created := f.create(t, 1)

	*f.clock = f.clock.Add(59 * time.Minute)
	_, err := f.svc.Claim(context.Background(), doctorID, created.Code)
	require.NoError(t, err)

	late := f.create(t, 1)
	*f.clock = f.clock.Add(61 * time.Minute)
	_, err = f.svc.Claim(context.Background(), doctorID, late.Code)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
}

func TestClaimAfterRevokeFails(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, true)
	created := f.create(t, 24)

	require.NoError(t, f.svc.Revoke(context.Background(), f.patientID, created.Connection.ID, "patient request"))

	_, err := f.svc.Claim(context.Background(), doctorID, created.Code)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeForbidden, dErrors.CodeOf(err))
}

func TestRevokeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, 24)
	ctx := context.Background()

	require.NoError(t, f.svc.Revoke(ctx, f.patientID, created.Connection.ID, "first"))
	require.NoError(t, f.svc.Revoke(ctx, f.patientID, created.Connection.ID, "second"))
}

func TestRevokeChecksOwnership(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, 24)

	err := f.svc.Revoke(context.Background(), uuid.New(), created.Connection.ID, "not mine")
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestSecondDoctorCannotClaim(t *testing.T) {
	f := newFixture(t)
	first := f.addDoctor(t, true)
	second := f.addDoctor(t, true)
	created := f.create(t, 24)

	_, err := f.svc.Claim(context.Background(), first, created.Code)
	require.NoError(t, err)

	_, err = f.svc.Claim(context.Background(), second, created.Code)
	require.Error(t, err)
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}

func TestSameDoctorRepeatAccessIncrementsCount(t *testing.T) {
	f := newFixture(t)
	doctorID := f.addDoctor(t, true)
	created := f.create(t, 24)
	ctx := context.Background()

	_, err := f.svc.Claim(ctx, doctorID, created.Code)
	require.NoError(t, err)
	_, err = f.svc.Claim(ctx, doctorID, created.Code)
	require.NoError(t, err)

	sessions, err := f.svc.ListActive(ctx, f.patientID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].AccessCount)
}

func TestConcurrentClaimHasOneWinner(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, 24)

	const contenders = 16
	doctorIDs := make([]uuid.UUID, contenders)
	for i := range doctorIDs {
		doctorIDs[i] = f.addDoctor(t, true)
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	start := make(chan struct{})
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Claim(context.Background(), doctorIDs[i], created.Code)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
		}
	}
	assert.Equal(t, 1, winners)
}
