package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"mindwell/internal/identity"
	idjwt "mindwell/internal/identity/jwt"
)

// AccessToken mints a real signed token so handler tests exercise the actual
// auth middleware instead of bypassing it.
func AccessToken(t *testing.T, tokens *idjwt.Service, identityID uuid.UUID, role identity.Role) string {
	t.Helper()
	token, _, err := tokens.GenerateAccessToken(identityID, role, time.Hour)
	require.NoError(t, err)
	return token
}

// WithBearer attaches a bearer token to the request.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
