package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"mindwell/internal/identity"
	dErrors "mindwell/pkg/domain-errors"
)

// TokenVerifier checks a bearer token and returns the subject. Satisfied by
// the identity service.
type TokenVerifier interface {
	Verify(accessToken string) (uuid.UUID, identity.Role, error)
}

type contextKeyIdentityID struct{}
type contextKeyRole struct{}

// IdentityID returns the authenticated subject, or uuid.Nil outside an
// authenticated request.
func IdentityID(ctx context.Context) uuid.UUID {
	id, ok := ctx.Value(contextKeyIdentityID{}).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) identity.Role {
	role, ok := ctx.Value(contextKeyRole{}).(identity.Role)
	if !ok {
		return ""
	}
	return role
}

// RequireAuth rejects requests without a valid bearer token and stores the
// subject and role on the request context.
func RequireAuth(verify TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			identityID, role, err := verify.Verify(token)
			if err != nil {
				logger.WarnContext(r.Context(), "rejected bearer token", "error", err)
				writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyIdentityID{}, identityID)
			ctx = context.WithValue(ctx, contextKeyRole{}, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole guards a handler behind a single role.
func requireRole(ctx context.Context, want identity.Role) error {
	if RoleFromContext(ctx) != want {
		return dErrors.New(dErrors.CodeForbidden, "insufficient role")
	}
	return nil
}
