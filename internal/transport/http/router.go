// Package httptransport is the thin HTTP layer. Handlers parse, delegate to
// domain services, and serialize; business rules live below.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "mindwell/pkg/domain-errors"
	"mindwell/pkg/platform/middleware/metadata"
)

type Router struct {
	auth    *AuthHandler
	doctor  *DoctorHandler
	records *RecordsHandler
	verify  TokenVerifier
	logger  *slog.Logger
	health  func() error
}

func NewRouter(auth *AuthHandler, doctor *DoctorHandler, records *RecordsHandler, verify TokenVerifier, logger *slog.Logger, health func() error) http.Handler {
	rt := &Router{
		auth:    auth,
		doctor:  doctor,
		records: records,
		verify:  verify,
		logger:  logger,
		health:  health,
	}

	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", rt.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", auth.handleRegister)
		r.Post("/login", auth.handleLogin)
		r.Post("/refresh", auth.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(verify, logger))
			r.Post("/logout", auth.handleLogout)
			r.Get("/me", auth.handleMe)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(verify, logger))

		r.Route("/doctor", func(r chi.Router) {
			r.Post("/session", doctor.handleCreateSession)
			r.Get("/sessions", doctor.handleListSessions)
			r.Delete("/sessions/{id}", doctor.handleRevokeSession)
			r.Post("/access", doctor.handleClaim)
		})

		r.Post("/mood", records.handleLogMood)
		r.Post("/journal", records.handleCreateJournal)
		r.Post("/voice", records.handleLogVoice)
		r.Post("/medications/log", records.handleLogMedication)
	})

	return r
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		if err := rt.health(); err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "dependency unhealthy"))
			return
		}
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError is the single domain-to-HTTP translation point. Internal detail
// never reaches the wire; unknown errors collapse to a generic 500 envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := dErrors.MessageOf(err)
	if code == dErrors.CodeInternal {
		message = "internal error"
	}
	respond(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": message,
	})
}
