package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared across services. A single
// struct keeps registration in one place and makes wiring explicit.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	LockoutsTriggered  prometheus.Counter
	ShareCodesCreated  prometheus.Counter
	ClaimsTotal        *prometheus.CounterVec
	ClaimDuration      prometheus.Histogram
	AuditDropped       prometheus.Counter
	InsightFallbacks   prometheus.Counter
	ViewsAssembled     prometheus.Counter
	RegistrationsTotal prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mindwell_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		LockoutsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindwell_login_lockouts_total",
			Help: "Accounts locked after repeated login failures",
		}),
		ShareCodesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindwell_share_codes_created_total",
			Help: "Share codes minted by patients",
		}),
		ClaimsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mindwell_share_claims_total",
			Help: "Share code claim attempts by outcome",
		}, []string{"outcome"}),
		ClaimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindwell_share_claim_duration_seconds",
			Help:    "Latency of share code claims including view assembly",
			Buckets: prometheus.DefBuckets,
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindwell_audit_entries_dropped_total",
			Help: "Audit entries that could not be persisted",
		}),
		InsightFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindwell_insight_fallbacks_total",
			Help: "Insight service calls that degraded to the neutral result",
		}),
		ViewsAssembled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindwell_shared_views_assembled_total",
			Help: "Permission-filtered views assembled for clinicians",
		}),
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mindwell_registrations_total",
			Help: "Identities registered",
		}),
	}
}
