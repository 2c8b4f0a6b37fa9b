package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the request-time core.
type Metrics struct {
	GateDecisions     *prometheus.CounterVec
	SessionsRefreshed prometheus.Counter
	PermissionChecks  *prometheus.CounterVec
	TenantLookups     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers metrics on the given registerer. Tests pass a private
// registry so parallel suites don't collide on metric names.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdeck_gate_decisions_total",
			Help: "Request gate outcomes by decision (forwarded, redirected, preflight).",
		}, []string{"decision"}),
		SessionsRefreshed: factory.NewCounter(prometheus.CounterOpts{
			Name: "opsdeck_sessions_refreshed_total",
			Help: "Total number of access tokens minted via refresh rotation.",
		}),
		PermissionChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdeck_permission_checks_total",
			Help: "Permission evaluations by result (granted, denied).",
		}, []string{"result"}),
		TenantLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdeck_tenant_lookups_total",
			Help: "Tenant subdomain resolutions by result (found, not_found, error).",
		}, []string{"result"}),
	}
}

// IncrementGateDecision records one gate outcome.
func (m *Metrics) IncrementGateDecision(decision string) {
	m.GateDecisions.WithLabelValues(decision).Inc()
}

// IncrementSessionsRefreshed records one successful refresh rotation.
func (m *Metrics) IncrementSessionsRefreshed() {
	m.SessionsRefreshed.Inc()
}

// IncrementPermissionCheck records one permission evaluation result.
func (m *Metrics) IncrementPermissionCheck(granted bool) {
	result := "denied"
	if granted {
		result = "granted"
	}
	m.PermissionChecks.WithLabelValues(result).Inc()
}

// IncrementTenantLookup records one tenant resolution result.
func (m *Metrics) IncrementTenantLookup(result string) {
	m.TenantLookups.WithLabelValues(result).Inc()
}
