package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the Prometheus metrics for the session client. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	CredentialRefreshes *prometheus.CounterVec
	UnauthorizedRetries prometheus.Counter
	SessionEstablishes  *prometheus.CounterVec
	PendingDeletions    prometheus.Counter
}

// New creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CredentialRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contractor_credential_background_refreshes_total",
			Help: "Background credential refresh ticks by outcome",
		}, []string{"outcome"}),
		UnauthorizedRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "contractor_api_unauthorized_retries_total",
			Help: "Requests retried after a 401 and a forced credential refresh",
		}),
		SessionEstablishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contractor_session_establish_total",
			Help: "Backend session exchanges by outcome",
		}, []string{"outcome"}),
		PendingDeletions: factory.NewCounter(prometheus.CounterOpts{
			Name: "contractor_account_pending_deletion_total",
			Help: "Failures intercepted because the account is scheduled for deletion",
		}),
	}
}

func (m *Metrics) IncrementCredentialRefresh(outcome string) {
	if m == nil {
		return
	}
	m.CredentialRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementUnauthorizedRetry() {
	if m == nil {
		return
	}
	m.UnauthorizedRetries.Inc()
}

func (m *Metrics) IncrementSessionEstablish(outcome string) {
	if m == nil {
		return
	}
	m.SessionEstablishes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementPendingDeletion() {
	if m == nil {
		return
	}
	m.PendingDeletions.Inc()
}
