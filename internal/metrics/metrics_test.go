package metrics_test

import (
	"testing"

	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.IncrementCredentialRefresh(metrics.OutcomeSuccess)
	m.IncrementCredentialRefresh(metrics.OutcomeFailure)
	m.IncrementCredentialRefresh(metrics.OutcomeFailure)
	m.IncrementUnauthorizedRetry()
	m.IncrementSessionEstablish(metrics.OutcomeSuccess)
	m.IncrementPendingDeletion()

	require.Equal(t, 1.0, testutil.ToFloat64(m.CredentialRefreshes.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.CredentialRefreshes.WithLabelValues(metrics.OutcomeFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.UnauthorizedRetries))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionEstablishes.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PendingDeletions))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	require.NotPanics(t, func() {
		m.IncrementCredentialRefresh(metrics.OutcomeSuccess)
		m.IncrementUnauthorizedRetry()
		m.IncrementSessionEstablish(metrics.OutcomeFailure)
		m.IncrementPendingDeletion()
	})
}
