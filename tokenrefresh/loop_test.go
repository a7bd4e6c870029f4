package tokenrefresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type stubSubject struct{}

func (stubSubject) ID() string    { return "user-1" }
func (stubSubject) Email() string { return "user@example.com" }
func (stubSubject) Credential(context.Context, bool) (string, error) {
	return "", nil
}
func (stubSubject) Delete(context.Context) error { return nil }

type stubRefresher struct {
	mu       sync.Mutex
	subject  identity.Subject
	err      error
	forced   int
	inFlight int
	overlaps int
	delay    time.Duration
}

func (s *stubRefresher) ActiveSubject() identity.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subject
}

func (s *stubRefresher) GetValidCredential(ctx context.Context, forceRefresh bool) (credential.Credential, error) {
	s.mu.Lock()
	if forceRefresh {
		s.forced++
	}
	s.inFlight++
	if s.inFlight > 1 {
		s.overlaps++
	}
	delay, err := s.delay, s.err
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return credential.Credential{}, ctx.Err()
		}
	}
	return credential.Credential{}, err
}

func (s *stubRefresher) forcedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

type testFixture struct {
	refresher *stubRefresher
	metrics   *metrics.Metrics
	loop      *Loop
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		refresher: &stubRefresher{subject: stubSubject{}},
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	f.loop = New(f.refresher, WithInterval(5*time.Millisecond), WithMetrics(f.metrics))
	t.Cleanup(f.loop.Stop)
	return f
}

func TestLoop_StartTwiceKeepsOneTicker(t *testing.T) {
	f := setupTestFixture(t)

	f.loop.Start(context.Background())
	f.loop.Start(context.Background())

	require.Equal(t, int32(1), f.loop.live.Load())
	require.True(t, f.loop.Running())
	require.Eventually(t, func() bool { return f.refresher.forcedCount() > 0 }, time.Second, time.Millisecond)
}

func TestLoop_Stop(t *testing.T) {
	f := setupTestFixture(t)

	f.loop.Start(context.Background())
	require.Eventually(t, func() bool { return f.refresher.forcedCount() > 0 }, time.Second, time.Millisecond)

	f.loop.Stop()
	require.False(t, f.loop.Running())
	require.Equal(t, int32(0), f.loop.live.Load())

	count := f.refresher.forcedCount()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, count, f.refresher.forcedCount())

	// idempotent
	f.loop.Stop()
	require.False(t, f.loop.Running())
}

func TestLoop_StopWhenNeverStarted(t *testing.T) {
	f := setupTestFixture(t)
	require.NotPanics(t, f.loop.Stop)
	require.False(t, f.loop.Running())
}

func TestLoop_NoSubjectSkipsRefresh(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.subject = nil

	f.loop.Start(context.Background())
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.CredentialRefreshes.WithLabelValues(metrics.OutcomeSkipped)) > 0
	}, time.Second, time.Millisecond)
	require.Zero(t, f.refresher.forcedCount())
}

func TestLoop_FailuresAreSwallowed(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.err = errors.New("identity provider unavailable")

	f.loop.Start(context.Background())
	require.Eventually(t, func() bool { return f.refresher.forcedCount() >= 3 }, time.Second, time.Millisecond)
	require.True(t, f.loop.Running())
	require.GreaterOrEqual(t, testutil.ToFloat64(f.metrics.CredentialRefreshes.WithLabelValues(metrics.OutcomeFailure)), 2.0)
}

func TestLoop_SlowRefreshDoesNotOverlap(t *testing.T) {
	f := setupTestFixture(t)
	f.refresher.delay = 20 * time.Millisecond

	f.loop.Start(context.Background())
	require.Eventually(t, func() bool { return f.refresher.forcedCount() >= 3 }, time.Second, time.Millisecond)
	f.loop.Stop()

	f.refresher.mu.Lock()
	defer f.refresher.mu.Unlock()
	require.Zero(t, f.refresher.overlaps)
	require.Zero(t, f.refresher.inFlight)
}

func TestLoop_ParentContextEndsLoop(t *testing.T) {
	f := setupTestFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.loop.Start(ctx)
	cancel()
	require.Eventually(t, func() bool { return !f.loop.Running() }, time.Second, time.Millisecond)
}
