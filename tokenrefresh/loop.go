// Package tokenrefresh keeps the signed in subject's credential fresh by
// forcing a refresh on a fixed interval.
package tokenrefresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/jrsteele09/go-contractor-session/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultInterval sits inside a 60 minute credential lifetime.
const DefaultInterval = 50 * time.Minute

// Refresher is the part of *credential.Provider the loop needs.
type Refresher interface {
	ActiveSubject() identity.Subject
	GetValidCredential(ctx context.Context, forceRefresh bool) (credential.Credential, error)
}

// Loop is either stopped or running exactly one ticker goroutine.
type Loop struct {
	credentials Refresher
	interval    time.Duration
	metrics     *metrics.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// live counts running ticker goroutines.
	live atomic.Int32
}

// Option defines a function type to modify the Loop instance.
type Option func(*Loop)

func WithInterval(d time.Duration) Option {
	return func(l *Loop) {
		l.interval = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

func New(credentials Refresher, options ...Option) *Loop {
	l := &Loop{
		credentials: credentials,
		interval:    DefaultInterval,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Start stops any running loop and starts a new one. The loop ends when
// Stop is called or ctx is done.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	l.live.Add(1)
	go l.run(loopCtx, done)
	log.Debug().Dur("interval", l.interval).Msg("Credential refresh loop started")
}

// Stop cancels the loop and waits for an in-flight refresh to return. It is
// safe to call when the loop is not running.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
}

// Running reports whether a loop goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *Loop) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
	log.Debug().Msg("Credential refresh loop stopped")
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.live.Add(-1)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick runs inline so refreshes never overlap. Failures are logged only.
func (l *Loop) tick(ctx context.Context) {
	subject := l.credentials.ActiveSubject()
	if subject == nil {
		l.metrics.IncrementCredentialRefresh(metrics.OutcomeSkipped)
		return
	}

	if _, err := l.credentials.GetValidCredential(ctx, true); err != nil {
		if ctx.Err() != nil {
			return
		}
		l.metrics.IncrementCredentialRefresh(metrics.OutcomeFailure)
		log.Warn().Err(err).Str("subject", subject.ID()).Msg("Background credential refresh failed")
		return
	}
	l.metrics.IncrementCredentialRefresh(metrics.OutcomeSuccess)
}
