package credential

import (
	"context"
	"time"

	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultWaitTimeout = 5 * time.Second

// Provider wraps the identity SDK and hands out credentials for the active
// subject.
type Provider struct {
	idp         identity.Provider
	waitTimeout time.Duration
}

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

// WithWaitTimeout sets how long GetValidCredential waits for a subject to
// be restored after process start.
func WithWaitTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		p.waitTimeout = d
	}
}

func NewProvider(idp identity.Provider, options ...ProviderOption) *Provider {
	p := &Provider{
		idp:         idp,
		waitTimeout: defaultWaitTimeout,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// ActiveSubject returns the signed in subject or nil.
func (p *Provider) ActiveSubject() identity.Subject {
	return p.idp.CurrentSubject()
}

// GetCurrentCredential returns the provider's cached credential for the
// active subject, or nil when nobody is signed in.
func (p *Provider) GetCurrentCredential(ctx context.Context) (*Credential, error) {
	subject := p.idp.CurrentSubject()
	if subject == nil {
		return nil, nil
	}
	c, err := p.credentialFor(ctx, subject, false)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// WaitForCredential resolves with the first available credential. When no
// subject is known yet it waits for a subject-change notification for at
// most timeout and fails with ErrAuthTimeout.
func (p *Provider) WaitForCredential(ctx context.Context, timeout time.Duration) (Credential, error) {
	subject, err := p.waitForSubject(ctx, timeout)
	if err != nil {
		return Credential{}, err
	}
	return p.credentialFor(ctx, subject, false)
}

// GetValidCredential returns the cached credential unless forceRefresh is
// set or nothing is cached, in which case it waits for a subject and asks
// the identity provider to mint a fresh one. A subject the provider rejects
// is signed out and ErrSessionExpired is returned.
func (p *Provider) GetValidCredential(ctx context.Context, forceRefresh bool) (Credential, error) {
	if !forceRefresh {
		current, err := p.GetCurrentCredential(ctx)
		switch {
		case errors.Is(err, ErrSessionExpired):
			return Credential{}, err
		case err != nil:
			log.Debug().Err(err).Msg("Cached credential unavailable, minting a new one")
		case current != nil:
			return *current, nil
		}
	}

	subject, err := p.waitForSubject(ctx, p.waitTimeout)
	if err != nil {
		return Credential{}, err
	}
	return p.credentialFor(ctx, subject, true)
}

// waitForSubject returns the current subject, waiting up to timeout for one
// to be restored.
func (p *Provider) waitForSubject(ctx context.Context, timeout time.Duration) (identity.Subject, error) {
	if subject := p.idp.CurrentSubject(); subject != nil {
		return subject, nil
	}

	arrived := make(chan identity.Subject, 1)
	unsubscribe := p.idp.OnSubjectChanged(func(s identity.Subject) {
		if s == nil {
			return
		}
		select {
		case arrived <- s:
		default:
		}
	})
	defer unsubscribe()

	// The subject may have been restored between the first check and the
	// subscription.
	if subject := p.idp.CurrentSubject(); subject != nil {
		return subject, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case subject := <-arrived:
		return subject, nil
	case <-timer.C:
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "[Provider.waitForSubject]")
	}
}

func (p *Provider) credentialFor(ctx context.Context, subject identity.Subject, forceRefresh bool) (Credential, error) {
	raw, err := subject.Credential(ctx, forceRefresh)
	if err != nil {
		if errors.Is(err, identity.ErrSubjectRejected) {
			p.expire(ctx, subject)
			return Credential{}, ErrSessionExpired
		}
		return Credential{}, errors.Wrap(err, "[Provider.credentialFor] subject.Credential")
	}
	c, err := Parse(raw)
	if err != nil {
		return Credential{}, errors.Wrap(err, "[Provider.credentialFor]")
	}
	return c, nil
}

func (p *Provider) expire(ctx context.Context, subject identity.Subject) {
	log.Warn().Str("subject", subject.ID()).Msg("Identity provider rejected subject, signing out")
	if err := p.idp.SignOut(ctx); err != nil {
		log.Err(err).Str("subject", subject.ID()).Msg("Sign out after rejected refresh failed")
	}
}
