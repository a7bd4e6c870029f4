// Package oidcidp is an identity.Provider backed by an OpenID Connect
// issuer. Sign-in uses the resource owner password grant, ID tokens are
// verified against the issuer's keys and the refresh token is persisted so
// the subject can be restored after a restart.
package oidcidp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// expirySkew is how early a cached ID token is treated as expired.
	expirySkew = 5 * time.Minute

	// refreshTimeout bounds a shared refresh, which outlives the caller
	// that started it.
	refreshTimeout = 30 * time.Second

	invalidGrant = "invalid_grant"
)

var _ identity.Provider = (*Provider)(nil)

// Config holds the issuer and client settings.
type Config struct {
	IssuerURL       string
	ClientID        string
	ClientSecret    string
	RegistrationURL string
	AccountURL      string
	Scopes          []string
}

type Provider struct {
	oauth           oauth2.Config
	verifier        *oidc.IDTokenVerifier
	httpClient      *http.Client
	registrationURL string
	accountURL      string
	store           TokenStore
	nowFunc         func() time.Time

	refreshes singleflight.Group
	listeners identity.Listeners

	lock    sync.RWMutex
	current *subject
	// generation changes on every sign-in and sign-out so a slow Restore
	// can tell it has been overtaken.
	generation uint64
}

// Option defines a function type to modify the Provider instance.
type Option func(*Provider)

func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

// WithTokenStore sets where the refresh token is kept. Without it nothing
// is persisted.
func WithTokenStore(store TokenStore) Option {
	return func(p *Provider) {
		p.store = store
	}
}

// WithNowFunc sets the clock used for cache expiry (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(p *Provider) {
		p.nowFunc = now
	}
}

// New runs OIDC discovery against cfg.IssuerURL.
func New(ctx context.Context, cfg Config, options ...Option) (*Provider, error) {
	p := &Provider{
		httpClient:      http.DefaultClient,
		registrationURL: cfg.RegistrationURL,
		accountURL:      cfg.AccountURL,
		store:           noopStore{},
		nowFunc:         time.Now,
	}
	for _, opt := range options {
		opt(p)
	}

	discovered, err := oidc.NewProvider(p.clientContext(ctx), cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcidp.New] oidc.NewProvider")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}
	p.oauth = oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     discovered.Endpoint(),
		Scopes:       scopes,
	}
	p.verifier = discovered.Verifier(&oidc.Config{
		ClientID: cfg.ClientID,
		Now:      p.nowFunc,
	})
	return p, nil
}

// clientContext makes oauth2 and go-oidc use the configured HTTP client.
func (p *Provider) clientContext(ctx context.Context) context.Context {
	return oidc.ClientContext(context.WithValue(ctx, oauth2.HTTPClient, p.httpClient), p.httpClient)
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (identity.Subject, error) {
	token, err := p.oauth.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		if isInvalidGrant(err) {
			return nil, identity.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "[Provider.SignIn] PasswordCredentialsToken")
	}

	s, err := p.newSubject(ctx, token)
	if err != nil {
		return nil, err
	}
	p.setCurrent(s)
	return s, nil
}

type registrationRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp creates the account at the registration endpoint and signs in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (identity.Subject, error) {
	if p.registrationURL == "" {
		return nil, errors.New("[Provider.SignUp] no registration url configured")
	}

	payload, err := json.Marshal(registrationRequest{Email: email, Password: password})
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.SignUp] json.Marshal")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.registrationURL, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.SignUp] NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.SignUp] registration request")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))

	switch {
	case resp.StatusCode == http.StatusConflict:
		return nil, identity.ErrEmailInUse
	case resp.StatusCode == http.StatusBadRequest:
		return nil, errors.Wrapf(identity.ErrWeakPassword, "[Provider.SignUp] %s", bytes.TrimSpace(body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Errorf("[Provider.SignUp] registration failed (%d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return p.SignIn(ctx, email, password)
}

func (p *Provider) SignOut(_ context.Context) error {
	p.lock.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	p.generation++
	p.lock.Unlock()

	err := p.store.Delete()
	if wasSignedIn {
		p.listeners.Notify(nil)
	}
	return errors.Wrap(err, "[Provider.SignOut]")
}

func (p *Provider) CurrentSubject() identity.Subject {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.current == nil {
		return nil
	}
	return p.current
}

func (p *Provider) OnSubjectChanged(fn func(identity.Subject)) func() {
	return p.listeners.Subscribe(fn)
}

// Restore signs the persisted subject back in. It returns nil, nil when
// nothing is stored and identity.ErrSubjectRejected when the issuer no
// longer accepts the stored refresh token. A sign-in or sign-out that
// happens while Restore runs wins: the restored subject is discarded and
// whatever is current afterwards is returned.
func (p *Provider) Restore(ctx context.Context) (identity.Subject, error) {
	p.lock.RLock()
	current, generation := p.current, p.generation
	p.lock.RUnlock()
	if current != nil {
		return current, nil
	}

	stored, err := p.store.Load()
	if err != nil {
		return nil, errors.Wrap(err, "[Provider.Restore]")
	}
	if stored == nil {
		return nil, nil
	}

	token, err := p.refreshToken(ctx, stored.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrSubjectRejected) && !p.overtaken(generation) {
			_ = p.store.Delete()
		}
		return nil, err
	}

	s, err := p.newSubject(ctx, token)
	if err != nil {
		return nil, err
	}

	p.lock.Lock()
	if p.generation != generation {
		current := p.current
		p.lock.Unlock()
		log.Debug().Str("subject", s.ID()).Msg("Restore overtaken by a newer sign-in, discarding")
		if current == nil {
			return nil, nil
		}
		return current, nil
	}
	p.current = s
	p.generation++
	p.lock.Unlock()

	p.persist(s)
	p.listeners.Notify(s)
	log.Debug().Str("subject", s.ID()).Msg("Restored persisted subject")
	return s, nil
}

func (p *Provider) overtaken(generation uint64) bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.generation != generation
}

func (p *Provider) setCurrent(s *subject) {
	p.lock.Lock()
	p.current = s
	p.generation++
	p.lock.Unlock()

	p.persist(s)
	p.listeners.Notify(s)
}

// persistIfCurrent saves a rotated refresh token unless the subject has
// since been signed out or replaced.
func (p *Provider) persistIfCurrent(s *subject) {
	p.lock.RLock()
	current := p.current == s
	p.lock.RUnlock()
	if current {
		p.persist(s)
	}
}

func (p *Provider) persist(s *subject) {
	s.mu.Lock()
	stored := StoredToken{Subject: s.id, Email: s.email, RefreshToken: s.refreshToken}
	s.mu.Unlock()

	if stored.RefreshToken == "" {
		return
	}
	if err := p.store.Save(stored); err != nil {
		log.Err(err).Str("subject", stored.Subject).Msg("Persisting refresh token failed")
	}
}

// newSubject verifies the ID token in an oauth2 token response.
func (p *Provider) newSubject(ctx context.Context, token *oauth2.Token) (*subject, error) {
	idToken, rawIDToken, err := p.verifyToken(ctx, token)
	if err != nil {
		return nil, err
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[Provider.newSubject] Claims")
	}

	return &subject{
		provider:     p,
		id:           idToken.Subject,
		email:        claims.Email,
		idToken:      rawIDToken,
		expiry:       idToken.Expiry,
		refreshToken: token.RefreshToken,
	}, nil
}

func (p *Provider) verifyToken(ctx context.Context, token *oauth2.Token) (*oidc.IDToken, string, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", errors.New("[Provider.verifyToken] no id_token in token response")
	}
	idToken, err := p.verifier.Verify(p.clientContext(ctx), rawIDToken)
	if err != nil {
		return nil, "", errors.Wrap(err, "[Provider.verifyToken] Verify")
	}
	return idToken, rawIDToken, nil
}

// refreshToken redeems a refresh token. invalid_grant means the subject
// is gone for good.
func (p *Provider) refreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := p.oauth.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		if isInvalidGrant(err) {
			return nil, identity.ErrSubjectRejected
		}
		return nil, errors.Wrap(err, "[Provider.refreshToken]")
	}
	return token, nil
}

func isInvalidGrant(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == invalidGrant
}

type noopStore struct{}

func (noopStore) Load() (*StoredToken, error) { return nil, nil }
func (noopStore) Save(StoredToken) error      { return nil }
func (noopStore) Delete() error               { return nil }
