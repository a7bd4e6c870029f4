package oidcidp

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

var _ identity.Subject = (*subject)(nil)

type subject struct {
	provider *Provider
	id       string
	email    string

	mu           sync.Mutex
	idToken      string
	expiry       time.Time
	refreshToken string
}

func (s *subject) ID() string    { return s.id }
func (s *subject) Email() string { return s.email }

// Credential returns the cached ID token unless it is close to expiry or a
// refresh is forced. Concurrent refreshes share one token request, which is
// detached from any single caller so one cancelled caller does not fail the
// others.
func (s *subject) Credential(ctx context.Context, forceRefresh bool) (string, error) {
	s.mu.Lock()
	if !forceRefresh && s.idToken != "" && s.provider.nowFunc().Add(expirySkew).Before(s.expiry) {
		token := s.idToken
		s.mu.Unlock()
		return token, nil
	}
	s.mu.Unlock()

	result := s.provider.refreshes.DoChan(s.id, func() (interface{}, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(refreshCtx)
	})

	select {
	case r := <-result:
		if r.Err != nil {
			return "", r.Err
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "[subject.Credential]")
	}
}

func (s *subject) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		return "", errors.Wrap(identity.ErrSubjectRejected, "[subject.refresh] no refresh token")
	}

	token, err := s.provider.refreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	idToken, raw, err := s.provider.verifyToken(ctx, token)
	if err != nil {
		return "", err
	}
	if idToken.Subject != s.id {
		return "", errors.Wrapf(identity.ErrSubjectRejected, "[subject.refresh] subject changed to %s", idToken.Subject)
	}

	s.mu.Lock()
	s.idToken = raw
	s.expiry = idToken.Expiry
	rotated := token.RefreshToken != "" && token.RefreshToken != s.refreshToken
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}
	s.mu.Unlock()

	if rotated {
		s.provider.persistIfCurrent(s)
	}
	return raw, nil
}

// Delete removes the account at the issuer's account endpoint and signs out.
func (s *subject) Delete(ctx context.Context) error {
	if s.provider.accountURL == "" {
		return errors.New("[subject.Delete] no account url configured")
	}
	credential, err := s.Credential(ctx, false)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.provider.accountURL, nil)
	if err != nil {
		return errors.Wrap(err, "[subject.Delete] NewRequestWithContext")
	}
	(&oauth2.Token{AccessToken: credential, TokenType: "Bearer"}).SetAuthHeader(req)

	resp, err := s.provider.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[subject.Delete] account request")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("[subject.Delete] account deletion failed (%d)", resp.StatusCode)
	}
	return s.provider.SignOut(ctx)
}
