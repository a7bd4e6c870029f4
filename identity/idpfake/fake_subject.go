package idpfake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-contractor-session/identity"
)

var _ identity.Subject = (*fakeSubject)(nil)

type fakeSubject struct {
	provider *FakeProvider
	id       string
	email    string

	mu     sync.Mutex
	cached string
	expiry time.Time
}

func (s *fakeSubject) ID() string    { return s.id }
func (s *fakeSubject) Email() string { return s.email }

// Credential returns the cached token while it is valid, otherwise it
// mints a new one. Revoked accounts only fail once a new token is needed.
func (s *fakeSubject) Credential(ctx context.Context, forceRefresh bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !forceRefresh && s.cached != "" && s.provider.nowFunc().Before(s.expiry) {
		return s.cached, nil
	}

	token, err := s.provider.mint(s.email, forceRefresh)
	if err != nil {
		return "", err
	}
	s.cached = token
	s.expiry = s.provider.nowFunc().Add(s.provider.tokenTTL)
	return token, nil
}

func (s *fakeSubject) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.provider.deleteAccount(s.email)
}
