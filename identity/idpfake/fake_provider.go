// Package idpfake is an in-memory identity provider used by tests and the
// CLI demo. It issues HS256 ID tokens and lets callers script cold-start
// restores, revocations and claim changes.
package idpfake

import (
	"context"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultIssuer    = "https://idp.fake.local"
	defaultTokenTTL  = time.Hour
	minPasswordChars = 6
)

var _ identity.Provider = (*FakeProvider)(nil)

type account struct {
	id           string
	email        string
	passwordHash string
	claims       map[string]any
	revoked      bool
	forcedCount  int
	mintCount    int
}

type FakeProvider struct {
	accounts  map[string]*account // email -> account
	current   *fakeSubject
	listeners identity.Listeners
	secret    []byte
	tokenTTL  time.Duration
	nowFunc   func() time.Time
	lock      sync.RWMutex
}

// Option defines a function type to modify the FakeProvider instance.
type Option func(*FakeProvider)

func WithTokenTTL(ttl time.Duration) Option {
	return func(p *FakeProvider) {
		p.tokenTTL = ttl
	}
}

// WithNowFunc sets the clock used for iat/exp (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(p *FakeProvider) {
		p.nowFunc = now
	}
}

func WithSecret(secret []byte) Option {
	return func(p *FakeProvider) {
		p.secret = secret
	}
}

func NewFakeProvider(options ...Option) *FakeProvider {
	p := &FakeProvider{
		accounts: make(map[string]*account),
		secret:   []byte(uuid.New().String()),
		tokenTTL: defaultTokenTTL,
		nowFunc:  time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// AddAccount creates an account without signing it in.
func (p *FakeProvider) AddAccount(email, password string) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	a, err := p.addAccountLocked(email, password)
	if err != nil {
		return "", err
	}
	return a.id, nil
}

func (p *FakeProvider) addAccountLocked(email, password string) (*account, error) {
	if _, ok := p.accounts[email]; ok {
		return nil, identity.ErrEmailInUse
	}
	if len(password) < minPasswordChars {
		return nil, identity.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, errors.Wrap(err, "[FakeProvider.addAccount] bcrypt")
	}
	a := &account{
		id:           uuid.New().String(),
		email:        email,
		passwordHash: string(hash),
		claims:       map[string]any{},
	}
	p.accounts[email] = a
	return a, nil
}

func (p *FakeProvider) SignUp(_ context.Context, email, password string) (identity.Subject, error) {
	p.lock.Lock()
	a, err := p.addAccountLocked(email, password)
	if err != nil {
		p.lock.Unlock()
		return nil, err
	}
	s := p.signInLocked(a)
	p.lock.Unlock()

	p.listeners.Notify(s)
	return s, nil
}

func (p *FakeProvider) SignIn(_ context.Context, email, password string) (identity.Subject, error) {
	p.lock.Lock()
	a, ok := p.accounts[email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		p.lock.Unlock()
		return nil, identity.ErrInvalidCredentials
	}
	s := p.signInLocked(a)
	p.lock.Unlock()

	p.listeners.Notify(s)
	return s, nil
}

func (p *FakeProvider) signInLocked(a *account) *fakeSubject {
	s := &fakeSubject{provider: p, id: a.id, email: a.email}
	p.current = s
	return s
}

func (p *FakeProvider) SignOut(_ context.Context) error {
	p.lock.Lock()
	wasSignedIn := p.current != nil
	p.current = nil
	p.lock.Unlock()

	if wasSignedIn {
		p.listeners.Notify(nil)
	}
	return nil
}

func (p *FakeProvider) CurrentSubject() identity.Subject {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.current == nil {
		return nil
	}
	return p.current
}

func (p *FakeProvider) OnSubjectChanged(fn func(identity.Subject)) func() {
	return p.listeners.Subscribe(fn)
}

// ListenerCount returns the number of live subject-change subscriptions.
func (p *FakeProvider) ListenerCount() int {
	return p.listeners.Len()
}

// RestoreAfter simulates the SDK restoring persisted auth state after a
// cold start: the account becomes the current subject after delay and
// listeners are notified. The returned func cancels a pending restore.
func (p *FakeProvider) RestoreAfter(email string, delay time.Duration) func() bool {
	timer := time.AfterFunc(delay, func() {
		p.lock.Lock()
		a, ok := p.accounts[email]
		if !ok {
			p.lock.Unlock()
			return
		}
		s := p.signInLocked(a)
		p.lock.Unlock()

		p.listeners.Notify(s)
	})
	return timer.Stop
}

// Revoke makes every later refresh for the account fail.
func (p *FakeProvider) Revoke(email string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if a, ok := p.accounts[email]; ok {
		a.revoked = true
	}
}

// SetClaims replaces the custom claims. Like a real provider, cached
// tokens keep the old claims until a forced refresh.
func (p *FakeProvider) SetClaims(email string, claims map[string]any) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if a, ok := p.accounts[email]; ok {
		a.claims = claims
	}
}

// ForcedRefreshCount returns how many forced refreshes the account saw.
func (p *FakeProvider) ForcedRefreshCount(email string) int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if a, ok := p.accounts[email]; ok {
		return a.forcedCount
	}
	return 0
}

// MintCount returns how many tokens were minted for the account, forced or
// not.
func (p *FakeProvider) MintCount(email string) int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if a, ok := p.accounts[email]; ok {
		return a.mintCount
	}
	return 0
}

// HasAccount reports whether the email is registered.
func (p *FakeProvider) HasAccount(email string) bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	_, ok := p.accounts[email]
	return ok
}

// Verify checks a token minted by this provider and returns its claims.
func (p *FakeProvider) Verify(rawToken string) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	token, err := jwtlib.ParseWithClaims(rawToken, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	}, jwtlib.WithTimeFunc(p.nowFunc))
	if err != nil {
		return nil, errors.Wrap(err, "[FakeProvider.Verify] ParseWithClaims")
	}
	if !token.Valid {
		return nil, errors.New("[FakeProvider.Verify] invalid token")
	}
	return claims, nil
}

func (p *FakeProvider) mint(email string, forced bool) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	a, ok := p.accounts[email]
	if !ok || a.revoked {
		return "", identity.ErrSubjectRejected
	}

	now := p.nowFunc()
	claims := jwtlib.MapClaims{
		"iss":   defaultIssuer,
		"sub":   a.id,
		"email": a.email,
		"iat":   now.Unix(),
		"exp":   now.Add(p.tokenTTL).Unix(),
		"jti":   uuid.New().String(),
	}
	for k, v := range a.claims {
		claims[k] = v
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", errors.Wrap(err, "[FakeProvider.mint] SignedString")
	}
	a.mintCount++
	if forced {
		a.forcedCount++
	}
	return signed, nil
}

func (p *FakeProvider) deleteAccount(email string) error {
	p.lock.Lock()
	a, ok := p.accounts[email]
	if !ok {
		p.lock.Unlock()
		return errors.New("[FakeProvider.deleteAccount] not found")
	}
	delete(p.accounts, email)
	signedOut := p.current != nil && p.current.id == a.id
	if signedOut {
		p.current = nil
	}
	p.lock.Unlock()

	if signedOut {
		p.listeners.Notify(nil)
	}
	return nil
}
