// Package identity describes the identity provider boundary consumed by the
// session packages. The provider is the single source of truth for which
// subject is signed in.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrSubjectRejected is returned when the provider refuses to refresh a
	// subject's credential, e.g. the account was revoked or deleted.
	ErrSubjectRejected    = errors.New("subject rejected by identity provider")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakPassword       = errors.New("password too weak")
)

// Subject is the principal currently authenticated with the provider.
type Subject interface {
	ID() string
	Email() string
	// Credential returns a signed ID token. With forceRefresh the provider
	// mints a new one even if the cached token is still valid.
	Credential(ctx context.Context, forceRefresh bool) (string, error)
	Delete(ctx context.Context) error
}

// Provider is the identity SDK as seen by the client.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Subject, error)
	SignUp(ctx context.Context, email, password string) (Subject, error)
	SignOut(ctx context.Context) error
	// CurrentSubject returns nil when nobody is signed in.
	CurrentSubject() Subject
	// OnSubjectChanged registers fn for sign-in, sign-out and restore
	// events. The returned func removes the registration.
	OnSubjectChanged(fn func(Subject)) (unsubscribe func())
}
