package credential

import "errors"

var (
	// ErrAuthTimeout means no subject appeared within the wait window.
	ErrAuthTimeout = errors.New("timed out waiting for a signed in user")
	// ErrSessionExpired means the identity provider rejected the subject.
	// The subject has been signed out.
	ErrSessionExpired = errors.New("session expired, please sign in again")
)
