package errors

import "errors"

// Common errors shared across the session packages
var (
	// Identity errors
	ErrNotSignedIn = errors.New("not signed in")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// Transport errors
	ErrNotJSON = errors.New("response body is not json")
)
