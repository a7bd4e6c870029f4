package auth

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProfileNotCreated = errors.New("contractor profile could not be created")
)

// ProfileError reports a contractor profile the backend refused to create.
// It matches ErrProfileNotCreated and unwraps to the backend failure.
type ProfileError struct {
	Err error
}

func (e *ProfileError) Error() string {
	return ErrProfileNotCreated.Error() + ": " + e.Err.Error()
}

func (e *ProfileError) Is(target error) bool {
	return target == ErrProfileNotCreated
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}
