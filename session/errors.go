package session

import (
	"errors"
	"fmt"
)

var ErrNoActiveSubject = errors.New("no active subject to establish a session for")

// EstablishError means the backend refused, or could not be reached for,
// the credential-to-session exchange. The caller must sign the subject out.
type EstablishError struct {
	Status  int // 0 when no response was received
	Message string
	Err     error
}

func (e *EstablishError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("session establish failed: %s", e.Message)
	}
	return fmt.Sprintf("session establish failed (%d): %s", e.Status, e.Message)
}

func (e *EstablishError) Unwrap() error {
	return e.Err
}
