package auth

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	minPasswordLength = 6
	maxDisplayName    = 100
)

// Validator checks sign-in and registration input before it reaches the
// identity provider.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateUserCredentials validates login credentials
func (v *Validator) ValidateUserCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.Wrap(ErrInvalidInput, "email is required")
	}

	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") || strings.ContainsAny(email, " \t\r\n") {
		return errors.Wrap(ErrInvalidInput, "invalid email format")
	}

	if password == "" {
		return errors.Wrap(ErrInvalidInput, "password is required")
	}
	return nil
}

// ValidateRegistration applies the login rules plus the provider's minimum
// password length and a display name limit.
func (v *Validator) ValidateRegistration(params RegisterParams) error {
	if err := v.ValidateUserCredentials(params.Email, params.Password); err != nil {
		return err
	}
	if len(params.Password) < minPasswordLength {
		return errors.Wrapf(ErrInvalidInput, "password must be at least %d characters", minPasswordLength)
	}
	if len(strings.TrimSpace(params.DisplayName)) > maxDisplayName {
		return errors.Wrapf(ErrInvalidInput, "display name must be at most %d characters", maxDisplayName)
	}
	return nil
}
