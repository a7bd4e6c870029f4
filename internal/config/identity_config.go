package config

import (
	"strings"

	internalerrors "github.com/jrsteele09/go-contractor-session/internal/errors"
	"github.com/pkg/errors"
)

type IdentityConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetRegistrationURL() string
	GetAccountURL() string
	GetScopes() []string
}

type Identity struct{}

var _ IdentityConfig = Identity{}

func (Identity) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER", "")
}

func (Identity) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "")
}

func (Identity) GetClientSecret() string {
	return GetEnv("OIDC_CLIENT_SECRET", "")
}

// GetRegistrationURL is where sign-up requests are posted
func (Identity) GetRegistrationURL() string {
	return GetEnv("OIDC_REGISTRATION_URL", "")
}

// GetAccountURL is the account endpoint used for subject deletion
func (Identity) GetAccountURL() string {
	return GetEnv("OIDC_ACCOUNT_URL", "")
}

func (Identity) GetScopes() []string {
	raw := GetEnv("OIDC_SCOPES", "openid email profile offline_access")
	return strings.Fields(strings.ReplaceAll(raw, ",", " "))
}

// ValidateIdentity reports missing issuer settings.
func ValidateIdentity(c IdentityConfig) error {
	switch {
	case c.GetIssuerURL() == "":
		return errors.Wrap(internalerrors.ErrInvalidConfig, "OIDC_ISSUER is not set")
	case c.GetClientID() == "":
		return errors.Wrap(internalerrors.ErrInvalidConfig, "OIDC_CLIENT_ID is not set")
	}
	return nil
}
