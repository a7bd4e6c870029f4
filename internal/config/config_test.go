package config_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-contractor-session/internal/config"
	internalerrors "github.com/jrsteele09/go-contractor-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	for _, name := range []string{"API_URL", "REFRESH_INTERVAL", "CREDENTIAL_WAIT_TIMEOUT", "CLIENT_APP", "OIDC_SCOPES", "ENV"} {
		t.Setenv(name, "")
	}
	c := config.New()

	require.Equal(t, "https://crm-system-gray.vercel.app/api", c.GetAPIBaseURL())
	require.Equal(t, 50*time.Minute, c.GetRefreshInterval())
	require.Equal(t, 5*time.Second, c.GetCredentialWaitTimeout())
	require.Equal(t, "mobile", c.GetClientApp())
	require.Equal(t, "DEV", c.GetEnv())
	require.Equal(t, []string{"openid", "email", "profile", "offline_access"}, c.GetScopes())
}

func TestConfig_Overrides(t *testing.T) {
	t.Setenv("API_URL", "http://localhost:3000/api/")
	t.Setenv("REFRESH_INTERVAL", "10m")
	t.Setenv("OIDC_SCOPES", "openid,email")
	c := config.New()

	require.Equal(t, "http://localhost:3000/api", c.GetAPIBaseURL())
	require.Equal(t, 10*time.Minute, c.GetRefreshInterval())
	require.Equal(t, []string{"openid", "email"}, c.GetScopes())
}

func TestGetDurationEnv_Invalid(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	require.Equal(t, 30*time.Second, config.New().GetRequestTimeout())

	t.Setenv("REQUEST_TIMEOUT", "-5s")
	require.Equal(t, 30*time.Second, config.New().GetRequestTimeout())
}

func TestValidateIdentity(t *testing.T) {
	t.Setenv("OIDC_ISSUER", "")
	t.Setenv("OIDC_CLIENT_ID", "")
	require.ErrorIs(t, config.ValidateIdentity(config.New()), internalerrors.ErrInvalidConfig)

	t.Setenv("OIDC_ISSUER", "https://issuer.example.com")
	require.ErrorIs(t, config.ValidateIdentity(config.New()), internalerrors.ErrInvalidConfig)

	t.Setenv("OIDC_CLIENT_ID", "contractor-mobile")
	require.NoError(t, config.ValidateIdentity(config.New()))
}
