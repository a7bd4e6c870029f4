package credential_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-contractor-session/credential"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestParse(t *testing.T) {
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("subject and expiry", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": exp.Unix()})
		c, err := credential.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, "user-1", c.Subject)
		require.True(t, c.ExpiresAt.Equal(exp))
		require.Equal(t, raw, c.Token)
		require.NotContains(t, c.String(), raw)
		require.Equal(t, "Bearer "+raw, c.BearerHeader())
	})

	t.Run("expired tokens still parse", func(t *testing.T) {
		raw := signedToken(t, jwtlib.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
		c, err := credential.Parse(raw)
		require.NoError(t, err)
		require.True(t, c.Expired(time.Now()))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := credential.Parse("  ")
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := credential.Parse("not-a-jwt")
		require.Error(t, err)
	})
}

func TestCredential_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := credential.Credential{Token: "x", ExpiresAt: now.Add(10 * time.Minute)}

	require.False(t, c.Expired(now))
	require.False(t, c.ExpiresWithin(5*time.Minute, now))
	require.True(t, c.ExpiresWithin(10*time.Minute, now))
	require.True(t, c.Expired(now.Add(11*time.Minute)))

	noExpiry := credential.Credential{Token: "x"}
	require.False(t, noExpiry.Expired(now.Add(1000*time.Hour)))
}
