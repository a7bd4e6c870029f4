package credential

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Credential is a signed ID token issued by the identity provider. The
// client never builds or alters one; it only reads the claims it needs.
type Credential struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}

// Parse reads the subject and expiry from a raw token without verifying the
// signature. Verification is the backend's job.
func Parse(raw string) (Credential, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, errors.New("[credential.Parse] empty token")
	}

	claims := jwtlib.RegisteredClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Credential{}, errors.Wrap(err, "[credential.Parse] ParseUnverified")
	}

	c := Credential{Token: raw, Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		c.ExpiresAt = claims.ExpiresAt.Time
	}
	return c, nil
}

// Expired reports whether the credential is past its expiry at now. A
// credential without an expiry claim never expires client-side.
func (c Credential) Expired(now time.Time) bool {
	return c.ExpiresWithin(0, now)
}

// ExpiresWithin reports whether the credential expires before now+d.
func (c Credential) ExpiresWithin(d time.Duration, now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(c.ExpiresAt)
}

// BearerHeader returns the Authorization header value.
func (c Credential) BearerHeader() string {
	return "Bearer " + c.Token
}

// String never includes the token so a Credential is safe to log.
func (c Credential) String() string {
	return fmt.Sprintf("Credential(sub=%s, exp=%s)", c.Subject, c.ExpiresAt.Format(time.RFC3339))
}
