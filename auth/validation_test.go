package auth_test

import (
	"strings"
	"testing"

	"github.com/jrsteele09/go-contractor-session/auth"
	"github.com/stretchr/testify/require"
)

func TestValidator_ValidateUserCredentials(t *testing.T) {
	v := auth.NewValidator()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  string
	}{
		{"valid", "sam@example.com", "secret", ""},
		{"surrounding whitespace", "  sam@example.com ", "secret", ""},
		{"missing email", "", "secret", "email is required"},
		{"no at sign", "sam.example.com", "secret", "invalid email format"},
		{"no domain dot", "sam@example", "secret", "invalid email format"},
		{"space inside", "sam smith@example.com", "secret", "invalid email format"},
		{"missing password", "sam@example.com", "", "password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateUserCredentials(tt.email, tt.password)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, auth.ErrInvalidInput)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidator_ValidateRegistration(t *testing.T) {
	v := auth.NewValidator()

	t.Run("valid", func(t *testing.T) {
		err := v.ValidateRegistration(auth.RegisterParams{Email: "sam@example.com", Password: "secret", DisplayName: "Sam"})
		require.NoError(t, err)
	})

	t.Run("short password", func(t *testing.T) {
		err := v.ValidateRegistration(auth.RegisterParams{Email: "sam@example.com", Password: "abc"})
		require.ErrorIs(t, err, auth.ErrInvalidInput)
		require.Contains(t, err.Error(), "at least 6")
	})

	t.Run("long display name", func(t *testing.T) {
		err := v.ValidateRegistration(auth.RegisterParams{
			Email:       "sam@example.com",
			Password:    "secret",
			DisplayName: strings.Repeat("a", 101),
		})
		require.ErrorIs(t, err, auth.ErrInvalidInput)
	})
}
