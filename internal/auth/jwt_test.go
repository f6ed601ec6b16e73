package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	a, err := NewAuthenticator("secret", time.Hour)
	require.NoError(t, err)

	token, err := a.GenerateJWT(Principal{Subject: "user_1", SessionID: "sess_1", Email: "a@example.com", GivenName: "Ada", FamilyName: "Lovelace"})
	require.NoError(t, err)

	p, err := a.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", p.Subject)
	assert.Equal(t, "sess_1", p.SessionID)
	assert.Equal(t, "a@example.com", p.Email)
	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Equal(t, "user_1", p.Claims["sub"])
}

func TestValidateJWTRejects(t *testing.T) {
	a, err := NewAuthenticator("secret", time.Hour)
	require.NoError(t, err)
	other, err := NewAuthenticator("other-secret", time.Hour)
	require.NoError(t, err)

	foreign, err := other.GenerateJWT(Principal{Subject: "user_1"})
	require.NoError(t, err)

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)
		return s
	}

	tests := map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   foreign,
		"expired":        sign(jwt.MapClaims{"sub": "user_1", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no expiry":      sign(jwt.MapClaims{"sub": "user_1"}),
		"no subject":     sign(jwt.MapClaims{"exp": time.Now().Add(time.Minute).Unix()}),
		"unsigned token": unsigned(t),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := a.ValidateJWT(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func unsigned(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user_1", "exp": time.Now().Add(time.Minute).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}

func TestNewAuthenticatorRequiresSecret(t *testing.T) {
	_, err := NewAuthenticator("", time.Hour)
	assert.Error(t, err)
}

func TestFullNamePrefersName(t *testing.T) {
	assert.Equal(t, "Grace", Principal{Name: "Grace", GivenName: "G", FamilyName: "H"}.FullName())
	assert.Equal(t, "", Principal{}.FullName())
}
