package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	secret := []byte("0123456789abcdef")
	token, err := GenerateToken("u1", "me@example.com", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "u1", claims.Subject)
	require.Equal(t, "me@example.com", claims.Email)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", "", []byte("secret-a"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, []byte("secret-b"))
	require.Error(t, err)
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	secret := []byte("0123456789abcdef")
	foreign := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := foreign.SignedString(secret)
	require.NoError(t, err)

	_, err = ParseToken(signed, secret)
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("0123456789abcdef")
	token, err := GenerateToken("u1", "", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
