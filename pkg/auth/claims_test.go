package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-secret"))
	require.NoError(t, err)
	return token
}

func TestInspectTokenReadsIdentityClaims(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"sub":      "u-1",
		"email":    "alice@example.com",
		"username": "alice",
		"role":     "admin",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	info, err := InspectToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", info.Subject)
	assert.Equal(t, "alice@example.com", info.Email)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, "admin", info.Role)
	assert.False(t, info.ExpiresAt.IsZero())
}

func TestInspectTokenRejectsExpired(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	info, err := InspectToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
	// Identity claims are still readable for logging.
	require.NotNil(t, info)
	assert.Equal(t, "u-1", info.Subject)
}

func TestInspectTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"", "not-a-jwt", "a.b"} {
		_, err := InspectToken(token)
		assert.ErrorIs(t, err, ErrMalformedToken, token)
	}
}

func TestInspectTokenToleratesMissingExpiry(t *testing.T) {
	token := mintToken(t, jwt.MapClaims{"sub": "u-1"})

	info, err := InspectToken(token)
	require.NoError(t, err)
	assert.True(t, info.ExpiresAt.IsZero())
}
