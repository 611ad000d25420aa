package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestParserRoundTrip(t *testing.T) {
	t.Parallel()

	parser := NewParser("test-secret")
	raw := mintToken(t, "test-secret", jwt.SigningMethodHS256, Claims{
		UserID: "user-42",
		Role:   "analyst",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := parser.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, "analyst", claims.Role)
}

func TestParserRejects(t *testing.T) {
	t.Parallel()

	parser := NewParser("test-secret")

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		raw := mintToken(t, "other-secret", jwt.SigningMethodHS256, Claims{UserID: "u"})
		_, err := parser.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()
		raw := mintToken(t, "test-secret", jwt.SigningMethodHS256, Claims{
			UserID: "u",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		_, err := parser.Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := parser.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
