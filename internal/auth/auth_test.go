package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("s3cret", Claims{EvaluatorID: "eval-7", Unit: "Inspektorat"}, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("s3cret", token)
	require.NoError(t, err)
	assert.Equal(t, "eval-7", claims.EvaluatorID)
	assert.Equal(t, "Inspektorat", claims.Unit)
	assert.Equal(t, "eval-7", claims.Subject)
}

func TestParseTokenRejects(t *testing.T) {
	good, err := GenerateToken("s3cret", Claims{EvaluatorID: "eval-7"}, time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("s3cret", Claims{EvaluatorID: "eval-7"}, -time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		EvaluatorID:      "eval-7",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	foreignToken, err := foreign.SignedString([]byte("s3cret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "s3cret", expired},
		{"wrong issuer", "s3cret", foreignToken},
		{"garbage", "s3cret", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	_, err := GenerateToken("", Claims{EvaluatorID: "x"}, time.Hour)
	assert.Error(t, err)
	_, err = GenerateToken("s", Claims{}, time.Hour)
	assert.Error(t, err)
}
