package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("top-secret", time.Hour)

	token, err := j.Generate(42)
	require.NoError(t, err)

	userID, err := j.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	token, err := NewJWT("one", time.Hour).Generate(1)
	require.NoError(t, err)

	_, err = NewJWT("two", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "5",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = NewJWT("s", time.Hour).Validate(token)
	assert.Error(t, err)
}

func TestJWTRejectsNonNumericSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	require.NoError(t, err)

	_, err = NewJWT("s", time.Hour).Validate(token)
	assert.ErrorContains(t, err, "subject")
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong horse", hash))
}
