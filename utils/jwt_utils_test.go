package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWTToken("alice", "test-secret", time.Hour)
	require.NoError(t, err)

	claims, err := VerifyJWTToken(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Name)
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWTToken("alice", "test-secret", time.Hour)
	require.NoError(t, err)

	_, err = VerifyJWTToken(token, "other-secret")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWTToken("alice", "test-secret", -time.Minute)
	require.NoError(t, err)

	_, err = VerifyJWTToken(token, "test-secret")
	assert.Error(t, err)
}

func TestJWTGarbage(t *testing.T) {
	_, err := VerifyJWTToken("not-a-token", "test-secret")
	assert.Error(t, err)
}
