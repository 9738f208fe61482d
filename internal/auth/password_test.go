package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_CheckPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery-staple", hash)
	assert.True(t, CheckPassword(hash, "correct-horse-battery-staple"))
	assert.False(t, CheckPassword(hash, "wrong-password"))
}

func TestCheckPassword_RejectsMalformedHash(t *testing.T) {
	assert.False(t, CheckPassword("not-a-bcrypt-hash", "anything"))
}
