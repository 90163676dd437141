package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates 64 character hex string", func(t *testing.T) {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, _ := GenerateToken()
		token2, _ := GenerateToken()
		assert.NotEqual(t, token1, token2)
	})
}

func TestConstantTimeEqual(t *testing.T) {
	t.Run("returns true for equal strings", func(t *testing.T) {
		assert.True(t, ConstantTimeEqual("ABCD-EFGH", "ABCD-EFGH"))
	})

	t.Run("returns false for different strings", func(t *testing.T) {
		assert.False(t, ConstantTimeEqual("ABCD-EFGH", "ABCD-EFGX"))
	})

	t.Run("returns false for different lengths", func(t *testing.T) {
		assert.False(t, ConstantTimeEqual("abc", "abcd"))
	})

	t.Run("returns true for empty strings", func(t *testing.T) {
		assert.True(t, ConstantTimeEqual("", ""))
	})
}

func TestPasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("secret", string(hash)))
	assert.False(t, CheckPasswordHash("wrong", string(hash)))
	assert.False(t, CheckPasswordHash("secret", "not-a-hash"))
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("doorbell")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("doorbell", hash))
}

func TestMaskCode(t *testing.T) {
	assert.Equal(t, "ABCD-****", MaskCode("ABCD-EFGH"))
	assert.Equal(t, "****", MaskCode("AB"))
	assert.Equal(t, "****", MaskCode(""))
}
