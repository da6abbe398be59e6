package token

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureBase64Token(t *testing.T) {
	token, err := GenerateSecureBase64Token(32)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestGenerateSecureBase64Token_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		token, err := GenerateSecureBase64Token(32)
		require.NoError(t, err)
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestGenerateSecureBase64Token_InvalidLength(t *testing.T) {
	_, err := GenerateSecureBase64Token(0)
	assert.Error(t, err)
	_, err = GenerateSecureBase64Token(-1)
	assert.Error(t, err)
}
