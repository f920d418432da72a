package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Length(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := Generate(DefaultLength)
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "expected digit, got %q", r)
		}
	}
}

func TestGenerate_LeadingZerosPreserved(t *testing.T) {
	// With 200 samples the chance of never seeing a code below 100000
	// is (0.9)^200 if leading zeros were dropped we would see short strings.
	for i := 0; i < 200; i++ {
		code, err := Generate(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
	}
}

func TestGenerate_DefaultsOnInvalidLength(t *testing.T) {
	code, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, code, DefaultLength)
}

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, "123456", hash)

	assert.NoError(t, Verify("123456", hash))
	assert.Error(t, Verify("654321", hash))
}

func TestHash_EmptySecret(t *testing.T) {
	_, err := Hash("")
	assert.Error(t, err)
}

func TestHash_SaltedPerCall(t *testing.T) {
	h1, err := Hash("123456")
	require.NoError(t, err)
	h2, err := Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
