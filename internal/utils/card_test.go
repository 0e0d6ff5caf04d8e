package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeCard(t *testing.T) {
	key := []byte("fingerprint-key")

	a, err := SanitizeCard(key, "4111 1111 1111 1111")
	require.NoError(t, err)
	b, err := SanitizeCard(key, "4111-1111-1111-1111")
	require.NoError(t, err)

	assert.Equal(t, "************1111", a.Mask)
	assert.Len(t, a.Fingerprint, 64)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.NotContains(t, a.Fingerprint, "4111")

	other, err := SanitizeCard([]byte("another-key"), "4111111111111111")
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, other.Fingerprint)
}

func TestSanitizeCard_Rejects(t *testing.T) {
	for _, pan := range []string{"", "4111", "4111111111111112", "4111-1111-1111-111x", "12345678901234567890"} {
		_, err := SanitizeCard(nil, pan)
		assert.ErrorIs(t, err, ErrInvalidCard, pan)
	}
}

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "****4242", MaskCard("42424242"))
	assert.Equal(t, "***", MaskCard("123"))
}
