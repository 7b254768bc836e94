package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCipherRoundTrip(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	enc, err := c.Encrypt("ya29.a0AfH6SMB-access-token")
	require.NoError(t, err)
	assert.NotEqual(t, "ya29.a0AfH6SMB-access-token", enc)

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "ya29.a0AfH6SMB-access-token", dec)
}

func TestTokenCipherNonceUniqueness(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	a, err := c.Encrypt("same-token")
	require.NoError(t, err)
	b, err := c.Encrypt("same-token")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenCipherRejectsGarbage(t *testing.T) {
	c, err := NewTokenCipher("unit-test-secret")
	require.NoError(t, err)

	_, err = c.Decrypt("not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = c.Decrypt("c2hvcnQ=") // valid base64, too short for a nonce
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestTokenCipherWrongKey(t *testing.T) {
	c1, err := NewTokenCipher("key-one")
	require.NoError(t, err)
	c2, err := NewTokenCipher("key-two")
	require.NoError(t, err)

	enc, err := c1.Encrypt("secret")
	require.NoError(t, err)
	_, err = c2.Decrypt(enc)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewTokenCipherEmptyKey(t *testing.T) {
	_, err := NewTokenCipher("")
	assert.Error(t, err)
}
