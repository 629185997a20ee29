package cipher

import (
	"errors"
	"testing"

	"github.com/yksirotta/credflow/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := NewCipher(key)
	require.NoError(t, err)

	data := domain.DecryptedCredentialData{
		"apiKey": "secret-value",
		"nested": map[string]any{"region": "eu-west-1"},
		"port":   float64(5432),
		"tls":    true,
	}

	blob, err := c.Encrypt(data)
	require.NoError(t, err)

	got, err := c.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCipher_WrongKeyFails(t *testing.T) {
	keyA, err := GenerateKey()
	require.NoError(t, err)
	keyB, err := GenerateKey()
	require.NoError(t, err)

	encryptor, err := NewCipher(keyA)
	require.NoError(t, err)
	decryptor, err := NewCipher(keyB)
	require.NoError(t, err)

	blob, err := encryptor.Encrypt(domain.DecryptedCredentialData{"apiKey": "secret"})
	require.NoError(t, err)

	got, err := decryptor.Decrypt(blob)
	assert.Nil(t, got)

	var decryptionErr *domain.CredentialDecryptionError
	require.True(t, errors.As(err, &decryptionErr))
}

func TestCipher_CorruptedBlobFails(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	c, err := NewCipher(key)
	require.NoError(t, err)

	blob, err := c.Encrypt(domain.DecryptedCredentialData{"apiKey": "secret"})
	require.NoError(t, err)

	tests := []struct {
		name string
		blob []byte
	}{
		{name: "flipped byte", blob: append(append([]byte{}, blob[:len(blob)-1]...), blob[len(blob)-1]^0xff)},
		{name: "truncated", blob: blob[:8]},
		{name: "empty", blob: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.blob)

			var decryptionErr *domain.CredentialDecryptionError
			require.True(t, errors.As(err, &decryptionErr))
		})
	}
}

func TestNewCipher_RejectsBadKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "not base64", key: "%%%"},
		{name: "too short", key: "c2hvcnQ="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCipher(tt.key)
			assert.Error(t, err)
		})
	}
}
