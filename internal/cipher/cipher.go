package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/yksirotta/credflow/pkg/domain"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	keySalt = "credflow-credentials"
	keyInfo = "encryption-key"
)

// Cipher seals and opens credential payloads with an instance-wide key.
// Blobs are nonce || ChaCha20-Poly1305 ciphertext.
type Cipher struct {
	key []byte
}

// NewCipher derives the AEAD key from a base64-encoded 32-byte instance key
// via HKDF-SHA256.
func NewCipher(instanceKeyBase64 string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(instanceKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(raw) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("invalid key length: expected %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, raw, []byte(keySalt), []byte(keyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	return &Cipher{key: key}, nil
}

// GenerateKey returns a fresh base64-encoded instance key.
func GenerateKey() (string, error) {
	raw := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to read random key material: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Cipher) Encrypt(data domain.DecryptedCredentialData) ([]byte, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential data: %w", err)
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to read nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure (wrong key, short or
// corrupted blob) is a CredentialDecryptionError and is fatal to the current
// call; corrupted data is never returned silently.
func (c *Cipher) Decrypt(blob []byte) (domain.DecryptedCredentialData, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, &domain.CredentialDecryptionError{Err: err}
	}

	if len(blob) < aead.NonceSize() {
		return nil, &domain.CredentialDecryptionError{Err: fmt.Errorf("blob shorter than nonce (%d bytes)", len(blob))}
	}

	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &domain.CredentialDecryptionError{Err: err}
	}

	var data domain.DecryptedCredentialData
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, &domain.CredentialDecryptionError{Err: err}
	}

	return data, nil
}
