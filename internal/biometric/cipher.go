package biometric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// TemplateCipher encrypts serialized feature vectors for storage. Templates
// are only ever decrypted server-side during verification; nothing outside
// this package sees plaintext vectors at rest.
type TemplateCipher struct {
	key []byte
}

// NewTemplateCipher derives a 32-byte AES-256 key from the configured secret.
// The derivation is deterministic so every process sharing the secret can
// read the same stored templates.
func NewTemplateCipher(secret string) (*TemplateCipher, error) {
	if secret == "" {
		return nil, errors.New("template encryption secret is required")
	}
	key := sha256.Sum256([]byte(secret))
	return &TemplateCipher{key: key[:]}, nil
}

// Encrypt seals the plaintext with AES-256-GCM and returns the ciphertext and
// the random nonce separately, matching the storage layout.
func (tc *TemplateCipher) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	block, err := aes.NewCipher(tc.key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens a stored ciphertext. Fails if the nonce or ciphertext was
// tampered with or the key does not match the one used to seal it.
func (tc *TemplateCipher) Decrypt(ciphertext, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(tc.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, errors.New("invalid nonce length")
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt template: %w", err)
	}
	return plaintext, nil
}
