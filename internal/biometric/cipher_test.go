package biometric

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Constructor Tests (2 tests)
// ============================================================================

func TestTemplateCipher_NewTemplateCipher_Success(t *testing.T) {
	tc, err := NewTemplateCipher("a-configured-encryption-secret")
	assert.NoError(t, err)
	assert.NotNil(t, tc)
}

func TestTemplateCipher_NewTemplateCipher_EmptySecret(t *testing.T) {
	tc, err := NewTemplateCipher("")
	assert.Error(t, err)
	assert.Nil(t, tc)
}

// ============================================================================
// Encryption/Decryption Tests (5 tests) - SECURITY CRITICAL
// ============================================================================

func TestTemplateCipher_EncryptDecrypt_RoundTrip(t *testing.T) {
	tc, err := NewTemplateCipher("round-trip-secret")
	require.NoError(t, err)

	plaintext := []byte("serialized template vector bytes")

	encrypted, nonce, err := tc.Encrypt(plaintext)
	require.NoError(t, err)
	require.Len(t, nonce, 12)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := tc.Decrypt(encrypted, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestTemplateCipher_Encrypt_UniqueNonces(t *testing.T) {
	tc, err := NewTemplateCipher("nonce-secret")
	require.NoError(t, err)

	_, nonce1, err := tc.Encrypt([]byte("payload"))
	require.NoError(t, err)
	_, nonce2, err := tc.Encrypt([]byte("payload"))
	require.NoError(t, err)

	assert.NotEqual(t, nonce1, nonce2)
}

func TestTemplateCipher_Decrypt_TamperedCiphertext(t *testing.T) {
	tc, err := NewTemplateCipher("tamper-secret")
	require.NoError(t, err)

	encrypted, nonce, err := tc.Encrypt([]byte("template payload"))
	require.NoError(t, err)

	// Flip bits in the ciphertext
	encrypted[0] ^= 0xFF

	decrypted, err := tc.Decrypt(encrypted, nonce)
	assert.Error(t, err)
	assert.Nil(t, decrypted)
	assert.Contains(t, err.Error(), "failed to decrypt")
}

func TestTemplateCipher_Decrypt_WrongNonce(t *testing.T) {
	tc, err := NewTemplateCipher("wrong-nonce-secret")
	require.NoError(t, err)

	encrypted, _, err := tc.Encrypt([]byte("template payload"))
	require.NoError(t, err)

	wrongNonce := make([]byte, 12)
	_, err = rand.Read(wrongNonce)
	require.NoError(t, err)

	decrypted, err := tc.Decrypt(encrypted, wrongNonce)
	assert.Error(t, err)
	assert.Nil(t, decrypted)
}

func TestTemplateCipher_Decrypt_WrongNonceLength(t *testing.T) {
	tc, err := NewTemplateCipher("nonce-length-secret")
	require.NoError(t, err)

	encrypted, _, err := tc.Encrypt([]byte("template payload"))
	require.NoError(t, err)

	decrypted, err := tc.Decrypt(encrypted, []byte{0x01, 0x02})
	assert.Error(t, err)
	assert.Nil(t, decrypted)
	assert.Contains(t, err.Error(), "invalid nonce length")
}

// ============================================================================
// Key Isolation Tests (1 test)
// ============================================================================

func TestTemplateCipher_Decrypt_DifferentSecret(t *testing.T) {
	tc1, err := NewTemplateCipher("secret-one")
	require.NoError(t, err)
	tc2, err := NewTemplateCipher("secret-two")
	require.NoError(t, err)

	encrypted, nonce, err := tc1.Encrypt([]byte("template payload"))
	require.NoError(t, err)

	decrypted, err := tc2.Decrypt(encrypted, nonce)
	assert.Error(t, err)
	assert.Nil(t, decrypted)
}
