// Package crypto encrypts data source credentials at rest with
// AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrDecryptionFailed indicates the ciphertext could not be decrypted,
	// usually because the key changed or the value was corrupted.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrEmptyKey indicates no encryption key material was provided.
	ErrEmptyKey = errors.New("encryption key must not be empty")
)

// CredentialEncryptor encrypts and decrypts credential strings using
// AES-256-GCM with a random nonce per encryption.
type CredentialEncryptor struct {
	key []byte
}

// NewCredentialEncryptor derives a 32-byte key from the given material.
// If the input base64-decodes to exactly 32 bytes it is used directly;
// otherwise the key is the SHA-256 of the raw string, so operators can
// supply either a generated key or a passphrase.
func NewCredentialEncryptor(keyMaterial string) (*CredentialEncryptor, error) {
	if keyMaterial == "" {
		return nil, ErrEmptyKey
	}

	if decoded, err := base64.StdEncoding.DecodeString(keyMaterial); err == nil && len(decoded) == 32 {
		return &CredentialEncryptor{key: decoded}, nil
	}

	hash := sha256.Sum256([]byte(keyMaterial))
	return &CredentialEncryptor{key: hash[:]}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
// An empty plaintext passes through unchanged so optional credentials
// stay optional.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. An empty ciphertext passes through unchanged.
func (e *CredentialEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	if len(raw) < gcm.NonceSize() {
		return "", ErrDecryptionFailed
	}

	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
