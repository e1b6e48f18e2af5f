package users

import (
	"encoding/base64"
	"fmt"

	"filevault/pkg/crypto"
)

// AtRestCipher optionally encrypts the challenge/answer columns before they
// reach the database and decrypts them on the way out. This is encryption
// of stored authentication secrets, not of uploaded file payloads — the
// vault never touches payload bytes, those travel directly between client
// and object store. Disabled by default; an operator opts in by supplying a
// 16/24/32-byte key.
type AtRestCipher struct {
	key []byte
}

// NewAtRestCipher validates key length up front so a misconfiguration fails
// at startup instead of on the first encrypt call.
func NewAtRestCipher(key []byte) (*AtRestCipher, error) {
	switch len(key) {
	case 16, 24, 32:
		return &AtRestCipher{key: key}, nil
	default:
		return nil, fmt.Errorf("at-rest encryption key must be 16, 24, or 32 bytes, got %d", len(key))
	}
}

// Seal encrypts plaintext and packs nonce+tag+ciphertext into a single
// base64 string suitable for a TEXT column.
func (c *AtRestCipher) Seal(plaintext string) (string, error) {
	result, err := crypto.Encrypt(c.key, []byte(plaintext))
	if err != nil {
		return "", err
	}

	packed := append(append(result.Nonce, result.Tag...), result.Ciphertext...)
	return base64.StdEncoding.EncodeToString(packed), nil
}

// Open reverses Seal.
func (c *AtRestCipher) Open(sealed string) (string, error) {
	packed, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("invalid sealed value: %w", err)
	}
	if len(packed) < crypto.NonceSize {
		return "", fmt.Errorf("sealed value too short")
	}

	nonce := packed[:crypto.NonceSize]
	rest := packed[crypto.NonceSize:]

	// AES-GCM's tag is a fixed 16 bytes regardless of key size.
	const tagSize = 16
	if len(rest) < tagSize {
		return "", fmt.Errorf("sealed value too short")
	}
	tag := rest[:tagSize]
	ciphertext := rest[tagSize:]

	plaintext, err := crypto.Decrypt(c.key, ciphertext, nonce, tag)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
