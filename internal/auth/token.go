package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// tokenBodyLen is the number of random bytes carried by every minted token.
const tokenBodyLen = 32

// TokenMinter mints opaque bearer tokens authenticated by a single
// process-wide HMAC key. The key is generated once at startup and never
// changes; minted tokens are not reverse-checked against it on the read
// path — TokenCache is the sole source of truth for whether a token is
// live — the tag only protects against forged tokens reaching a cache that
// is, in the future, shared across processes.
type TokenMinter struct {
	key []byte
}

// NewTokenMinter draws a fresh 32-byte HMAC key from the system CSPRNG.
// Failure is fatal to the caller: without a key no token this process
// mints can ever be distinguished from one an attacker guessed.
func NewTokenMinter() (*TokenMinter, error) {
	key := make([]byte, sha256.Size)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate token signing key: %w", err)
	}
	return &TokenMinter{key: key}, nil
}

// Mint produces a new 128-character lowercase hex token: a 32-byte HMAC-SHA256
// tag over a 32-byte random body, encoded as hex(tag) || hex(body).
func (m *TokenMinter) Mint() (string, error) {
	body := make([]byte, tokenBodyLen)
	if _, err := rand.Read(body); err != nil {
		return "", fmt.Errorf("failed to generate token body: %w", err)
	}

	mac := hmac.New(sha256.New, m.key)
	mac.Write(body)
	tag := mac.Sum(nil)

	return hex.EncodeToString(tag) + hex.EncodeToString(body), nil
}
