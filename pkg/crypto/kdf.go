package crypto

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey derives the 256-bit AES key for one upload from the password and the
// upload's random nonce using PBKDF2-HMAC-SHA-256.
func DeriveKey(password string, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: nonce must be %d bytes, got %d", ErrCryptoFailure, NonceSize, len(nonce))
	}
	return pbkdf2.Key([]byte(password), nonce, PBKDF2Iterations, KeySize, sha256.New), nil
}
