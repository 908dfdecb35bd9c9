package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

func newGCM(key, iv []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", ErrCryptoFailure, KeySize, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes, got %d", ErrCryptoFailure, IVSize, len(iv))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", ErrCryptoFailure, err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCM: %v", ErrCryptoFailure, err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with AES-256-GCM. The returned ciphertext carries the
// 16-byte tag at its end. aad is authenticated but not encrypted.
func Seal(key, iv, plaintext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key, iv)
	if err != nil {
		return nil, err
	}
	return gcm.Seal(nil, iv, plaintext, aad), nil
}

// Open decrypts and authenticates a ciphertext produced by Seal.
// A tag mismatch returns ErrAuthenticationFailure.
func Open(key, iv, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key, iv)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < TagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", ErrAuthenticationFailure)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, aad)
	if err != nil {
		return nil, ErrAuthenticationFailure
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
