package crypto

import "errors"

var (
	// ErrCryptoFailure is returned when key derivation or AEAD setup fails.
	// It indicates a platform-level problem and is never retried.
	ErrCryptoFailure = errors.New("crypto failure")

	// ErrAuthenticationFailure is returned when an AEAD tag does not verify.
	// Either the password is wrong or the ciphertext, IV or associated data changed.
	ErrAuthenticationFailure = errors.New("authentication failure")

	// ErrInvalidSignature is returned when an RSA signature does not verify
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidKey is returned when key material cannot be parsed or has the wrong type
	ErrInvalidKey = errors.New("invalid key")
)
