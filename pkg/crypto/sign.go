package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// GenerateRSAKey generates a new RSA signing key
func GenerateRSAKey() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate key: %v", ErrCryptoFailure, err)
	}
	return key, nil
}

// MarshalPrivateKey encodes a private key as PKCS#8 DER
func MarshalPrivateKey(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal private key: %v", ErrInvalidKey, err)
	}
	return der, nil
}

// MarshalPublicKey encodes a public key as PKIX (X.509 SubjectPublicKeyInfo) DER
func MarshalPublicKey(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal public key: %v", ErrInvalidKey, err)
	}
	return der, nil
}

// ParsePrivateKey parses a PKCS#8 DER private key, falling back to PKCS#1
func ParsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		// Try PKCS1 format
		key, pkcs1Err := x509.ParsePKCS1PrivateKey(der)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("%w: failed to parse private key: %v", ErrInvalidKey, err)
		}
		return key, nil
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA private key", ErrInvalidKey)
	}
	return key, nil
}

// ParsePublicKey parses a PKIX DER public key
func ParsePublicKey(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse public key: %v", ErrInvalidKey, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}
	return key, nil
}

// SignDigest produces an RSASSA-PKCS1-v1_5 signature over a SHA-256 digest.
// The encoding matches AWS KMS RSASSA_PKCS1_V1_5_SHA_256 in DIGEST mode, so
// signatures from either key store verify with VerifyDigest.
func SignDigest(key *rsa.PrivateKey, digest types.Digest) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key is nil", ErrInvalidKey)
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, stdcrypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign digest: %v", ErrCryptoFailure, err)
	}
	return sig, nil
}

// VerifyDigest checks a signature produced by SignDigest
func VerifyDigest(key *rsa.PublicKey, digest types.Digest, signature []byte) error {
	if key == nil {
		return fmt.Errorf("%w: public key is nil", ErrInvalidKey)
	}
	if err := rsa.VerifyPKCS1v15(key, stdcrypto.SHA256, digest[:], signature); err != nil {
		return ErrInvalidSignature
	}
	return nil
}
