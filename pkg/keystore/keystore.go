package keystore

import (
	"context"
	"crypto/rsa"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// IKeyStore signs upload digests and exposes the public key that verifies them.
// Signatures are RSASSA-PKCS1-v1_5 over a SHA-256 digest, so any implementation
// verifies with crypto.VerifyDigest.
type IKeyStore interface {
	// SignDigest signs the SHA-256 digest of an encoded envelope
	SignDigest(ctx context.Context, digest types.Digest) ([]byte, error)

	// PublicKey returns the key that verifies signatures from SignDigest
	PublicKey(ctx context.Context) (*rsa.PublicKey, error)
}

// SignerType selects an IKeyStore implementation
type SignerType string

const (
	SignerTypeLocal  SignerType = "local"
	SignerTypeAWSKMS SignerType = "aws-kms"
)
