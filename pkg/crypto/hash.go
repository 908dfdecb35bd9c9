package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// SHA256 hashes content into a Digest
func SHA256(content []byte) types.Digest {
	return types.Digest(sha256.Sum256(content))
}

// HashPair computes SHA-256(left || right). A nil right hashes left alone,
// which is the single-child rule of the Merkle tree.
func HashPair(left types.Digest, right *types.Digest) types.Digest {
	if right == nil {
		return SHA256(left[:])
	}
	data := make([]byte, 0, 2*types.DigestSize)
	data = append(data, left[:]...)
	data = append(data, right[:]...)
	return SHA256(data)
}

// RandomBytes reads n bytes from the system CSPRNG
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("%w: failed to read random bytes: %v", ErrCryptoFailure, err)
	}
	return b, nil
}
