package envelope

import (
	"fmt"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// SignedUpload is a parsed upload: the signature plus the envelope it covers.
// Raw holds the exact bytes that were hashed into the Merkle tree.
type SignedUpload struct {
	Signature     []byte
	EnvelopeBytes []byte
	Raw           []byte
}

// NewSignedUpload frames a signature and encoded envelope
func NewSignedUpload(signature, envelopeBytes []byte) *SignedUpload {
	raw := WrapSigned(signature, envelopeBytes)
	sig, env, _ := UnwrapSigned(raw)
	return &SignedUpload{Signature: sig, EnvelopeBytes: env, Raw: raw}
}

// ParseSignedUpload parses SignedUpload bytes as received from the wire or storage
func ParseSignedUpload(data []byte) (*SignedUpload, error) {
	sig, env, err := UnwrapSigned(data)
	if err != nil {
		return nil, err
	}
	return &SignedUpload{Signature: sig, EnvelopeBytes: env, Raw: data}, nil
}

// Digest is SHA-256 over the full SignedUpload bytes, the Merkle leaf value
func (s *SignedUpload) Digest() types.Digest {
	return crypto.SHA256(s.Raw)
}

// SignedDigest is SHA-256 over the envelope bytes, the value that is signed
func (s *SignedUpload) SignedDigest() types.Digest {
	return crypto.SHA256(s.EnvelopeBytes)
}

// Envelope decodes the wrapped envelope
func (s *SignedUpload) Envelope() (*Envelope, error) {
	env, err := Decode(s.EnvelopeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}
