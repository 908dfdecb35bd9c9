package merkle

import (
	"encoding/binary"
	"fmt"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// MaxProofSteps bounds decoded proofs. A tree this deep would need 2^64 leaves.
const MaxProofSteps = 64

const (
	proofCountSize = 4
	stepFlagsSize  = 2
)

// EncodeProof serializes a proof as
//
//	u32 count | count x (u8 sibling_is_left | u8 has_sibling | [32]byte sibling if present)
func EncodeProof(proof Proof) []byte {
	size := proofCountSize
	for _, step := range proof {
		size += stepFlagsSize
		if step.Sibling != nil {
			size += types.DigestSize
		}
	}

	out := make([]byte, proofCountSize, size)
	binary.BigEndian.PutUint32(out, uint32(len(proof)))
	for _, step := range proof {
		out = append(out, boolByte(step.SiblingIsLeft), boolByte(step.Sibling != nil))
		if step.Sibling != nil {
			out = append(out, step.Sibling[:]...)
		}
	}
	return out
}

// DecodeProof parses a proof from the front of data and returns the bytes that follow it
func DecodeProof(data []byte) (Proof, []byte, error) {
	if len(data) < proofCountSize {
		return nil, nil, fmt.Errorf("%w: missing step count", ErrMalformedProof)
	}
	count := binary.BigEndian.Uint32(data)
	if count > MaxProofSteps {
		return nil, nil, fmt.Errorf("%w: %d steps exceeds maximum of %d", ErrMalformedProof, count, MaxProofSteps)
	}
	rest := data[proofCountSize:]

	proof := make(Proof, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(rest) < stepFlagsSize {
			return nil, nil, fmt.Errorf("%w: step %d truncated", ErrMalformedProof, i)
		}
		isLeft, err := parseBool(rest[0])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: step %d left flag: %v", ErrMalformedProof, i, err)
		}
		hasSibling, err := parseBool(rest[1])
		if err != nil {
			return nil, nil, fmt.Errorf("%w: step %d sibling flag: %v", ErrMalformedProof, i, err)
		}
		rest = rest[stepFlagsSize:]

		step := ProofStep{SiblingIsLeft: isLeft}
		if hasSibling {
			if len(rest) < types.DigestSize {
				return nil, nil, fmt.Errorf("%w: step %d sibling digest truncated", ErrMalformedProof, i)
			}
			var d types.Digest
			copy(d[:], rest[:types.DigestSize])
			step.Sibling = &d
			rest = rest[types.DigestSize:]
		} else if isLeft {
			return nil, nil, fmt.Errorf("%w: step %d has a left sibling without a digest", ErrMalformedProof, i)
		}
		proof = append(proof, step)
	}
	return proof, rest, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func parseBool(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean byte 0x%02x", b)
	}
}
