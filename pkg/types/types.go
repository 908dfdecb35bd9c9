package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DigestSize is the width of every SHA-256 value in the protocol
const DigestSize = sha256.Size

// Digest is a SHA-256 value. It is used for Merkle leaves, inner nodes and the top hash.
type Digest [DigestSize]byte

// Hex returns the lowercase hex encoding without a 0x prefix
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer
func (d Digest) String() string {
	return d.Hex()
}

// IsZero reports whether every byte of the digest is zero
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Bytes returns a copy of the digest as a slice
func (d Digest) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, d[:])
	return out
}

// DigestFromBytes converts a 32-byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// FileID identifies a stored item. It is SHA-256 of the file name and doubles as the
// AEAD associated data, binding ciphertext to the name it was uploaded under.
type FileID [DigestSize]byte

// FileIDFromName computes SHA-256(name)
func FileIDFromName(name string) FileID {
	return FileID(sha256.Sum256([]byte(name)))
}

// FileIDFromHex parses a hex encoded file id as produced by FileID.Hex
func FileIDFromHex(s string) (FileID, error) {
	var id FileID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid file id %q: %w", s, err)
	}
	if len(raw) != DigestSize {
		return id, fmt.Errorf("file id must be %d bytes, got %d", DigestSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// Hex returns the lowercase hex encoding of the id
func (id FileID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer
func (id FileID) String() string {
	return id.Hex()
}

// Bytes returns the id as a slice, suitable for use as associated data
func (id FileID) Bytes() []byte {
	out := make([]byte, DigestSize)
	copy(out, id[:])
	return out
}

// Compare orders ids by unsigned byte-lexicographic order.
func (id FileID) Compare(other FileID) int {
	return bytes.Compare(id[:], other[:])
}
