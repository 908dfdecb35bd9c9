// Package envelope implements the layered binary framing of an upload:
//
//	SignedUpload = u32 sig_len | sig_len bytes signature | Envelope
//	Envelope     = 16 bytes nonce | 12 bytes iv | i64 timestamp_ms | ciphertext...
//
// All integers are big-endian. The ciphertext has no length prefix and runs to the
// end of the buffer, so the framing must be exact for leaf digests to line up.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
)

// ErrTruncatedInput is returned when a buffer is too short for the framing it claims
var ErrTruncatedInput = errors.New("truncated input")

const (
	timestampSize = 8

	// HeaderSize is the fixed prefix of an encoded Envelope before the ciphertext
	HeaderSize = crypto.NonceSize + crypto.IVSize + timestampSize

	signatureLengthSize = 4
)

// Envelope is the encrypted payload prior to signing
type Envelope struct {
	Nonce      [crypto.NonceSize]byte
	IV         [crypto.IVSize]byte
	Timestamp  int64 // milliseconds since the Unix epoch
	Ciphertext []byte
}

// Time returns the envelope timestamp as a time.Time
func (e *Envelope) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Encode concatenates the envelope fields in wire order
func (e *Envelope) Encode() []byte {
	out := make([]byte, HeaderSize+len(e.Ciphertext))
	n := copy(out, e.Nonce[:])
	n += copy(out[n:], e.IV[:])
	binary.BigEndian.PutUint64(out[n:], uint64(e.Timestamp))
	n += timestampSize
	copy(out[n:], e.Ciphertext)
	return out
}

// Decode parses an encoded envelope. The ciphertext is copied out of data.
func Decode(data []byte) (*Envelope, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: envelope needs at least %d bytes, got %d", ErrTruncatedInput, HeaderSize, len(data))
	}

	e := &Envelope{}
	n := copy(e.Nonce[:], data)
	n += copy(e.IV[:], data[n:])
	e.Timestamp = int64(binary.BigEndian.Uint64(data[n:]))
	n += timestampSize
	e.Ciphertext = append([]byte{}, data[n:]...)
	return e, nil
}

// WrapSigned prefixes the envelope bytes with the signature and its 4-byte length
func WrapSigned(signature, envelopeBytes []byte) []byte {
	out := make([]byte, signatureLengthSize+len(signature)+len(envelopeBytes))
	binary.BigEndian.PutUint32(out, uint32(len(signature)))
	n := signatureLengthSize
	n += copy(out[n:], signature)
	copy(out[n:], envelopeBytes)
	return out
}

// UnwrapSigned splits SignedUpload bytes into the signature and the envelope bytes.
// The returned slices alias data.
func UnwrapSigned(data []byte) (signature, envelopeBytes []byte, err error) {
	if len(data) < signatureLengthSize {
		return nil, nil, fmt.Errorf("%w: missing signature length prefix", ErrTruncatedInput)
	}

	sigLen := binary.BigEndian.Uint32(data)
	rest := data[signatureLengthSize:]
	if uint64(sigLen) > uint64(len(rest)) {
		return nil, nil, fmt.Errorf("%w: signature length %d exceeds remaining %d bytes", ErrTruncatedInput, sigLen, len(rest))
	}
	return rest[:sigLen], rest[sigLen:], nil
}
