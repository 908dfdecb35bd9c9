package merkle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

func TestEncodeProof_Layout(t *testing.T) {
	d := digestOf("sibling")
	proof := Proof{
		{SiblingIsLeft: false, Sibling: &d},
		{SiblingIsLeft: false, Sibling: nil},
		{SiblingIsLeft: true, Sibling: &d},
	}

	encoded := EncodeProof(proof)
	require.Len(t, encoded, 4+(2+32)+2+(2+32))
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(encoded[:4]))
	assert.Equal(t, []byte{0, 1}, encoded[4:6])
	assert.Equal(t, d[:], encoded[6:38])
	assert.Equal(t, []byte{0, 0}, encoded[38:40])
	assert.Equal(t, []byte{1, 1}, encoded[40:42])
	assert.Equal(t, d[:], encoded[42:74])

	decoded, rest, err := DecodeProof(encoded)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, proof, decoded)
}

func TestDecodeProof_ReturnsTrailingBytes(t *testing.T) {
	tree, err := Build(createTestLeaves(7))
	require.NoError(t, err)
	leaf := createTestLeaves(7)[types.FileIDFromName("file-3")]

	proof, err := tree.ProofFor(leaf)
	require.NoError(t, err)

	payload := []byte("signed upload bytes")
	decoded, rest, err := DecodeProof(append(EncodeProof(proof), payload...))
	require.NoError(t, err)
	assert.Equal(t, payload, rest)
	assert.True(t, Verify(leaf, tree.TopHash(), decoded))
}

func TestDecodeProof_Empty(t *testing.T) {
	decoded, rest, err := DecodeProof([]byte{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, decoded)
	assert.Empty(t, rest)
}

func TestDecodeProof_Malformed(t *testing.T) {
	d := digestOf("x")
	valid := EncodeProof(Proof{{SiblingIsLeft: false, Sibling: &d}})

	testCases := []struct {
		name string
		data []byte
	}{
		{"no count", []byte{0, 0, 1}},
		{"count too large", []byte{0, 0, 0, MaxProofSteps + 1}},
		{"missing step", []byte{0, 0, 0, 1}},
		{"half a step", []byte{0, 0, 0, 1, 0}},
		{"truncated digest", valid[:len(valid)-1]},
		{"bad left flag", []byte{0, 0, 0, 1, 2, 0}},
		{"bad sibling flag", []byte{0, 0, 0, 1, 0, 7}},
		{"left without sibling", []byte{0, 0, 0, 1, 1, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeProof(tc.data)
			require.ErrorIs(t, err, ErrMalformedProof)
		})
	}
}
