package types

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileIDFromName(t *testing.T) {
	id := FileIDFromName("a.txt")
	expected := sha256.Sum256([]byte("a.txt"))
	require.Equal(t, expected[:], id.Bytes())

	// same name, same id
	require.Equal(t, id, FileIDFromName("a.txt"))
	require.NotEqual(t, id, FileIDFromName("b.txt"))
}

func TestFileIDHexRoundTrip(t *testing.T) {
	id := FileIDFromName("report.pdf")
	parsed, err := FileIDFromHex(id.Hex())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = FileIDFromHex("zz")
	require.Error(t, err)

	_, err = FileIDFromHex("abcd")
	require.Error(t, err)
	require.Contains(t, err.Error(), "32 bytes")
}

func TestFileIDCompareIsUnsigned(t *testing.T) {
	var low, high FileID
	low[0] = 0x7f
	high[0] = 0x80

	require.Equal(t, -1, low.Compare(high))
	require.Equal(t, 1, high.Compare(low))
	require.Equal(t, 0, low.Compare(low))
}

func TestDigestFromBytes(t *testing.T) {
	sum := sha256.Sum256([]byte("hello"))
	d, err := DigestFromBytes(sum[:])
	require.NoError(t, err)
	require.Equal(t, Digest(sum), d)
	require.False(t, d.IsZero())
	require.True(t, Digest{}.IsZero())

	_, err = DigestFromBytes(sum[:31])
	require.Error(t, err)
}
