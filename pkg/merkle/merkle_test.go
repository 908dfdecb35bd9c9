package merkle

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// createTestLeaves creates n leaves keyed by the ids of file names file-0..file-n-1
func createTestLeaves(n int) map[types.FileID]types.Digest {
	leaves := make(map[types.FileID]types.Digest, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("file-%d", i)
		leaves[types.FileIDFromName(name)] = crypto.SHA256([]byte("content of " + name))
	}
	return leaves
}

// orderedID returns an id whose sort position is fixed by b
func orderedID(b byte) types.FileID {
	var id types.FileID
	id[0] = b
	return id
}

func digestOf(s string) types.Digest {
	return crypto.SHA256([]byte(s))
}

func pair(left, right types.Digest) types.Digest {
	return crypto.HashPair(left, &right)
}

func single(left types.Digest) types.Digest {
	return crypto.HashPair(left, nil)
}

// TestBuild tests tree construction and proof soundness for many sizes
func TestBuild(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
		depth     int
	}{
		{"Single leaf", 1, 1},
		{"Two leaves", 2, 1},
		{"Three leaves", 3, 2},
		{"Four leaves (power of 2)", 4, 2},
		{"Five leaves", 5, 3},
		{"Seven leaves", 7, 3},
		{"Eight leaves (power of 2)", 8, 3},
		{"Eleven leaves", 11, 4},
		{"Sixteen leaves (power of 2)", 16, 4},
		{"Hundred leaves", 100, 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := createTestLeaves(tc.numLeaves)
			tree, err := Build(leaves)
			require.NoError(t, err)
			require.NotNil(t, tree)

			require.Equal(t, tc.numLeaves+tc.numLeaves%2, tree.LeafCount())
			require.Equal(t, tc.depth, tree.Depth())
			require.NotEqual(t, types.Digest{}, tree.TopHash())

			for _, leaf := range leaves {
				proof, err := tree.ProofFor(leaf)
				require.NoError(t, err)
				require.Len(t, proof, tc.depth)
				require.True(t, Verify(leaf, tree.TopHash(), proof))

				root, err := Reconstruct(leaf, proof)
				require.NoError(t, err)
				require.Equal(t, tree.TopHash(), root)
			}
		})
	}
}

func TestBuildEmpty(t *testing.T) {
	tree, err := Build(map[types.FileID]types.Digest{})
	require.ErrorIs(t, err, ErrEmptyLeafSet)
	require.Nil(t, tree)

	tree, err = Build(nil)
	require.ErrorIs(t, err, ErrEmptyLeafSet)
	require.Nil(t, tree)
}

// TestKnownRoots pins root values for small trees, including the single-child shape
func TestKnownRoots(t *testing.T) {
	a, b, c, d, e := digestOf("a"), digestOf("b"), digestOf("c"), digestOf("d"), digestOf("e")

	t.Run("one leaf is paired with itself", func(t *testing.T) {
		tree, err := Build(map[types.FileID]types.Digest{orderedID(1): a})
		require.NoError(t, err)
		require.Equal(t, pair(a, a), tree.TopHash())

		proof, err := tree.ProofFor(a)
		require.NoError(t, err)
		require.Equal(t, Proof{{SiblingIsLeft: false, Sibling: &a}}, proof)
	})

	t.Run("three leaves", func(t *testing.T) {
		tree, err := Build(map[types.FileID]types.Digest{
			orderedID(3): c,
			orderedID(1): a,
			orderedID(2): b,
		})
		require.NoError(t, err)
		require.Equal(t, pair(pair(a, b), pair(c, c)), tree.TopHash())
	})

	t.Run("five leaves have a single-child parent", func(t *testing.T) {
		tree, err := Build(map[types.FileID]types.Digest{
			orderedID(1): a,
			orderedID(2): b,
			orderedID(3): c,
			orderedID(4): d,
			orderedID(5): e,
		})
		require.NoError(t, err)

		left := pair(pair(a, b), pair(c, d))
		right := single(pair(e, e))
		require.Equal(t, pair(left, right), tree.TopHash())

		proof, err := tree.ProofFor(e)
		require.NoError(t, err)
		require.Equal(t, Proof{
			{SiblingIsLeft: false, Sibling: &e},
			{SiblingIsLeft: false, Sibling: nil},
			{SiblingIsLeft: true, Sibling: &left},
		}, proof)
		require.True(t, Verify(e, tree.TopHash(), proof))
	})
}

// TestSingleChildDigest checks that an inner node with no right child hashes its
// left digest alone, which is the same as hashing it concatenated with nothing.
func TestSingleChildDigest(t *testing.T) {
	x := digestOf("x")

	tree := &Tree{}
	leaf := tree.addLeaf(x)
	inner := tree.addInner(leaf, NoChild)
	tree.root = inner

	n := tree.nodes[inner]
	require.Equal(t, KindInner, n.Kind)
	require.Equal(t, NoChild, n.Right)
	require.Equal(t, crypto.SHA256(x[:]), n.Digest)
	require.Equal(t, crypto.SHA256(append(x.Bytes(), []byte{}...)), tree.TopHash())
}

// TestDeterminism tests that insertion order of the leaf set does not matter
func TestDeterminism(t *testing.T) {
	leaves := createTestLeaves(13)
	tree1, err := Build(leaves)
	require.NoError(t, err)

	ids := SortFileIDs(leaves)
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 5; round++ {
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

		reinserted := make(map[types.FileID]types.Digest, len(ids))
		for _, id := range ids {
			reinserted[id] = leaves[id]
		}

		tree2, err := Build(reinserted)
		require.NoError(t, err)
		require.Equal(t, tree1.TopHash(), tree2.TopHash())
	}
}

// TestOddCountMatchesExplicitDuplicate tests that padding an odd set gives the same
// root as adding a final item carrying the last leaf's digest.
func TestOddCountMatchesExplicitDuplicate(t *testing.T) {
	for _, n := range []int{1, 3, 5, 7, 9, 15} {
		t.Run(fmt.Sprintf("Size_%d", n), func(t *testing.T) {
			odd := make(map[types.FileID]types.Digest, n)
			for i := 0; i < n; i++ {
				odd[orderedID(byte(i+1))] = digestOf(fmt.Sprintf("leaf-%d", i))
			}
			even := make(map[types.FileID]types.Digest, n+1)
			for id, d := range odd {
				even[id] = d
			}
			var last types.FileID
			for i := range last {
				last[i] = 0xff
			}
			even[last] = odd[orderedID(byte(n))]

			oddTree, err := Build(odd)
			require.NoError(t, err)
			evenTree, err := Build(even)
			require.NoError(t, err)
			require.Equal(t, evenTree.TopHash(), oddTree.TopHash())
		})
	}
}

func TestSortFileIDs_Unsigned(t *testing.T) {
	leaves := map[types.FileID]types.Digest{
		orderedID(0x80): digestOf("high"),
		orderedID(0x01): digestOf("low"),
		orderedID(0xff): digestOf("max"),
	}
	ids := SortFileIDs(leaves)
	require.Equal(t, []types.FileID{orderedID(0x01), orderedID(0x80), orderedID(0xff)}, ids)
}

// TestProofVerification tests proof verification with valid and invalid cases
func TestProofVerification(t *testing.T) {
	leaves := createTestLeaves(6)
	tree, err := Build(leaves)
	require.NoError(t, err)

	var leaf types.Digest
	for _, d := range leaves {
		leaf = d
		break
	}

	t.Run("Valid proof", func(t *testing.T) {
		proof, err := tree.ProofFor(leaf)
		require.NoError(t, err)
		require.True(t, Verify(leaf, tree.TopHash(), proof))
	})

	t.Run("Invalid proof - wrong root", func(t *testing.T) {
		proof, err := tree.ProofFor(leaf)
		require.NoError(t, err)
		require.False(t, Verify(leaf, types.Digest{1, 2, 3, 4, 5}, proof))
	})

	t.Run("Invalid proof - tampered leaf", func(t *testing.T) {
		proof, err := tree.ProofFor(leaf)
		require.NoError(t, err)
		tampered := leaf
		tampered[0] ^= 0xFF
		require.False(t, Verify(tampered, tree.TopHash(), proof))
	})

	t.Run("Invalid proof - flipped side", func(t *testing.T) {
		proof, err := tree.ProofFor(leaf)
		require.NoError(t, err)
		proof[0].SiblingIsLeft = !proof[0].SiblingIsLeft
		require.False(t, Verify(leaf, tree.TopHash(), proof))
	})

	t.Run("Invalid proof - dropped step", func(t *testing.T) {
		proof, err := tree.ProofFor(leaf)
		require.NoError(t, err)
		require.False(t, Verify(leaf, tree.TopHash(), proof[:len(proof)-1]))
	})

	t.Run("Invalid proof - empty proof", func(t *testing.T) {
		require.False(t, Verify(leaf, tree.TopHash(), nil))
	})

	t.Run("Invalid proof - left step without sibling", func(t *testing.T) {
		bad := Proof{{SiblingIsLeft: true}}
		require.False(t, Verify(leaf, tree.TopHash(), bad))
		_, err := Reconstruct(leaf, bad)
		require.ErrorIs(t, err, ErrMalformedProof)
	})
}

// TestProofBitFlips tests that flipping any bit of any sibling digest breaks verification
func TestProofBitFlips(t *testing.T) {
	leaves := createTestLeaves(9)
	tree, err := Build(leaves)
	require.NoError(t, err)

	for _, leaf := range leaves {
		proof, err := tree.ProofFor(leaf)
		require.NoError(t, err)

		for s, step := range proof {
			if step.Sibling == nil {
				continue
			}
			original := *step.Sibling
			for bit := 0; bit < types.DigestSize*8; bit++ {
				flipped := original
				flipped[bit/8] ^= 1 << (bit % 8)
				proof[s].Sibling = &flipped
				require.False(t, Verify(leaf, tree.TopHash(), proof), "step %d bit %d", s, bit)
			}
			proof[s].Sibling = &original
		}
		require.True(t, Verify(leaf, tree.TopHash(), proof))
	}
}

func TestProofForNotFound(t *testing.T) {
	tree, err := Build(createTestLeaves(4))
	require.NoError(t, err)

	proof, err := tree.ProofFor(digestOf("not stored"))
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, proof)
}

// TestProofForDuplicateLeaves checks that equal digests under different ids resolve
// to the leftmost leaf and still verify.
func TestProofForDuplicateLeaves(t *testing.T) {
	same := digestOf("same blob")
	tree, err := Build(map[types.FileID]types.Digest{
		orderedID(1): digestOf("first"),
		orderedID(2): same,
		orderedID(3): same,
		orderedID(4): digestOf("last"),
	})
	require.NoError(t, err)

	proof, err := tree.ProofFor(same)
	require.NoError(t, err)
	require.True(t, proof[0].SiblingIsLeft)
	require.Equal(t, digestOf("first"), *proof[0].Sibling)
	require.True(t, Verify(same, tree.TopHash(), proof))
}

// TestTreeChangesWithLeafSet tests that adding or replacing an item moves the root
func TestTreeChangesWithLeafSet(t *testing.T) {
	leaves := createTestLeaves(4)
	before, err := Build(leaves)
	require.NoError(t, err)

	leaves[types.FileIDFromName("file-0")] = digestOf("replaced")
	replaced, err := Build(leaves)
	require.NoError(t, err)
	require.NotEqual(t, before.TopHash(), replaced.TopHash())

	leaves[types.FileIDFromName("file-new")] = digestOf("new")
	grown, err := Build(leaves)
	require.NoError(t, err)
	require.NotEqual(t, replaced.TopHash(), grown.TopHash())
}
