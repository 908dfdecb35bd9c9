package ledger

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

func newTestLedger(t *testing.T, store persistence.IBlobPersistence) (*Ledger, *observer.ObservedLogs) {
	t.Helper()
	core, observed := observer.New(zap.WarnLevel)
	l, err := NewLedger(store, zap.New(core))
	require.NoError(t, err)
	return l, observed
}

func blobFor(name string) []byte {
	return []byte("signed upload for " + name)
}

func TestLedger_Empty(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l, _ := newTestLedger(t, store)

	_, ok, err := l.TopHash()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, l.Len())

	_, _, err = l.Lookup(types.FileIDFromName("missing"))
	require.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestLedger_AppendAndLookup(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l, _ := newTestLedger(t, store)

	id := types.FileIDFromName("a.txt")
	blob := blobFor("a.txt")

	proof, root, err := l.Append(id, blob)
	require.NoError(t, err)

	// A single item is paired with itself
	leaf := crypto.SHA256(blob)
	assert.Equal(t, crypto.HashPair(leaf, &leaf), root)
	assert.True(t, merkle.Verify(leaf, root, proof))

	current, ok, err := l.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root, current)

	readProof, readBlob, err := l.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, blob, readBlob)
	assert.True(t, merkle.Verify(leaf, root, readProof))
}

func TestLedger_ProofsTrackLatestRoot(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l, _ := newTestLedger(t, store)

	firstID := types.FileIDFromName("file-0")
	firstProof, firstRoot, err := l.Append(firstID, blobFor("file-0"))
	require.NoError(t, err)

	var root types.Digest
	for i := 1; i < 9; i++ {
		name := fmt.Sprintf("file-%d", i)
		proof, newRoot, err := l.Append(types.FileIDFromName(name), blobFor(name))
		require.NoError(t, err)
		require.True(t, merkle.Verify(crypto.SHA256(blobFor(name)), newRoot, proof))
		root = newRoot
	}
	assert.Equal(t, 9, l.Len())
	assert.NotEqual(t, firstRoot, root)

	// The proof handed out for the first upload no longer matches the current root
	firstLeaf := crypto.SHA256(blobFor("file-0"))
	assert.False(t, merkle.Verify(firstLeaf, root, firstProof))

	// A fresh lookup does
	proof, _, err := l.Lookup(firstID)
	require.NoError(t, err)
	assert.True(t, merkle.Verify(firstLeaf, root, proof))
}

func TestLedger_RootIndependentOfInsertionOrder(t *testing.T) {
	names := []string{"alpha", "bravo", "charlie", "delta", "echo"}

	forward, _ := newTestLedger(t, memory.NewMemoryPersistence())
	for _, name := range names {
		_, _, err := forward.Append(types.FileIDFromName(name), blobFor(name))
		require.NoError(t, err)
	}

	backward, _ := newTestLedger(t, memory.NewMemoryPersistence())
	for i := len(names) - 1; i >= 0; i-- {
		_, _, err := backward.Append(types.FileIDFromName(names[i]), blobFor(names[i]))
		require.NoError(t, err)
	}

	forwardRoot, ok, err := forward.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	backwardRoot, ok, err := backward.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, forwardRoot, backwardRoot)
}

func TestLedger_ReplaceKeepsLeafCount(t *testing.T) {
	l, _ := newTestLedger(t, memory.NewMemoryPersistence())

	id := types.FileIDFromName("a.txt")
	_, first, err := l.Append(id, []byte("v1"))
	require.NoError(t, err)
	_, second, err := l.Append(id, []byte("v2"))
	require.NoError(t, err)

	assert.Equal(t, 1, l.Len())
	assert.NotEqual(t, first, second)

	_, blob, err := l.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), blob)
}

// TestLedger_OutOfBandChange checks that blobs altered directly in storage are
// served with a proof against a rescanned root, so the published root moves.
func TestLedger_OutOfBandChange(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l, observed := newTestLedger(t, store)

	id := types.FileIDFromName("a.txt")
	_, _, err := l.Append(types.FileIDFromName("b.txt"), blobFor("b.txt"))
	require.NoError(t, err)
	_, trusted, err := l.Append(id, blobFor("a.txt"))
	require.NoError(t, err)

	tampered := blobFor("a.txt")
	tampered[len(tampered)-1] ^= 0x01
	require.NoError(t, store.PutBlob(id, tampered))

	proof, blob, err := l.Lookup(id)
	require.NoError(t, err)
	assert.Equal(t, tampered, blob)

	leaf := crypto.SHA256(tampered)
	assert.False(t, merkle.Verify(leaf, trusted, proof))

	current, ok, err := l.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, trusted, current)
	assert.True(t, merkle.Verify(leaf, current, proof))

	assert.Equal(t, 1, observed.FilterMessage("Stored blob does not match cached leaf, rescanning storage").Len())
}

func TestLedger_TopHashTracksStorage(t *testing.T) {
	setup := func(t *testing.T) (*Ledger, *memory.MemoryPersistence, *observer.ObservedLogs, types.Digest) {
		store := memory.NewMemoryPersistence()
		l, observed := newTestLedger(t, store)
		_, _, err := l.Append(types.FileIDFromName("a.txt"), blobFor("a.txt"))
		require.NoError(t, err)
		_, root, err := l.Append(types.FileIDFromName("b.txt"), blobFor("b.txt"))
		require.NoError(t, err)
		return l, store, observed, root
	}

	t.Run("unchanged storage keeps the root", func(t *testing.T) {
		l, _, observed, root := setup(t)
		current, ok, err := l.TopHash()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, root, current)
		assert.Equal(t, 0, observed.Len())
	})

	t.Run("blob changed in storage", func(t *testing.T) {
		l, store, observed, root := setup(t)
		id := types.FileIDFromName("a.txt")
		tampered := blobFor("a.txt")
		tampered[len(tampered)-1] ^= 0x01
		require.NoError(t, store.PutBlob(id, tampered))

		current, ok, err := l.TopHash()
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEqual(t, root, current)
		assert.Equal(t, 1, observed.FilterMessage("Storage changed outside the ledger, rebuilt tree").Len())

		// The rebuilt tree serves a proof for the bytes actually stored
		proof, blob, err := l.Lookup(id)
		require.NoError(t, err)
		assert.True(t, merkle.Verify(crypto.SHA256(blob), current, proof))
	})

	t.Run("blob removed from storage", func(t *testing.T) {
		l, store, _, root := setup(t)
		store.DeleteBlob(types.FileIDFromName("b.txt"))

		current, ok, err := l.TopHash()
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotEqual(t, root, current)
		assert.Equal(t, 1, l.Len())

		leaf := crypto.SHA256(blobFor("a.txt"))
		assert.Equal(t, crypto.HashPair(leaf, &leaf), current)
	})

	t.Run("last blob removed from storage", func(t *testing.T) {
		store := memory.NewMemoryPersistence()
		l, _ := newTestLedger(t, store)
		id := types.FileIDFromName("a.txt")
		_, _, err := l.Append(id, blobFor("a.txt"))
		require.NoError(t, err)
		store.DeleteBlob(id)

		_, ok, err := l.TopHash()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("storage failure is reported", func(t *testing.T) {
		l, store, _, _ := setup(t)
		require.NoError(t, store.Close())
		_, _, err := l.TopHash()
		require.ErrorIs(t, err, persistence.ErrClosed)
	})
}

func TestLedger_LookupOfRemovedBlobRescans(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l, observed := newTestLedger(t, store)

	a := types.FileIDFromName("a.txt")
	b := types.FileIDFromName("b.txt")
	_, _, err := l.Append(a, blobFor("a.txt"))
	require.NoError(t, err)
	_, _, err = l.Append(b, blobFor("b.txt"))
	require.NoError(t, err)

	store.DeleteBlob(b)

	_, _, err = l.Lookup(b)
	require.ErrorIs(t, err, persistence.ErrNotFound)
	assert.Equal(t, 1, observed.FilterMessage("Stored blob does not match cached leaf, rescanning storage").Len())
	assert.Equal(t, 1, l.Len())

	// The remaining item is proven against the rebuilt root
	root, ok, err := l.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	proof, blob, err := l.Lookup(a)
	require.NoError(t, err)
	assert.True(t, merkle.Verify(crypto.SHA256(blob), root, proof))
}

func TestLedger_RestartRestoresRoot(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l1, _ := newTestLedger(t, store)

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("file-%d", i)
		_, _, err := l1.Append(types.FileIDFromName(name), blobFor(name))
		require.NoError(t, err)
	}
	root1, _, err := l1.TopHash()
	require.NoError(t, err)

	state, err := store.LoadLedgerState()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, root1.Hex(), state.TopHash)
	assert.Equal(t, 5, state.LeafCount)

	l2, observed := newTestLedger(t, store)
	root2, ok, err := l2.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, root1, root2)
	assert.Equal(t, 0, observed.Len())
}

func TestLedger_RestartDetectsChangedStorage(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l1, _ := newTestLedger(t, store)

	id := types.FileIDFromName("a.txt")
	_, _, err := l1.Append(id, blobFor("a.txt"))
	require.NoError(t, err)

	require.NoError(t, store.PutBlob(id, []byte("swapped while down")))

	_, observed := newTestLedger(t, store)
	assert.Equal(t, 1, observed.FilterMessage("Stored blobs do not match the last published top hash").Len())
}

func TestLedger_AppendFailsWhenStoreClosed(t *testing.T) {
	store := memory.NewMemoryPersistence()
	l, _ := newTestLedger(t, store)
	require.NoError(t, store.Close())

	_, _, err := l.Append(types.FileIDFromName("a.txt"), []byte("x"))
	require.ErrorIs(t, err, persistence.ErrClosed)
	assert.Equal(t, 0, l.Len())
}

func TestLedger_Concurrent(t *testing.T) {
	l, _ := newTestLedger(t, memory.NewMemoryPersistence())

	var wg sync.WaitGroup
	numWriters := 8
	numUploads := 10

	for w := 0; w < numWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < numUploads; i++ {
				name := fmt.Sprintf("w%d-file-%d", w, i)
				proof, root, err := l.Append(types.FileIDFromName(name), blobFor(name))
				if !assert.NoError(t, err) {
					return
				}
				// Each proof is checked against the root of the snapshot that produced it
				assert.True(t, merkle.Verify(crypto.SHA256(blobFor(name)), root, proof))

				_, blob, err := l.Lookup(types.FileIDFromName(name))
				assert.NoError(t, err)
				assert.Equal(t, blobFor(name), blob)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, numWriters*numUploads, l.Len())

	root, ok, err := l.TopHash()
	require.NoError(t, err)
	require.True(t, ok)
	for w := 0; w < numWriters; w++ {
		name := fmt.Sprintf("w%d-file-0", w)
		proof, _, err := l.Lookup(types.FileIDFromName(name))
		require.NoError(t, err)
		assert.True(t, merkle.Verify(crypto.SHA256(blobFor(name)), root, proof))
	}
}
