// Package ledger owns the server's authoritative set of stored items and the merkle
// tree over them.
//
// The tree is rebuilt from an in-memory leaf map on every accepted upload, under a
// single writer lock, so readers always see a proof and a root from the same
// snapshot. Storage remains the source of truth: TopHash confirms the snapshot
// against storage before answering, and a lookup whose stored blob no longer hashes
// to its cached leaf (or has disappeared) rescans storage first.
package ledger

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

type Ledger struct {
	store  persistence.IBlobPersistence
	logger *zap.Logger

	mu     sync.RWMutex
	leaves map[types.FileID]types.Digest
	tree   *merkle.Tree // nil while the store is empty
}

// NewLedger loads every stored blob and builds the first tree. If the store carries
// a previously published top hash that differs from the recomputed one, the
// difference is logged; storage changed while the server was not running.
func NewLedger(store persistence.IBlobPersistence, logger *zap.Logger) (*Ledger, error) {
	l := &Ledger{
		store:  store,
		logger: logger,
	}

	if err := l.rescanLocked(); err != nil {
		return nil, fmt.Errorf("failed to load stored blobs: %w", err)
	}

	state, err := store.LoadLedgerState()
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger state: %w", err)
	}

	root, ok := l.topHashLocked()
	switch {
	case state != nil && ok && state.TopHash != root.Hex():
		l.logger.Sugar().Warnw("Stored blobs do not match the last published top hash",
			"published_top_hash", state.TopHash,
			"computed_top_hash", root.Hex(),
			"published_leaf_count", state.LeafCount,
			"leaf_count", len(l.leaves),
		)
	case state != nil && !ok && state.LeafCount > 0:
		l.logger.Sugar().Warnw("Store is empty but a top hash was published before",
			"published_top_hash", state.TopHash,
			"published_leaf_count", state.LeafCount,
		)
	}

	l.logger.Sugar().Infow("Ledger loaded", "leaf_count", len(l.leaves), "top_hash", rootHex(root, ok))
	return l, nil
}

// Append stores blob under id, rebuilds the tree and returns the inclusion proof for
// the blob together with the new top hash.
func (l *Ledger) Append(id types.FileID, blob []byte) (merkle.Proof, types.Digest, error) {
	leaf := crypto.SHA256(blob)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.PutBlob(id, blob); err != nil {
		return nil, types.Digest{}, fmt.Errorf("failed to store blob: %w", err)
	}

	previous, existed := l.leaves[id]
	l.leaves[id] = leaf

	tree, err := merkle.Build(l.leaves)
	if err != nil {
		if existed {
			l.leaves[id] = previous
		} else {
			delete(l.leaves, id)
		}
		return nil, types.Digest{}, fmt.Errorf("failed to rebuild merkle tree: %w", err)
	}
	l.tree = tree

	proof, err := tree.ProofFor(leaf)
	if err != nil {
		return nil, types.Digest{}, fmt.Errorf("failed to build proof for new leaf: %w", err)
	}

	root := tree.TopHash()
	state := &persistence.LedgerState{
		TopHash:   root.Hex(),
		LeafCount: len(l.leaves),
		UpdatedAt: time.Now().UnixMilli(),
	}
	if err := l.store.SaveLedgerState(state); err != nil {
		l.logger.Sugar().Warnw("Failed to save ledger state", "error", err)
	}

	l.logger.Sugar().Debugw("Appended blob",
		"file_id", id.Hex(),
		"leaf", leaf.Hex(),
		"replaced", existed,
		"leaf_count", len(l.leaves),
		"top_hash", root.Hex(),
	)
	return proof, root, nil
}

// Lookup returns the stored blob for id with its inclusion proof against the current
// top hash. persistence.ErrNotFound is returned for unknown ids.
func (l *Ledger) Lookup(id types.FileID) (merkle.Proof, []byte, error) {
	l.mu.RLock()
	cached, known := l.leaves[id]
	blob, err := l.store.GetBlob(id)
	switch {
	case errors.Is(err, persistence.ErrNotFound) && known:
		// removed from storage behind the ledger's back
	case err != nil:
		l.mu.RUnlock()
		return nil, nil, err
	default:
		leaf := crypto.SHA256(blob)
		if known && cached == leaf && l.tree != nil {
			proof, err := l.tree.ProofFor(leaf)
			l.mu.RUnlock()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to build proof: %w", err)
			}
			return proof, blob, nil
		}
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Sugar().Warnw("Stored blob does not match cached leaf, rescanning storage", "file_id", id.Hex())
	if err := l.rescanLocked(); err != nil {
		return nil, nil, fmt.Errorf("failed to rescan storage: %w", err)
	}

	blob, err = l.store.GetBlob(id)
	if err != nil {
		return nil, nil, err
	}
	if l.tree == nil {
		return nil, nil, fmt.Errorf("%w: %s", persistence.ErrNotFound, id.Hex())
	}
	proof, err := l.tree.ProofFor(crypto.SHA256(blob))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build proof: %w", err)
	}
	return proof, blob, nil
}

// TopHash returns the root over what storage currently holds, false while the store
// is empty. Items changed or removed directly in storage since the last rebuild
// cause a rescan, so the published root never outlives the bytes it covers.
func (l *Ledger) TopHash() (types.Digest, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed, err := l.syncLocked()
	if err != nil {
		return types.Digest{}, false, fmt.Errorf("failed to confirm ledger against storage: %w", err)
	}
	root, ok := l.topHashLocked()
	if changed {
		l.logger.Sugar().Warnw("Storage changed outside the ledger, rebuilt tree",
			"leaf_count", len(l.leaves),
			"top_hash", rootHex(root, ok),
		)
	}
	return root, ok, nil
}

// Len returns the number of stored items
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.leaves)
}

func (l *Ledger) topHashLocked() (types.Digest, bool) {
	if l.tree == nil {
		return types.Digest{}, false
	}
	return l.tree.TopHash(), true
}

// rescanLocked rebuilds the leaf map and tree from storage. Callers hold the write
// lock, or own the ledger exclusively during construction.
func (l *Ledger) rescanLocked() error {
	leaves, err := l.loadLeaves()
	if err != nil {
		return err
	}
	return l.installLocked(leaves)
}

// syncLocked rebuilds the tree only when storage no longer matches the leaf map, and
// reports whether it did. Callers hold the write lock.
func (l *Ledger) syncLocked() (bool, error) {
	leaves, err := l.loadLeaves()
	if err != nil {
		return false, err
	}
	if maps.Equal(leaves, l.leaves) {
		return false, nil
	}
	return true, l.installLocked(leaves)
}

func (l *Ledger) loadLeaves() (map[types.FileID]types.Digest, error) {
	ids, err := l.store.ListBlobIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}

	leaves := make(map[types.FileID]types.Digest, len(ids))
	for _, id := range ids {
		blob, err := l.store.GetBlob(id)
		if errors.Is(err, persistence.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load blob %s: %w", id.Hex(), err)
		}
		leaves[id] = crypto.SHA256(blob)
	}
	return leaves, nil
}

func (l *Ledger) installLocked(leaves map[types.FileID]types.Digest) error {
	var tree *merkle.Tree
	if len(leaves) > 0 {
		var err error
		tree, err = merkle.Build(leaves)
		if err != nil {
			return err
		}
	}

	l.leaves = leaves
	l.tree = tree
	return nil
}

func rootHex(root types.Digest, ok bool) string {
	if !ok {
		return ""
	}
	return root.Hex()
}
