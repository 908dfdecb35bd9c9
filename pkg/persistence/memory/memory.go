package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of IBlobPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Blob storage: fileId -> SignedUpload bytes
	blobs map[types.FileID][]byte

	// Last published ledger state
	ledgerState *persistence.LedgerState

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - ALL DATA WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set VAULT_PERSISTENCE_TYPE=badger for production")

	return &MemoryPersistence{
		blobs: make(map[types.FileID][]byte),
	}
}

// PutBlob stores a copy of blob under id.
func (m *MemoryPersistence) PutBlob(id types.FileID, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.blobs[id] = append([]byte{}, blob...)
	return nil
}

// GetBlob returns a copy of the blob stored under id.
func (m *MemoryPersistence) GetBlob(id types.FileID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	blob, exists := m.blobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrNotFound, id.Hex())
	}

	return append([]byte{}, blob...), nil
}

// DeleteBlob removes the blob stored under id. It is not part of
// persistence.IBlobPersistence; the vault never deletes items, and tests use it to
// simulate storage losing data behind the ledger.
func (m *MemoryPersistence) DeleteBlob(id types.FileID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, id)
}

// ListBlobIDs returns all stored ids sorted ascending.
func (m *MemoryPersistence) ListBlobIDs() ([]types.FileID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	ids := make([]types.FileID, 0, len(m.blobs))
	for id := range m.blobs {
		ids = append(ids, id)
	}
	persistence.SortFileIDs(ids)

	return ids, nil
}

// SaveLedgerState persists the ledger state.
func (m *MemoryPersistence) SaveLedgerState(state *persistence.LedgerState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil LedgerState")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	stateCopy := *state
	m.ledgerState = &stateCopy
	return nil
}

// LoadLedgerState retrieves the ledger state, nil if none was saved.
func (m *MemoryPersistence) LoadLedgerState() (*persistence.LedgerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	if m.ledgerState == nil {
		return nil, nil
	}

	stateCopy := *m.ledgerState
	return &stateCopy, nil
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil // Already closed, idempotent
	}

	m.closed = true
	m.blobs = nil
	m.ledgerState = nil

	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}

	return nil
}
