package persistence

import (
	"errors"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

var (
	// ErrNotFound is returned by GetBlob when no blob is stored under the id
	ErrNotFound = errors.New("blob not found")

	// ErrClosed is returned by every operation after Close
	ErrClosed = errors.New("persistence layer is closed")
)

// IBlobPersistence stores opaque SignedUpload blobs keyed by FileID.
// All implementations must be thread-safe as the server handles requests concurrently.
//
// Callers are expected to serialize writes to the same id; the ledger does this
// with its writer lock.
type IBlobPersistence interface {
	// Blob Storage

	// PutBlob stores blob under id, replacing any previous value.
	PutBlob(id types.FileID, blob []byte) error

	// GetBlob returns the blob stored under id.
	// Returns ErrNotFound if absent, other errors only on storage failure.
	GetBlob(id types.FileID) ([]byte, error)

	// ListBlobIDs returns the ids of all stored blobs in ascending byte order.
	// Returns empty slice if nothing is stored.
	ListBlobIDs() ([]types.FileID, error)

	// Ledger State

	// SaveLedgerState records the top hash the ledger last published.
	// Overwrites any existing state.
	SaveLedgerState(state *LedgerState) error

	// LoadLedgerState returns the last saved ledger state.
	// Returns nil state if none exists (first run), error only on storage failure.
	LoadLedgerState() (*LedgerState, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
