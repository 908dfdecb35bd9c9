package persistence

import (
	"slices"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// LedgerState is what the server remembers about its tree across restarts.
// On startup the ledger compares the recomputed root with TopHash to notice
// storage that changed while it was down.
type LedgerState struct {
	// TopHash is the hex encoded root published after the last accepted upload
	TopHash string `json:"topHash"`

	// LeafCount is the number of stored items, excluding the padding duplicate
	LeafCount int `json:"leafCount"`

	// UpdatedAt is the Unix millisecond timestamp of the last accepted upload
	UpdatedAt int64 `json:"updatedAt"`
}

// SortFileIDs sorts ids in place by unsigned byte order
func SortFileIDs(ids []types.FileID) {
	slices.SortFunc(ids, func(a, b types.FileID) int {
		return a.Compare(b)
	})
}
