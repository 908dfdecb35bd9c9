// Package trustedroot persists the single value a client must keep to detect
// tampering: the top hash it last accepted.
package trustedroot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// FileName is the name of the trusted root file inside a client directory
const FileName = "top_hash.bin"

// ICache stores an optional trusted root. A nil digest means no root is trusted yet.
type ICache interface {
	Get(ctx context.Context) (*types.Digest, error)
	Set(ctx context.Context, root *types.Digest) error
}

// FileCache keeps the trusted root as 32 raw bytes in a file. A file of any other
// length is treated as absent.
type FileCache struct {
	path string
	mu   sync.Mutex
}

func NewFileCache(dir string) *FileCache {
	return &FileCache{path: filepath.Join(dir, FileName)}
}

// Path returns the location of the root file
func (f *FileCache) Path() string {
	return f.path
}

func (f *FileCache) Get(ctx context.Context) (*types.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted root: %w", err)
	}

	if len(data) != types.DigestSize {
		return nil, nil
	}
	root, err := types.DigestFromBytes(data)
	if err != nil {
		return nil, err
	}
	return &root, nil
}

// Set replaces the root atomically through a temporary file and rename. A nil root
// deletes the file.
func (f *FileCache) Set(ctx context.Context, root *types.Digest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if root == nil {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove trusted root: %w", err)
		}
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create client directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary root file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(root[:]); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write trusted root: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync trusted root: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close trusted root: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("failed to replace trusted root: %w", err)
	}
	return nil
}

// MemoryCache holds the trusted root in memory, for tests and short-lived clients
type MemoryCache struct {
	mu   sync.RWMutex
	root *types.Digest
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Get(ctx context.Context) (*types.Digest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.root == nil {
		return nil, nil
	}
	root := *m.root
	return &root, nil
}

func (m *MemoryCache) Set(ctx context.Context, root *types.Digest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if root == nil {
		m.root = nil
		return nil
	}
	copied := *root
	m.root = &copied
	return nil
}
