package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"docstore-go/internal/docs"
)

// MemoryVault keeps blobs and catalogs in memory. It is meant for tests and
// for dry runs, and is safe for concurrent use.
type MemoryVault struct {
	name     string
	blobs    map[string][]byte // blob key -> data
	catalogs map[string][]byte // instance ID -> catalog snapshot
	versions map[string]int64  // instance ID -> catalog version
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		blobs:    make(map[string][]byte),
		catalogs: make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func readExactly(r io.Reader, size int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}
	return data, nil
}

// PutBlob stores a blob under key. Storing the same key again is a no-op.
func (m *MemoryVault) PutBlob(key string, r io.Reader, size int64) error {
	data, err := readExactly(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		m.blobs[key] = data
	}
	return nil
}

// GetBlob writes the blob stored under key to w.
func (m *MemoryVault) GetBlob(key string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("blob %s: %w", key, ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// HasBlob reports whether key is stored.
func (m *MemoryVault) HasBlob(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[key]
	return ok
}

// BlobCount returns the number of stored blobs.
func (m *MemoryVault) BlobCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// PutCatalog stores the catalog snapshot of an instance, replacing any previous one.
func (m *MemoryVault) PutCatalog(instanceID string, r io.Reader, size int64, version int64) error {
	data, err := readExactly(r, size)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalogs[instanceID] = data
	m.versions[instanceID] = version
	return nil
}

// GetCatalog writes the catalog snapshot of an instance to w.
func (m *MemoryVault) GetCatalog(instanceID string, w io.Writer) error {
	m.mu.RLock()
	data, ok := m.catalogs[instanceID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("catalog for instance %s: %w", instanceID, ErrNotFound)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}
	return nil
}

// CatalogVersion returns the stored catalog version, or 0 if none exists.
func (m *MemoryVault) CatalogVersion(instanceID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[instanceID], nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryVault implements docs.Vault interface
var _ docs.Vault = (*MemoryVault)(nil)
