package docs

import "io"

// Vault is the off-host store that archived artifacts are copied into.
// All operations stream through io.Reader/io.Writer so large documents
// never need to be held in memory.
type Vault interface {
	// PutBlob stores an artifact blob under key.
	// The operation is idempotent: storing the same key multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutBlob(key string, r io.Reader, size int64) error

	// GetBlob retrieves a blob by key and writes it to w.
	GetBlob(key string, w io.Writer) error

	// PutCatalog stores the catalog database snapshot of an instance.
	// version is stored alongside it for consistency checks.
	PutCatalog(instanceID string, r io.Reader, size int64, version int64) error

	// GetCatalog retrieves the catalog snapshot of an instance and writes it to w.
	GetCatalog(instanceID string, w io.Writer) error

	// CatalogVersion returns the stored catalog version, or 0 if none exists.
	CatalogVersion(instanceID string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
