package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"docstore-go/internal/docs"
)

// FileSystemVault stores archives in a directory tree:
//
//	<root>/
//	  blobs/
//	    <key>              (content addressed artifact, optionally <checksum>.age)
//	  catalogs/
//	    <instanceID>.db    (catalog snapshot)
//	    <instanceID>.version
type FileSystemVault struct {
	name       string
	root       string
	blobDir    string
	catalogDir string
}

// NewFileSystemVault creates a filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	blobDir := filepath.Join(root, "blobs")
	catalogDir := filepath.Join(root, "catalogs")

	for _, dir := range []string{blobDir, catalogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	return &FileSystemVault{
		name:       name,
		root:       root,
		blobDir:    blobDir,
		catalogDir: catalogDir,
	}, nil
}

// blobPath maps a key to a file. Keys are single path elements.
func (v *FileSystemVault) blobPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(v.blobDir, key), nil
}

// PutBlob stores a blob under key. Storing an existing key only consumes r.
func (v *FileSystemVault) PutBlob(key string, r io.Reader, size int64) error {
	dest, err := v.blobPath(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return drain(r, size)
	}
	return writeFile(dest, r, size)
}

// GetBlob writes the blob stored under key to w.
func (v *FileSystemVault) GetBlob(key string, w io.Writer) error {
	src, err := v.blobPath(key)
	if err != nil {
		return err
	}
	return readFile(src, w, "blob "+key)
}

// PutCatalog stores the catalog snapshot of an instance along with its version.
// The snapshot is written before the version so a reader never sees a
// version newer than the data it describes.
func (v *FileSystemVault) PutCatalog(instanceID string, r io.Reader, size int64, version int64) error {
	if err := writeFile(filepath.Join(v.catalogDir, instanceID+".db"), r, size); err != nil {
		return err
	}
	versionData := strings.NewReader(strconv.FormatInt(version, 10))
	return writeFile(filepath.Join(v.catalogDir, instanceID+".version"), versionData, versionData.Size())
}

// GetCatalog writes the catalog snapshot of an instance to w.
func (v *FileSystemVault) GetCatalog(instanceID string, w io.Writer) error {
	return readFile(filepath.Join(v.catalogDir, instanceID+".db"), w, "catalog for instance "+instanceID)
}

// CatalogVersion returns the stored catalog version, or 0 if none exists.
func (v *FileSystemVault) CatalogVersion(instanceID string) (int64, error) {
	data, err := os.ReadFile(filepath.Join(v.catalogDir, instanceID+".version"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault directories exist.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.blobDir, v.catalogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFile writes r to destPath through a temp file and a rename, failing
// if r does not yield exactly expectedSize bytes.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

func readFile(srcPath string, w io.Writer, what string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemVault implements docs.Vault interface
var _ docs.Vault = (*FileSystemVault)(nil)
