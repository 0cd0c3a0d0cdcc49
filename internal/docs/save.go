package docs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SaveRequest carries what the editing service hands back when a document is saved.
type SaveRequest struct {
	// Content is the new live document.
	Content io.Reader

	// Diff is the editor's diff archive. Optional.
	Diff io.Reader

	// Changes is the raw changes record, written verbatim. Optional.
	Changes []byte

	// Key is the revision key the editor held for the replaced content.
	Key string

	// UserID identifies the committing user.
	UserID string
}

// SaveVersion commits the live document as a new saved version and replaces it
// with req.Content. It returns the number of the version directory created.
//
// Allocation of the version number and creation of its directory are
// serialized per document, and the directory is created non-recursively, so
// two saves never share a number. If writing the version or replacing the
// live document fails, the version directory is removed again and the live
// document keeps its previous content.
func (s *Service) SaveVersion(identity, fileName string, req SaveRequest) (int, error) {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return 0, err
	}
	livePath, err := s.layout.StoragePath(name, identity)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(livePath); err != nil {
		return 0, fmt.Errorf("stat document: %w", err)
	}

	unlock := s.lockDocument(identity, name)
	defer unlock()

	count, _, err := s.savedVersions(name, identity)
	if err != nil {
		return 0, err
	}
	version := count + 1

	if _, err := s.layout.EnsureHistoryPath(name, identity); err != nil {
		return 0, err
	}
	versionDir, err := s.layout.VersionPath(name, identity, version)
	if err != nil {
		return 0, err
	}
	if err := os.Mkdir(versionDir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("%w: %s version %d", ErrVersionExists, name, version)
		}
		return 0, fmt.Errorf("creating version directory: %w", err)
	}

	discard := func() {
		if rmErr := os.RemoveAll(versionDir); rmErr != nil {
			s.logger.Warn("failed to remove incomplete version", "document", name, "version", version, "error", rmErr)
		}
	}
	if err := s.writeVersion(name, identity, version, livePath, req); err != nil {
		discard()
		return 0, err
	}
	if _, err := writeFileAtomic(livePath, req.Content); err != nil {
		discard()
		return 0, fmt.Errorf("replacing document: %w", err)
	}

	checkpoint, err := s.layout.ForcesavePath(name, identity, false)
	if err != nil {
		return 0, err
	}
	if checkpoint != "" {
		if err := os.Remove(checkpoint); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("removing forcesave checkpoint: %w", err)
		}
	}

	s.logger.Info("saved version", "identity", identity, "document", name, "version", version)
	return version, nil
}

// writeVersion fills a freshly created version directory.
func (s *Service) writeVersion(name, identity string, version int, livePath string, req SaveRequest) error {
	if req.Diff != nil {
		path, err := s.layout.DiffPath(name, identity, version)
		if err != nil {
			return err
		}
		if _, err := writeFileAtomic(path, req.Diff); err != nil {
			return fmt.Errorf("writing diff: %w", err)
		}
	}
	if req.Changes != nil {
		path, err := s.layout.ChangesPath(name, identity, version)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, req.Changes, 0644); err != nil {
			return fmt.Errorf("writing changes: %w", err)
		}
	}

	keyPath, err := s.layout.KeyPath(name, identity, version)
	if err != nil {
		return err
	}
	if err := os.WriteFile(keyPath, []byte(req.Key), 0644); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}

	userPath, err := s.layout.ChangesUserPath(name, identity, version)
	if err != nil {
		return err
	}
	if err := os.WriteFile(userPath, []byte(req.UserID), 0644); err != nil {
		return fmt.Errorf("writing user: %w", err)
	}

	prevPath, err := s.layout.PrevFilePath(name, identity, version)
	if err != nil {
		return err
	}
	if err := copyFile(livePath, prevPath); err != nil {
		return fmt.Errorf("snapshotting previous content: %w", err)
	}
	return nil
}

// SaveForcesave stores an intermediate checkpoint of a document that is still
// being edited. The namespace directory must already exist.
func (s *Service) SaveForcesave(identity, fileName string, content io.Reader) error {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return err
	}
	checkpoint, err := s.layout.ForcesavePath(name, identity, true)
	if err != nil {
		return err
	}
	if checkpoint == "" {
		return fmt.Errorf("namespace %s: %w", identity, fs.ErrNotExist)
	}
	if _, err := writeFileAtomic(checkpoint, content); err != nil {
		return fmt.Errorf("writing forcesave checkpoint: %w", err)
	}
	s.logger.Info("saved forcesave checkpoint", "identity", identity, "document", name)
	return nil
}

// writeFileAtomic writes r to destPath through a temp file in the same
// directory and a rename. It returns the number of bytes written.
func writeFileAtomic(destPath string, r io.Reader) (int64, error) {
	if r == nil {
		r = bytes.NewReader(nil)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
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
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	_, err = writeFileAtomic(dst, in)
	return err
}
