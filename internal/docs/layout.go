package docs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
)

const (
	historySuffix   = "-history"
	prevFilePrefix  = "prev"
	diffFileName    = "diff.zip"
	changesFileName = "changes.txt"
	keyFileName     = "key.txt"
	userFileName    = "user.txt"
	fileDataSuffix  = ".txt"
)

// Layout maps (identity, fileName, version) onto the storage tree:
//
//	<root>/
//	  <identity>/
//	    <fileName>                          (live document)
//	    <fileName>-history/
//	      <fileName>.txt                    (creation metadata)
//	      <fileName>                        (forcesave checkpoint)
//	      <N>/                              (one per saved version, N = 1, 2, ...)
//	        prev<ext>  diff.zip  changes.txt  key.txt  user.txt
//
// Every resolver consults the filesystem on each call and keeps no state
// besides the root, so manual edits to the tree are always observed.
type Layout struct {
	root  string
	types FileTypeClassifier
}

// NewLayout creates the storage root if needed and returns a Layout over it.
func NewLayout(root string, types FileTypeClassifier) (*Layout, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &Layout{root: abs, types: types}, nil
}

// Root returns the absolute storage root.
func (l *Layout) Root() string {
	return l.root
}

// UserDir returns the namespace directory of identity without touching disk.
func (l *Layout) UserDir(identity string) (string, error) {
	if !validIdentity(identity) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return filepath.Join(l.root, identity), nil
}

// FileName reduces fileName to the bare document name used on disk.
func (l *Layout) FileName(fileName string) (string, error) {
	name := l.types.BaseName(fileName, false)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	return name, nil
}

// StoragePath returns the live document path, creating the namespace
// directory if it does not exist yet. Safe to call repeatedly.
func (l *Layout) StoragePath(fileName, identity string) (string, error) {
	name, dir, err := l.resolve(fileName, identity)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating user directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// HistoryPath returns the history directory of a document.
//
// With create=false it returns "" when the namespace directory is missing or
// when no version has ever been saved (there is no "1" subdirectory).
// With create=true the path is returned unconditionally and nothing is created;
// use EnsureHistoryPath when the directory must exist on disk.
func (l *Layout) HistoryPath(fileName, identity string, create bool) (string, error) {
	name, dir, err := l.resolve(fileName, identity)
	if err != nil {
		return "", err
	}
	history := filepath.Join(dir, name+historySuffix)
	if create {
		return history, nil
	}

	ok, err := exists(dir)
	if err != nil || !ok {
		return "", err
	}
	ok, err = exists(filepath.Join(history, "1"))
	if err != nil || !ok {
		return "", err
	}
	return history, nil
}

// EnsureHistoryPath returns the history directory, creating it (and the
// namespace directory) when missing.
func (l *Layout) EnsureHistoryPath(fileName, identity string) (string, error) {
	history, err := l.HistoryPath(fileName, identity, true)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(history, 0755); err != nil {
		return "", fmt.Errorf("creating history directory: %w", err)
	}
	return history, nil
}

// ForcesavePath returns the forcesave checkpoint of a document.
//
// It returns "" when the namespace directory is missing. With create=false it
// also returns "" when the history directory or the checkpoint itself is
// absent. With create=true the history directory is created and the
// checkpoint path is returned whether or not the checkpoint exists.
func (l *Layout) ForcesavePath(fileName, identity string, create bool) (string, error) {
	name, dir, err := l.resolve(fileName, identity)
	if err != nil {
		return "", err
	}
	ok, err := exists(dir)
	if err != nil || !ok {
		return "", err
	}

	history := filepath.Join(dir, name+historySuffix)
	if !create {
		ok, err := exists(history)
		if err != nil || !ok {
			return "", err
		}
	}
	if err := os.MkdirAll(history, 0755); err != nil {
		return "", fmt.Errorf("creating history directory: %w", err)
	}

	checkpoint := filepath.Join(history, name)
	if !create {
		ok, err := exists(checkpoint)
		if err != nil || !ok {
			return "", err
		}
	}
	return checkpoint, nil
}

// VersionPath returns the directory of a saved version.
func (l *Layout) VersionPath(fileName, identity string, version int) (string, error) {
	history, err := l.HistoryPath(fileName, identity, true)
	if err != nil {
		return "", err
	}
	return filepath.Join(history, strconv.Itoa(version)), nil
}

// PrevFilePath returns the snapshot of the content a version replaced.
func (l *Layout) PrevFilePath(fileName, identity string, version int) (string, error) {
	return l.versionArtifact(fileName, identity, version, prevFilePrefix+l.types.Extension(fileName))
}

// DiffPath returns the editor's diff archive of a version.
func (l *Layout) DiffPath(fileName, identity string, version int) (string, error) {
	return l.versionArtifact(fileName, identity, version, diffFileName)
}

// ChangesPath returns the change log of a version.
func (l *Layout) ChangesPath(fileName, identity string, version int) (string, error) {
	return l.versionArtifact(fileName, identity, version, changesFileName)
}

// KeyPath returns the editor key recorded for a version.
func (l *Layout) KeyPath(fileName, identity string, version int) (string, error) {
	return l.versionArtifact(fileName, identity, version, keyFileName)
}

// ChangesUserPath returns the file naming the user that committed a version.
func (l *Layout) ChangesUserPath(fileName, identity string, version int) (string, error) {
	return l.versionArtifact(fileName, identity, version, userFileName)
}

// FileDataPath returns the creation metadata record of a document.
func (l *Layout) FileDataPath(fileName, identity string) (string, error) {
	name, err := l.FileName(fileName)
	if err != nil {
		return "", err
	}
	history, err := l.HistoryPath(name, identity, true)
	if err != nil {
		return "", err
	}
	return filepath.Join(history, name+fileDataSuffix), nil
}

func (l *Layout) versionArtifact(fileName, identity string, version int, artifact string) (string, error) {
	dir, err := l.VersionPath(fileName, identity, version)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, artifact), nil
}

// resolve validates both inputs and returns the document name and namespace directory.
func (l *Layout) resolve(fileName, identity string) (string, string, error) {
	name, err := l.FileName(fileName)
	if err != nil {
		return "", "", err
	}
	dir, err := l.UserDir(identity)
	if err != nil {
		return "", "", err
	}
	return name, dir, nil
}

// exists reports whether anything is present at path. A missing entry, or a
// path running through a regular file, is reported as absent rather than as an error.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, err
}
