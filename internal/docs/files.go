package docs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// StoredFile describes one live document in a namespace.
type StoredFile struct {
	Name         string       `json:"name"`
	Time         time.Time    `json:"time"`
	DocumentType DocumentType `json:"documentType"`
	CanEdit      bool         `json:"canEdit"`
	Version      int          `json:"version"`
}

// CreateDocument stores content under the first free variant of fileName and
// records userID/userName as its creator. It returns the name used.
// The document file is created exclusively; losing a race for the same name
// is reported as fs.ErrExist rather than overwriting the winner.
func (s *Service) CreateDocument(identity, fileName string, content io.Reader, userID, userName string) (string, error) {
	name, err := s.CorrectName(fileName, identity)
	if err != nil {
		return "", err
	}
	path, err := s.layout.StoragePath(name, identity)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing document: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing document: %w", err)
	}

	if err := s.SaveFileData(identity, name, userID, userName); err != nil {
		return "", err
	}
	s.logger.Info("created document", "identity", identity, "document", name)
	return name, nil
}

// StoredFiles lists the live documents of a namespace, newest first.
// Version is the current version of each document (saved versions + 1).
func (s *Service) StoredFiles(identity string) ([]StoredFile, error) {
	dir, err := s.layout.UserDir(identity)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating user directory: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading user directory: %w", err)
	}

	var files []StoredFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".tmp-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		count, _, err := s.savedVersions(entry.Name(), identity)
		if err != nil {
			return nil, err
		}
		files = append(files, StoredFile{
			Name:         entry.Name(),
			Time:         info.ModTime(),
			DocumentType: s.types.Type(entry.Name()),
			CanEdit:      s.editable[s.types.Extension(entry.Name())],
			Version:      count + 1,
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Time.After(files[j].Time)
	})
	return files, nil
}

// DeleteDocument removes a live document together with its history.
// Removing a document that does not exist is not an error.
func (s *Service) DeleteDocument(identity, fileName string) error {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return err
	}
	unlock := s.lockDocument(identity, name)
	defer unlock()

	if err := s.deleteHistory(name, identity); err != nil {
		return err
	}
	path, err := s.layout.StoragePath(name, identity)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing document: %w", err)
	}
	s.logger.Info("deleted document", "identity", identity, "document", name)
	return nil
}

// DeleteHistory removes every saved version, the forcesave checkpoint and the
// creation metadata of a document. The live document is kept.
func (s *Service) DeleteHistory(identity, fileName string) error {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return err
	}
	unlock := s.lockDocument(identity, name)
	defer unlock()

	return s.deleteHistory(name, identity)
}

func (s *Service) deleteHistory(name, identity string) error {
	history, err := s.layout.HistoryPath(name, identity, true)
	if err != nil {
		return err
	}
	if err := CleanFolderRecursive(history, true); err != nil {
		return fmt.Errorf("removing history: %w", err)
	}
	return nil
}

// CleanFolderRecursive removes everything below folder, and folder itself when
// removeSelf is set. A missing folder is left alone. Symbolic links are
// removed, never followed.
func CleanFolderRecursive(folder string, removeSelf bool) error {
	ok, err := exists(folder)
	if err != nil || !ok {
		return err
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return fmt.Errorf("reading %s: %w", folder, err)
	}
	for _, entry := range entries {
		path := filepath.Join(folder, entry.Name())
		if entry.IsDir() {
			if err := CleanFolderRecursive(path, true); err != nil {
				return err
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	if removeSelf {
		if err := os.Remove(folder); err != nil {
			return fmt.Errorf("removing %s: %w", folder, err)
		}
	}
	return nil
}
