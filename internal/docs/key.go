package docs

import (
	"fmt"
	"os"
	"strconv"
)

// Key returns the revision key identifying the current state of a document to
// the external editing service. The seed is the caller identity, the
// document's canonical URL, the saved version count (only once a history
// exists) and the live file's mtime in milliseconds. Touching the file or
// saving a version changes the key; nothing else does.
//
// A missing document fails with an error wrapping fs.ErrNotExist.
func (s *Service) Key(caller Caller, fileName string) (string, error) {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return "", err
	}
	count, hasHistory, err := s.savedVersions(name, caller.Identity)
	if err != nil {
		return "", err
	}
	return s.keyFor(caller, name, count, hasHistory)
}

// keyFor builds the key from an already probed version count.
func (s *Service) keyFor(caller Caller, name string, count int, hasHistory bool) (string, error) {
	seed := caller.Identity + s.LocalFileURI(caller, name, 0)
	if hasHistory {
		seed += strconv.Itoa(count)
	}

	path, err := s.layout.StoragePath(name, caller.Identity)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat document: %w", err)
	}
	seed += strconv.FormatInt(info.ModTime().UnixMilli(), 10)

	return s.revisions.GenerateRevisionID(seed), nil
}
