package docs

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// CountVersion returns the number of saved versions under a history directory.
// Versions are counted by probing "1", "2", ... until one is missing, so a
// gap ends the sequence: {1,2,4} counts as 2. An absent or empty directory
// counts as 0. Nothing is cached; the count always reflects the disk.
func CountVersion(historyDir string) (int, error) {
	if historyDir == "" {
		return 0, nil
	}
	i := 0
	for {
		ok, err := exists(filepath.Join(historyDir, strconv.Itoa(i+1)))
		if err != nil {
			return 0, fmt.Errorf("probing version %d: %w", i+1, err)
		}
		if !ok {
			return i, nil
		}
		i++
	}
}

// savedVersions probes the history of a document once. hasHistory is false
// when no version was ever saved, in which case count is 0.
func (s *Service) savedVersions(name, identity string) (count int, hasHistory bool, err error) {
	history, err := s.layout.HistoryPath(name, identity, false)
	if err != nil {
		return 0, false, fmt.Errorf("resolving history path: %w", err)
	}
	if history == "" {
		return 0, false, nil
	}
	count, err = CountVersion(history)
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

// CurrentVersion returns the version number of the live document:
// one more than the number of saved versions.
func (s *Service) CurrentVersion(identity, fileName string) (int, error) {
	name, err := s.layout.FileName(fileName)
	if err != nil {
		return 0, err
	}
	count, _, err := s.savedVersions(name, identity)
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}
