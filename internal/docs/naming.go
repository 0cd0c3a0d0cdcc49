package docs

import (
	"fmt"
	"strconv"
)

// CorrectName returns the first name, starting with fileName itself, that is
// not taken in the caller's namespace. Taken names get " (n)" inserted before
// the extension, n = 1, 2, ...
//
// Two callers racing for the same name can both be handed it; writers must
// create the file exclusively (see CreateDocument) rather than trust the result.
func (s *Service) CorrectName(fileName, identity string) (string, error) {
	if _, err := s.layout.FileName(fileName); err != nil {
		return "", err
	}
	// The extension keeps its case; only classification lowercases it.
	name := s.types.BaseName(fileName, false)
	base := s.types.BaseName(fileName, true)
	ext := name[len(base):]

	for index := 1; ; index++ {
		path, err := s.layout.StoragePath(name, identity)
		if err != nil {
			return "", err
		}
		taken, err := exists(path)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", name, err)
		}
		if !taken {
			return name, nil
		}
		name = base + " (" + strconv.Itoa(index) + ")" + ext
	}
}
