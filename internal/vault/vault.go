// Package vault implements the archive backends documents are copied into.
package vault

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when a blob or catalog is absent from a vault.
var ErrNotFound = errors.New("not found in vault")

// drain consumes r and checks it produced exactly size bytes. Idempotent puts
// of an already stored key still read their input, so callers see the same
// reader behaviour either way.
func drain(r io.Reader, size int64) error {
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, n)
	}
	return nil
}
