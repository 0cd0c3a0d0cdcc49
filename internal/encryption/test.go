package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"docstore-go/internal/docs"
)

// sealMarker opens every blob sealed by TestEncryptor.
var sealMarker = []byte("docstore-sealed\n")

// ErrNotSealed is returned when a blob does not carry the test seal.
var ErrNotSealed = errors.New("blob is not sealed")

// ErrWrongPassphrase is returned by TestEncryptor.Unlock for a passphrase
// other than the one it was set up with.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// TestEncryptor is a keyless, deterministic Encryptor for archives in tests
// and the "test" encryption type. Sealed blobs are the plaintext behind
// sealMarker, so equal artifacts still get equal blobs. Once Setup has run,
// Unlock only accepts the same passphrase.
type TestEncryptor struct {
	mu         sync.Mutex
	passphrase string
}

var _ docs.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("passphrase must not be empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passphrase = passphrase
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(sealMarker); err != nil {
		return fmt.Errorf("writing seal: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("sealing blob: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (docs.DecryptionContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.passphrase != "" && passphrase != e.passphrase {
		return nil, ErrWrongPassphrase
	}
	return unsealer{}, nil
}

// IsConfigured is always true: there are no keys to generate.
func (e *TestEncryptor) IsConfigured() bool {
	return true
}

type unsealer struct{}

func (unsealer) Decrypt(r io.Reader, w io.Writer) error {
	marker := make([]byte, len(sealMarker))
	if _, err := io.ReadFull(r, marker); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNotSealed
		}
		return fmt.Errorf("reading seal: %w", err)
	}
	if !bytes.Equal(marker, sealMarker) {
		return ErrNotSealed
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("unsealing blob: %w", err)
	}
	return nil
}
