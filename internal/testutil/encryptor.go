package testutil

import (
	"docstore-go/internal/docs"
	"docstore-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() docs.Encryptor {
	return encryption.NewTestEncryptor()
}
