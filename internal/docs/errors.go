package docs

import "errors"

var (
	// ErrInvalidFileName is returned for names that do not reduce to a usable path element.
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrInvalidIdentity is returned for identities that are not sanitized path segments.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrVersionExists is returned when the next version directory is already present.
	ErrVersionExists = errors.New("version already exists")

	// ErrNoArchive is returned when a document has never been archived.
	ErrNoArchive = errors.New("document has no archive")

	// ErrDecryptionRequired is returned when restoring encrypted artifacts without a key.
	ErrDecryptionRequired = errors.New("decryption context required")

	// ErrUnsafeArtifactPath is returned when a catalogued path would escape its namespace.
	ErrUnsafeArtifactPath = errors.New("unsafe artifact path")

	// ErrChecksumMismatch is returned when restored content does not match its catalog entry.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)
