package model

import (
	"database/sql"
	"time"
)

// Operation is one journalled CLI operation that mutated storage or the catalog.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "success" or "error", empty while running
}

// Content represents an archived blob in the vault.
// The ID is the SHA-256 checksum of the plaintext artifact.
type Content struct {
	ID        string // SHA-256 checksum (not a UUID)
	Encrypted bool   // stored ciphertext rather than plaintext
	Size      int64  // plaintext size in bytes
	CreatedAt time.Time
}

// Artifact is one file of a document namespace captured by an archive run.
// RelPath is relative to the caller's namespace directory, e.g.
// "report.docx" or "report.docx-history/2/diff.zip".
type Artifact struct {
	ID         string // UUID
	Identity   string // sanitized caller identity
	FileName   string // document the artifact belongs to
	RelPath    string
	ContentID  string // foreign key to Content
	Size       int64
	ModifiedAt time.Time // artifact mtime when archived
	ArchivedAt time.Time
}
