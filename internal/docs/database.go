package docs

import "docstore-go/internal/model"

// Database provides the catalog: the operation journal and the index of
// archived artifacts. Lookups return nil and no error when nothing matches.
type Database interface {
	// Operation journal

	// CreateOperation records the start of an operation and assigns its ID.
	CreateOperation(operation string, parameters string) (*model.Operation, error)

	// FinishOperation stamps the finish time and final status of an operation.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.Operation, error)

	// MaxOperationID returns the highest operation ID, or 0 for an empty journal.
	MaxOperationID() (int64, error)

	// Archive index

	// FindContentByChecksum returns content metadata by checksum.
	FindContentByChecksum(checksum string) (*model.Content, error)

	// FindArtifacts returns the archived artifacts of a document ordered by path.
	FindArtifacts(identity string, fileName string) ([]*model.Artifact, error)

	// ReplaceArtifacts atomically swaps the archived artifact set of a document.
	// Contents that are not yet recorded are inserted in the same transaction.
	ReplaceArtifacts(identity string, fileName string, artifacts []*model.Artifact, contents []*model.Content) error

	// DeleteArtifacts forgets every archived artifact of a document.
	DeleteArtifacts(identity string, fileName string) error

	// Maintenance

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the database to destPath.
	BackupTo(destPath string) error

	// Close closes the database connection.
	Close() error
}
