package testutil

import (
	"testing"

	"docstore-go/internal/database"
	"docstore-go/internal/docs"
)

// NewTestDatabase creates a new in-memory SQLite database with all migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) docs.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
