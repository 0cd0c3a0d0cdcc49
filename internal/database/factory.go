package database

import (
	"fmt"
	"os"
	"path/filepath"

	"docstore-go/internal/config"
	"docstore-go/internal/docs"
)

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// The sqlite catalog lives at <data_dir>/<instanceID>.db.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, instanceID string) (docs.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return openSQLite(filepath.Join(cfg.DataDir, instanceID+".db"))
	case "memory":
		return openSQLite(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// openSQLite keeps a failed open from leaking a typed nil into the interface.
func openSQLite(path string) (docs.Database, error) {
	db, err := NewSQLiteDatabase(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}
