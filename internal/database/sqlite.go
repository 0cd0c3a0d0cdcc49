package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docstore-go/internal/database/migrations"
	"docstore-go/internal/docs"
	"docstore-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the docs.Database interface using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteDatabase opens a SQLite catalog and migrates it to the latest schema.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteDatabase{db: db, path: path, now: time.Now}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing, already migrated connection.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db, now: time.Now}
}

// OpenConnection opens and configures a SQLite connection.
// The pool is limited to one connection: SQLite has a single writer, and an
// in-memory database exists only on the connection that created it.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Operation journal

func (s *SQLiteDatabase) CreateOperation(operation string, parameters string) (*model.Operation, error) {
	op := &model.Operation{
		Operation:  operation,
		Parameters: parameters,
		StartedAt:  s.now().UTC(),
	}
	res, err := s.db.Exec(
		`INSERT INTO operations (operation, parameters, started_at) VALUES (?, ?, ?)`,
		op.Operation, op.Parameters, op.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FinishOperation(id int64, status string) error {
	res, err := s.db.Exec(
		`UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`,
		s.now().UTC(), status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing operation: no operation with id %d", id)
	}
	return nil
}

func (s *SQLiteDatabase) ListOperations(limit int) ([]*model.Operation, error) {
	rows, err := s.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*model.Operation
	for rows.Next() {
		var op model.Operation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) MaxOperationID() (int64, error) {
	var id int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM operations`).Scan(&id); err != nil {
		return 0, fmt.Errorf("getting max operation ID: %w", err)
	}
	return id, nil
}

// Archive index

func (s *SQLiteDatabase) FindContentByChecksum(checksum string) (*model.Content, error) {
	var c model.Content
	err := s.db.QueryRow(
		`SELECT id, encrypted, size, created_at FROM contents WHERE id = ?`, checksum,
	).Scan(&c.ID, &c.Encrypted, &c.Size, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding content by checksum: %w", err)
	}
	return &c, nil
}

func (s *SQLiteDatabase) FindArtifacts(identity string, fileName string) ([]*model.Artifact, error) {
	rows, err := s.db.Query(
		`SELECT id, identity, file_name, rel_path, content_id, size, modified_at, archived_at
		 FROM artifacts WHERE identity = ? AND file_name = ? ORDER BY rel_path`,
		identity, fileName,
	)
	if err != nil {
		return nil, fmt.Errorf("finding artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.ID, &a.Identity, &a.FileName, &a.RelPath, &a.ContentID, &a.Size, &a.ModifiedAt, &a.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scanning artifact: %w", err)
		}
		artifacts = append(artifacts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding artifacts: %w", err)
	}
	return artifacts, nil
}

// ReplaceArtifacts inserts the new contents and swaps the artifact set of a
// document inside a single transaction, so the catalog never shows a
// partially archived document.
func (s *SQLiteDatabase) ReplaceArtifacts(identity string, fileName string, artifacts []*model.Artifact, contents []*model.Content) error {
	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range contents {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO contents (id, encrypted, size, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			c.ID, c.Encrypted, c.Size, c.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting content %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM artifacts WHERE identity = ? AND file_name = ?`, identity, fileName,
	); err != nil {
		return fmt.Errorf("clearing artifacts: %w", err)
	}

	for _, a := range artifacts {
		if a.Identity != identity || a.FileName != fileName {
			return fmt.Errorf("artifact %s belongs to %s/%s, not %s/%s", a.RelPath, a.Identity, a.FileName, identity, fileName)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO artifacts (id, identity, file_name, rel_path, content_id, size, modified_at, archived_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Identity, a.FileName, a.RelPath, a.ContentID, a.Size, a.ModifiedAt.UTC(), a.ArchivedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("inserting artifact %s: %w", a.RelPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteArtifacts(identity string, fileName string) error {
	if _, err := s.db.Exec(
		`DELETE FROM artifacts WHERE identity = ? AND file_name = ?`, identity, fileName,
	); err != nil {
		return fmt.Errorf("deleting artifacts: %w", err)
	}
	return nil
}

// Maintenance

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
// destPath must not exist yet.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements docs.Database interface
var _ docs.Database = (*SQLiteDatabase)(nil)
