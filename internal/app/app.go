package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"docstore-go/internal/config"
	"docstore-go/internal/database"
	"docstore-go/internal/docs"
	"docstore-go/internal/encryption"
	"docstore-go/internal/filetype"
	"docstore-go/internal/model"
	"docstore-go/internal/revision"
	"docstore-go/internal/vault"
)

// DocApp is the application layer between the CLI and the docs package.
// It constructs all dependencies from config, journals mutating commands,
// and ships the catalog to the vault on Close.
type DocApp struct {
	cfg       *config.Config
	db        docs.Database
	vault     docs.Vault
	encryptor docs.Encryptor
	service   *docs.Service
	archiver  *docs.Archiver
	op        *Operation
	logFile   *os.File
}

// DocumentLinks are the URLs handed to the editing service for one document.
type DocumentLinks struct {
	URL         string `json:"url"`
	PublicURL   string `json:"publicUrl"`
	CallbackURL string `json:"callbackUrl"`
}

// NewDocApp creates a fully wired DocApp from the given config.
// operation identifies the CLI command being run (e.g. "SaveVersion", "Archive").
// The caller must call Close when done.
func NewDocApp(cfg *config.Config, operation string) (*DocApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	// Check local catalog version against the copy in the vault.
	remoteVersion, err := v.CatalogVersion(cfg.InstanceID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking remote catalog version: %w", err)
	}

	localMax, err := db.MaxOperationID()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("checking local catalog version: %w", err)
	}

	if remoteVersion > localMax {
		db.Close()
		return nil, fmt.Errorf("local catalog is behind remote (local=%d, remote=%d): restore from vault or re-initialize", localMax, remoteVersion)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	types := filetype.NewClassifier()
	layout, err := docs.NewLayout(cfg.Storage.Root, types)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating storage layout: %w", err)
	}

	edited := cfg.Server.EditedDocs
	if edited == nil {
		edited = filetype.DefaultEditedExtensions
	}
	svc := docs.NewService(layout, types, revision.NewGenerator(), docs.ServiceOptions{
		StorageFolder:    cfg.Storage.Folder,
		ExampleURL:       cfg.Server.ExampleURL,
		EditedExtensions: edited,
	}, log)

	archiver := docs.NewArchiver(svc, db, v, enc, log, docs.RealClock{}, docs.UUIDGenerator{})

	return &DocApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		service:   svc,
		archiver:  archiver,
		op:        NewOperation(operation, ""),
		logFile:   logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *DocApp) persistOperation(parameters string) error {
	if a.op.Persisted() {
		return nil // already persisted
	}
	a.op.Parameters = parameters
	dbOp, err := a.db.CreateOperation(a.op.Operation, a.op.Parameters)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// mutate journals the current operation and records whether fn failed.
func (a *DocApp) mutate(parameters string, fn func() error) error {
	if err := a.persistOperation(parameters); err != nil {
		return err
	}
	if err := fn(); err != nil {
		a.op.Fail()
		return err
	}
	return nil
}

func documentParams(identity, fileName string) string {
	return identity + "/" + fileName
}

// CreateDocument stores a new document under the first free variant of fileName.
// Returns the name used.
func (a *DocApp) CreateDocument(identity, fileName string, content io.Reader, userID, userName string) (string, error) {
	var name string
	err := a.mutate(documentParams(identity, fileName), func() error {
		var err error
		name, err = a.service.CreateDocument(identity, fileName, content, userID, userName)
		return err
	})
	return name, err
}

// StoredFiles lists the live documents of a namespace, newest first.
func (a *DocApp) StoredFiles(identity string) ([]docs.StoredFile, error) {
	return a.service.StoredFiles(identity)
}

// Key returns the current revision key of a document.
func (a *DocApp) Key(caller docs.Caller, fileName string) (string, error) {
	return a.service.Key(caller, fileName)
}

// Links returns the document, public and callback URLs of a document.
func (a *DocApp) Links(caller docs.Caller, fileName string) DocumentLinks {
	return DocumentLinks{
		URL:         a.service.LocalFileURI(caller, fileName, 0),
		PublicURL:   a.service.PublicFileURI(caller, fileName, 0),
		CallbackURL: a.service.CallbackURL(caller, fileName),
	}
}

// History returns the full history view of a document.
func (a *DocApp) History(caller docs.Caller, fileName string) (*docs.DocumentHistory, error) {
	return a.service.History(caller, fileName)
}

// SaveVersion commits the live document as a new version and replaces it.
// Returns the version number created.
func (a *DocApp) SaveVersion(identity, fileName string, req docs.SaveRequest) (int, error) {
	var version int
	err := a.mutate(documentParams(identity, fileName), func() error {
		var err error
		version, err = a.service.SaveVersion(identity, fileName, req)
		return err
	})
	return version, err
}

// SaveForcesave stores an intermediate checkpoint of a document.
func (a *DocApp) SaveForcesave(identity, fileName string, content io.Reader) error {
	return a.mutate(documentParams(identity, fileName), func() error {
		return a.service.SaveForcesave(identity, fileName, content)
	})
}

// DeleteDocument removes a document and its history. With historyOnly the
// live document is kept.
func (a *DocApp) DeleteDocument(identity, fileName string, historyOnly bool) error {
	return a.mutate(documentParams(identity, fileName), func() error {
		if historyOnly {
			return a.service.DeleteHistory(identity, fileName)
		}
		return a.service.DeleteDocument(identity, fileName)
	})
}

// Archive copies a document and its history into the vault.
// Returns the number of artifacts archived.
func (a *DocApp) Archive(identity, fileName string) (int, error) {
	var n int
	err := a.mutate(documentParams(identity, fileName), func() error {
		var err error
		n, err = a.archiver.Archive(identity, fileName)
		return err
	})
	return n, err
}

// NeedsDecryption reports whether restoring a document requires the passphrase.
func (a *DocApp) NeedsDecryption(identity, fileName string) (bool, error) {
	return a.archiver.NeedsDecryption(identity, fileName)
}

// Restore rewrites an archived document into storage. passphrase is only
// used when the archive holds encrypted artifacts.
// Returns the list of restored file paths.
func (a *DocApp) Restore(identity, fileName, passphrase string) ([]string, error) {
	var restored []string
	err := a.mutate(documentParams(identity, fileName), func() error {
		needs, err := a.archiver.NeedsDecryption(identity, fileName)
		if err != nil {
			return err
		}
		var decryptCtx docs.DecryptionContext
		if needs {
			if a.encryptor == nil {
				return fmt.Errorf("archive is encrypted but no encryption is configured")
			}
			decryptCtx, err = a.encryptor.Unlock(passphrase)
			if err != nil {
				return fmt.Errorf("unlocking private key: %w", err)
			}
		}
		restored, err = a.archiver.Restore(identity, fileName, decryptCtx)
		return err
	})
	return restored, err
}

// Journal returns the most recent operations, newest first.
func (a *DocApp) Journal(limit int) ([]*model.Operation, error) {
	return a.db.ListOperations(limit)
}

// Close finalizes the operation and closes all resources.
// For persisted operations: finishes the operation record, snapshots the catalog, and uploads it to the vault.
// For non-persisted operations: just closes the database.
func (a *DocApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		// Finalize the operation record
		if err := a.db.FinishOperation(a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}

		// Snapshot the catalog to a temp path; VACUUM INTO needs a path that does not exist yet.
		tmpDir, err := os.MkdirTemp("", "docstore-catalog-*")
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("creating temp dir for catalog snapshot: %w", err)
		}

		var tmpPath string
		if tmpDir != "" {
			defer os.RemoveAll(tmpDir)
			tmpPath = filepath.Join(tmpDir, "catalog.db")
			if err := a.db.BackupTo(tmpPath); err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("backing up catalog: %w", err)
				}
				tmpPath = "" // skip vault upload
			}
		}

		// Close the database
		if err := a.db.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("closing database: %w", err)
			}
		}

		// Upload the snapshot with version = operation ID
		if tmpPath != "" {
			if err := a.uploadCatalog(tmpPath, a.op.ID); err != nil {
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	} else {
		// Read-only operation: just close the database, no upload
		if err := a.db.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// uploadCatalog opens the snapshot and uploads it to the vault.
func (a *DocApp) uploadCatalog(path string, version int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening catalog snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat catalog snapshot: %w", err)
	}

	if err := a.vault.PutCatalog(a.cfg.InstanceID, f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading catalog to vault: %w", err)
	}

	return nil
}

// SetupKeys generates the archive encryption key pair configured in cfg.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled: set encryption.type to \"age\" first")
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	return nil
}
