package docs

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docstore-go/internal/model"
)

const encryptedBlobSuffix = ".age"

// Archiver copies a document and its whole history into a vault and back.
// Blobs are content addressed by the SHA-256 of the plaintext, so unchanged
// artifacts are uploaded once; the catalog maps each artifact path to its blob.
type Archiver struct {
	service   *Service
	database  Database
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewArchiver creates an Archiver. encryptor may be nil, in which case blobs
// are stored in plaintext.
func NewArchiver(service *Service, database Database, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *Archiver {
	return &Archiver{
		service:   service,
		database:  database,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Archive uploads the live document and every file below its history
// directory, then replaces the document's catalog entries in one transaction.
// Blobs go to the vault before the catalog is touched, so a failure leaves at
// worst unreferenced blobs behind. Returns the number of artifacts archived.
func (a *Archiver) Archive(identity, fileName string) (int, error) {
	layout := a.service.layout
	name, err := layout.FileName(fileName)
	if err != nil {
		return 0, err
	}
	unlock := a.service.lockDocument(identity, name)
	defer unlock()

	userDir, err := layout.UserDir(identity)
	if err != nil {
		return 0, err
	}
	livePath, err := layout.StoragePath(name, identity)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(livePath); err != nil {
		return 0, fmt.Errorf("stat document: %w", err)
	}
	historyDir, err := layout.HistoryPath(name, identity, true)
	if err != nil {
		return 0, err
	}

	paths := []string{livePath}
	err = filepath.WalkDir(historyDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == historyDir {
				return filepath.SkipDir
			}
			return err
		}
		if d.Type().IsRegular() && !strings.HasPrefix(d.Name(), ".tmp-") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walking history: %w", err)
	}

	now := a.clock.Now()
	var artifacts []*model.Artifact
	var contents []*model.Content
	pending := make(map[string]bool)
	for _, path := range paths {
		rel, err := filepath.Rel(userDir, path)
		if err != nil {
			return 0, fmt.Errorf("calculating relative path: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", rel, err)
		}
		checksum, size, err := hashFile(path)
		if err != nil {
			return 0, fmt.Errorf("hashing %s: %w", rel, err)
		}

		if !pending[checksum] {
			existing, err := a.database.FindContentByChecksum(checksum)
			if err != nil {
				return 0, fmt.Errorf("checking for existing content: %w", err)
			}
			if existing == nil {
				content, err := a.upload(path, checksum, size)
				if err != nil {
					return 0, fmt.Errorf("uploading %s: %w", rel, err)
				}
				content.CreatedAt = now
				contents = append(contents, content)
			} else {
				a.logger.Debug("content deduplicated", "checksum", checksum)
			}
			pending[checksum] = true
		}

		artifacts = append(artifacts, &model.Artifact{
			ID:         a.idgen.New(),
			Identity:   identity,
			FileName:   name,
			RelPath:    filepath.ToSlash(rel),
			ContentID:  checksum,
			Size:       size,
			ModifiedAt: info.ModTime(),
			ArchivedAt: now,
		})
	}

	if err := a.database.ReplaceArtifacts(identity, name, artifacts, contents); err != nil {
		return 0, fmt.Errorf("recording archive in database: %w", err)
	}

	a.logger.Info("document archived", "identity", identity, "document", name, "artifacts", len(artifacts), "uploaded", len(contents))
	return len(artifacts), nil
}

// upload stores one artifact in the vault, encrypting it first when an
// encryptor is configured.
func (a *Archiver) upload(path, checksum string, size int64) (*model.Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	content := &model.Content{ID: checksum, Size: size}
	if a.encryptor == nil {
		if err := a.vault.PutBlob(checksum, f, size); err != nil {
			return nil, err
		}
		return content, nil
	}

	tmp, err := os.CreateTemp("", "docstore-enc-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := a.encryptor.Encrypt(f, tmp); err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	encSize, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if err := a.vault.PutBlob(checksum+encryptedBlobSuffix, tmp, encSize); err != nil {
		return nil, err
	}
	content.Encrypted = true
	return content, nil
}

// NeedsDecryption reports whether restoring a document requires a decryption context.
func (a *Archiver) NeedsDecryption(identity, fileName string) (bool, error) {
	name, err := a.service.layout.FileName(fileName)
	if err != nil {
		return false, err
	}
	_, contents, err := a.catalogEntries(identity, name)
	if err != nil {
		return false, err
	}
	for _, c := range contents {
		if c.Encrypted {
			return true, nil
		}
	}
	return false, nil
}

// Restore puts a document back into the state it was archived in and
// restores modification times. The archived tree is rebuilt in a staging
// directory first, each artifact verified against its checksum; only then
// does it replace the live document and the whole history directory, so
// versions saved after the archive do not survive. decryptCtx is required
// when any artifact is encrypted. Returns the paths written.
func (a *Archiver) Restore(identity, fileName string, decryptCtx DecryptionContext) ([]string, error) {
	layout := a.service.layout
	name, err := layout.FileName(fileName)
	if err != nil {
		return nil, err
	}
	unlock := a.service.lockDocument(identity, name)
	defer unlock()

	artifacts, contents, err := a.catalogEntries(identity, name)
	if err != nil {
		return nil, err
	}
	for _, c := range contents {
		if c.Encrypted && decryptCtx == nil {
			return nil, fmt.Errorf("%w: %s", ErrDecryptionRequired, name)
		}
	}
	rels := make([]string, len(artifacts))
	for i, artifact := range artifacts {
		if rels[i], err = artifactPath(name, artifact.RelPath); err != nil {
			return nil, err
		}
	}

	if _, err := layout.StoragePath(name, identity); err != nil {
		return nil, err
	}
	userDir, err := layout.UserDir(identity)
	if err != nil {
		return nil, err
	}
	stage, err := os.MkdirTemp(userDir, ".restore-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	a.logger.Info("restore started", "identity", identity, "document", name)
	for i, artifact := range artifacts {
		staged := filepath.Join(stage, rels[i])
		if err := a.restoreArtifact(staged, contents[artifact.ContentID], decryptCtx); err != nil {
			return nil, fmt.Errorf("restoring %s: %w", artifact.RelPath, err)
		}
		if err := os.Chtimes(staged, artifact.ModifiedAt, artifact.ModifiedAt); err != nil {
			return nil, fmt.Errorf("setting file times: %w", err)
		}
	}

	historyName := name + historySuffix
	if err := os.RemoveAll(filepath.Join(userDir, historyName)); err != nil {
		return nil, fmt.Errorf("clearing history: %w", err)
	}
	for _, entry := range []string{historyName, name} {
		err := os.Rename(filepath.Join(stage, entry), filepath.Join(userDir, entry))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("moving restored %s into place: %w", entry, err)
		}
	}

	restored := make([]string, len(rels))
	for i, rel := range rels {
		restored[i] = filepath.Join(userDir, rel)
	}
	a.logger.Info("document restored", "identity", identity, "document", name, "artifacts", len(restored))
	return restored, nil
}

// catalogEntries loads a document's artifacts and their content records.
func (a *Archiver) catalogEntries(identity, name string) ([]*model.Artifact, map[string]*model.Content, error) {
	artifacts, err := a.database.FindArtifacts(identity, name)
	if err != nil {
		return nil, nil, fmt.Errorf("finding artifacts: %w", err)
	}
	if len(artifacts) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoArchive, name)
	}
	contents := make(map[string]*model.Content)
	for _, artifact := range artifacts {
		if _, ok := contents[artifact.ContentID]; ok {
			continue
		}
		content, err := a.database.FindContentByChecksum(artifact.ContentID)
		if err != nil {
			return nil, nil, fmt.Errorf("finding content record: %w", err)
		}
		if content == nil {
			return nil, nil, fmt.Errorf("content not found for checksum: %s", artifact.ContentID)
		}
		contents[artifact.ContentID] = content
	}
	return artifacts, contents, nil
}

// restoreArtifact fetches one blob into a temp file next to dest, verifies it
// and renames it into place.
func (a *Archiver) restoreArtifact(dest string, content *model.Content, decryptCtx DecryptionContext) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	w := io.MultiWriter(tmp, hasher)
	if content.Encrypted {
		// Pipe vault output straight into the decryptor.
		pr, pw := io.Pipe()
		vaultErrCh := make(chan error, 1)
		go func() {
			err := a.vault.GetBlob(content.ID+encryptedBlobSuffix, pw)
			pw.CloseWithError(err)
			vaultErrCh <- err
		}()

		decryptErr := decryptCtx.Decrypt(pr, w)
		pr.CloseWithError(decryptErr)
		vaultErr := <-vaultErrCh
		if decryptErr != nil {
			tmp.Close()
			return fmt.Errorf("decrypting content: %w", decryptErr)
		}
		if vaultErr != nil {
			tmp.Close()
			return fmt.Errorf("retrieving content from vault: %w", vaultErr)
		}
	} else if err := a.vault.GetBlob(content.ID, w); err != nil {
		tmp.Close()
		return fmt.Errorf("retrieving content from vault: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if got := hex.EncodeToString(hasher.Sum(nil)); got != content.ID {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, content.ID, got)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

// artifactPath cleans a catalogued path relative to the namespace. Only the
// live document and paths inside its history directory are accepted.
func artifactPath(name, relPath string) (string, error) {
	rel := filepath.FromSlash(relPath)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArtifactPath, relPath)
	}
	rel = filepath.Clean(rel)
	historyPrefix := name + historySuffix + string(filepath.Separator)
	if rel != name && !strings.HasPrefix(rel, historyPrefix) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArtifactPath, relPath)
	}
	return rel, nil
}

// hashFile returns the hex SHA-256 and size of a file.
func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
