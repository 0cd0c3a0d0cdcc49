package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"docstore-go/internal/docs"
	"docstore-go/internal/filetype"
	"docstore-go/internal/revision"
)

// TestServerURL is the caller server URL used by NewTestCaller.
const TestServerURL = "http://docs.test"

// NewTestService creates a Service over a fresh storage root in t.TempDir().
// Office documents are editable; the storage folder is "files".
func NewTestService(t *testing.T) *docs.Service {
	t.Helper()
	return NewTestServiceWithOptions(t, docs.ServiceOptions{
		StorageFolder:    "files",
		EditedExtensions: filetype.DefaultEditedExtensions,
	})
}

// NewTestServiceWithOptions is NewTestService with explicit options.
func NewTestServiceWithOptions(t *testing.T, opts docs.ServiceOptions) *docs.Service {
	t.Helper()
	types := filetype.NewClassifier()
	layout, err := docs.NewLayout(t.TempDir(), types)
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	return docs.NewService(layout, types, revision.NewGenerator(), opts, docs.NewNopLogger())
}

// NewTestCaller returns a Caller for identity reaching TestServerURL.
func NewTestCaller(identity string) docs.Caller {
	return docs.Caller{Identity: identity, ServerURL: TestServerURL}
}

// WriteLiveFile writes content as the live document and returns its path.
func WriteLiveFile(t *testing.T, svc *docs.Service, identity, fileName, content string) string {
	t.Helper()
	path, err := svc.Layout().StoragePath(fileName, identity)
	if err != nil {
		t.Fatalf("StoragePath() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing live file: %v", err)
	}
	return path
}

// MakeVersionDirs creates the given version directories under the document history.
func MakeVersionDirs(t *testing.T, svc *docs.Service, identity, fileName string, versions ...int) string {
	t.Helper()
	history, err := svc.Layout().EnsureHistoryPath(fileName, identity)
	if err != nil {
		t.Fatalf("EnsureHistoryPath() error = %v", err)
	}
	for _, v := range versions {
		if err := os.MkdirAll(filepath.Join(history, strconv.Itoa(v)), 0755); err != nil {
			t.Fatalf("creating version %d: %v", v, err)
		}
	}
	return history
}

// WriteVersionFile writes one artifact file inside a version directory.
func WriteVersionFile(t *testing.T, svc *docs.Service, identity, fileName string, version int, artifact, content string) {
	t.Helper()
	dir, err := svc.Layout().VersionPath(fileName, identity, version)
	if err != nil {
		t.Fatalf("VersionPath() error = %v", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating version dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, artifact), []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", artifact, err)
	}
}

// SetModTime sets both access and modification time of path.
func SetModTime(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
}

// ReadFile returns the content of path as a string.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}
