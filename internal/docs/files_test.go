package docs_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docstore-go/internal/docs"
	"docstore-go/internal/testutil"
)

func TestService_CreateDocument(t *testing.T) {
	t.Parallel()
	const identity = "127.0.0.1"
	svc := testutil.NewTestService(t)

	name, err := svc.CreateDocument(identity, "uploads/report.docx", strings.NewReader("first"), "u1", "Ann")
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if name != "report.docx" {
		t.Errorf("CreateDocument() = %q, want report.docx", name)
	}

	second, err := svc.CreateDocument(identity, "report.docx", strings.NewReader("second"), "u2", "Bob")
	if err != nil {
		t.Fatalf("second CreateDocument() error = %v", err)
	}
	if second != "report (1).docx" {
		t.Errorf("second CreateDocument() = %q, want report (1).docx", second)
	}

	path, err := svc.Layout().StoragePath("report.docx", identity)
	if err != nil {
		t.Fatal(err)
	}
	if got := testutil.ReadFile(t, path); got != "first" {
		t.Errorf("original content = %q, want first", got)
	}

	data, err := svc.FileData(identity, second)
	if err != nil {
		t.Fatal(err)
	}
	if data.UserID != "u2" || data.UserName != "Bob" {
		t.Errorf("FileData() = %+v, want u2/Bob", data)
	}
}

func TestService_CreateDocument_ExtensionCase(t *testing.T) {
	t.Parallel()
	const identity = "127.0.0.1"
	svc := testutil.NewTestService(t)

	first, err := svc.CreateDocument(identity, "Report.DOCX", strings.NewReader("first"), "u1", "Ann")
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	if first != "Report.DOCX" {
		t.Errorf("CreateDocument() = %q, want Report.DOCX", first)
	}

	second, err := svc.CreateDocument(identity, "Report.DOCX", strings.NewReader("second"), "u2", "Bob")
	if err != nil {
		t.Fatalf("second CreateDocument() error = %v", err)
	}
	if second != "Report (1).DOCX" {
		t.Errorf("second CreateDocument() = %q, want Report (1).DOCX", second)
	}
}

func TestService_StoredFiles(t *testing.T) {
	t.Parallel()
	const identity = "127.0.0.1"

	t.Run("empty namespace", func(t *testing.T) {
		t.Parallel()
		svc := testutil.NewTestService(t)
		files, err := svc.StoredFiles(identity)
		if err != nil {
			t.Fatalf("StoredFiles() error = %v", err)
		}
		if len(files) != 0 {
			t.Errorf("StoredFiles() = %v, want empty", files)
		}
	})

	t.Run("lists live documents newest first", func(t *testing.T) {
		t.Parallel()
		svc := testutil.NewTestService(t)
		base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

		testutil.SetModTime(t, testutil.WriteLiveFile(t, svc, identity, "old.docx", "a"), base)
		testutil.SetModTime(t, testutil.WriteLiveFile(t, svc, identity, "sheet.xlsx", "b"), base.Add(2*time.Hour))
		testutil.SetModTime(t, testutil.WriteLiveFile(t, svc, identity, "blob.bin", "c"), base.Add(time.Hour))
		testutil.MakeVersionDirs(t, svc, identity, "old.docx", 1, 2)

		userDir, err := svc.Layout().UserDir(identity)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(userDir, ".tmp-123"), []byte("partial"), 0644); err != nil {
			t.Fatal(err)
		}

		files, err := svc.StoredFiles(identity)
		if err != nil {
			t.Fatalf("StoredFiles() error = %v", err)
		}

		want := []struct {
			name    string
			docType docs.DocumentType
			canEdit bool
			version int
		}{
			{"sheet.xlsx", docs.DocumentSpreadsheet, true, 1},
			{"blob.bin", docs.DocumentOther, false, 1},
			{"old.docx", docs.DocumentText, true, 3},
		}
		if len(files) != len(want) {
			t.Fatalf("StoredFiles() returned %d files, want %d: %+v", len(files), len(want), files)
		}
		for i, w := range want {
			f := files[i]
			if f.Name != w.name || f.DocumentType != w.docType || f.CanEdit != w.canEdit || f.Version != w.version {
				t.Errorf("files[%d] = %+v, want %+v", i, f, w)
			}
		}
	})
}

func TestService_DeleteDocument(t *testing.T) {
	t.Parallel()
	const identity = "127.0.0.1"
	svc := testutil.NewTestService(t)

	live := testutil.WriteLiveFile(t, svc, identity, "a.docx", "v1")
	history := testutil.MakeVersionDirs(t, svc, identity, "a.docx", 1, 2)
	testutil.WriteVersionFile(t, svc, identity, "a.docx", 2, "key.txt", "k")

	if err := svc.DeleteDocument(identity, "a.docx"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	for _, p := range []string{live, history} {
		if _, err := os.Stat(p); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s still exists", p)
		}
	}

	if err := svc.DeleteDocument(identity, "a.docx"); err != nil {
		t.Errorf("DeleteDocument() of missing document error = %v", err)
	}
}

func TestService_DeleteHistory(t *testing.T) {
	t.Parallel()
	const identity = "127.0.0.1"
	svc := testutil.NewTestService(t)

	live := testutil.WriteLiveFile(t, svc, identity, "a.docx", "v1")
	history := testutil.MakeVersionDirs(t, svc, identity, "a.docx", 1)

	if err := svc.DeleteHistory(identity, "a.docx"); err != nil {
		t.Fatalf("DeleteHistory() error = %v", err)
	}
	if _, err := os.Stat(history); !errors.Is(err, fs.ErrNotExist) {
		t.Error("history still exists")
	}
	if got := testutil.ReadFile(t, live); got != "v1" {
		t.Errorf("live content = %q, want v1", got)
	}
	current, err := svc.CurrentVersion(identity, "a.docx")
	if err != nil || current != 1 {
		t.Errorf("CurrentVersion() = %d, %v; want 1", current, err)
	}
}

func TestCleanFolderRecursive(t *testing.T) {
	t.Parallel()

	build := func(t *testing.T) string {
		t.Helper()
		root := filepath.Join(t.TempDir(), "root")
		for _, dir := range []string{"a/b/c", "d"} {
			if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
				t.Fatal(err)
			}
		}
		for _, f := range []string{"x.txt", "a/y.txt", "a/b/c/z.txt"} {
			if err := os.WriteFile(filepath.Join(root, f), []byte(f), 0644); err != nil {
				t.Fatal(err)
			}
		}
		return root
	}

	t.Run("keep folder", func(t *testing.T) {
		t.Parallel()
		root := build(t)
		if err := docs.CleanFolderRecursive(root, false); err != nil {
			t.Fatalf("CleanFolderRecursive() error = %v", err)
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatalf("folder removed: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("folder has %d entries, want 0", len(entries))
		}
	})

	t.Run("remove folder", func(t *testing.T) {
		t.Parallel()
		root := build(t)
		if err := docs.CleanFolderRecursive(root, true); err != nil {
			t.Fatalf("CleanFolderRecursive() error = %v", err)
		}
		if _, err := os.Stat(root); !errors.Is(err, fs.ErrNotExist) {
			t.Error("folder still exists")
		}
	})

	t.Run("symlink not followed", func(t *testing.T) {
		t.Parallel()
		root := build(t)
		outside := filepath.Join(t.TempDir(), "outside")
		if err := os.MkdirAll(outside, 0755); err != nil {
			t.Fatal(err)
		}
		keep := filepath.Join(outside, "keep.txt")
		if err := os.WriteFile(keep, []byte("keep"), 0644); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}

		if err := docs.CleanFolderRecursive(root, true); err != nil {
			t.Fatalf("CleanFolderRecursive() error = %v", err)
		}
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("file behind symlink removed: %v", err)
		}
	})

	t.Run("missing folder", func(t *testing.T) {
		t.Parallel()
		if err := docs.CleanFolderRecursive(filepath.Join(t.TempDir(), "missing"), true); err != nil {
			t.Errorf("CleanFolderRecursive(missing) error = %v", err)
		}
	})
}
