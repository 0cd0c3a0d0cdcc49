package docs_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"docstore-go/internal/docs"
	"docstore-go/internal/filetype"
)

func newTestLayout(t *testing.T) *docs.Layout {
	t.Helper()
	layout, err := docs.NewLayout(t.TempDir(), filetype.NewClassifier())
	if err != nil {
		t.Fatalf("NewLayout() error = %v", err)
	}
	return layout
}

func TestNewLayout_RequiresRoot(t *testing.T) {
	t.Parallel()
	if _, err := docs.NewLayout("", filetype.NewClassifier()); err == nil {
		t.Error("NewLayout(\"\") should return error")
	}
}

func TestLayout_FileName(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "report.docx", want: "report.docx"},
		{name: "unix path stripped", input: "../../etc/report.docx", want: "report.docx"},
		{name: "windows path stripped", input: `C:\Users\me\report.docx`, want: "report.docx"},
		{name: "empty", input: "", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "trailing separator", input: "dir/", wantErr: true},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := layout.FileName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, docs.ErrInvalidFileName) {
					t.Fatalf("FileName(%q) error = %v, want ErrInvalidFileName", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FileName(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("FileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLayout_RejectsUnsanitizedIdentity(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)

	for _, identity := range []string{"", "..", "a/b", "::1"} {
		if _, err := layout.StoragePath("a.docx", identity); !errors.Is(err, docs.ErrInvalidIdentity) {
			t.Errorf("StoragePath(identity=%q) error = %v, want ErrInvalidIdentity", identity, err)
		}
	}
}

func TestLayout_StoragePath(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)

	path, err := layout.StoragePath("a.docx", "127.0.0.1")
	if err != nil {
		t.Fatalf("StoragePath() error = %v", err)
	}
	want := filepath.Join(layout.Root(), "127.0.0.1", "a.docx")
	if path != want {
		t.Errorf("StoragePath() = %q, want %q", path, want)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("namespace directory not created: %v", err)
	}

	// Idempotent.
	if _, err := layout.StoragePath("a.docx", "127.0.0.1"); err != nil {
		t.Errorf("second StoragePath() error = %v", err)
	}
}

func TestLayout_HistoryPath(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	const identity = "127.0.0.1"
	history := filepath.Join(layout.Root(), identity, "a.docx-history")

	t.Run("missing namespace", func(t *testing.T) {
		got, err := layout.HistoryPath("a.docx", identity, false)
		if err != nil || got != "" {
			t.Errorf("HistoryPath(false) = %q, %v; want empty", got, err)
		}
	})

	t.Run("create returns path without creating", func(t *testing.T) {
		got, err := layout.HistoryPath("a.docx", identity, true)
		if err != nil {
			t.Fatalf("HistoryPath(true) error = %v", err)
		}
		if got != history {
			t.Errorf("HistoryPath(true) = %q, want %q", got, history)
		}
		if _, err := os.Stat(history); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("HistoryPath(true) created %s", history)
		}
	})

	t.Run("history without versions", func(t *testing.T) {
		if _, err := layout.EnsureHistoryPath("a.docx", identity); err != nil {
			t.Fatalf("EnsureHistoryPath() error = %v", err)
		}
		got, err := layout.HistoryPath("a.docx", identity, false)
		if err != nil || got != "" {
			t.Errorf("HistoryPath(false) = %q, %v; want empty", got, err)
		}
	})

	t.Run("history with first version", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(history, "1"), 0755); err != nil {
			t.Fatal(err)
		}
		got, err := layout.HistoryPath("a.docx", identity, false)
		if err != nil {
			t.Fatalf("HistoryPath(false) error = %v", err)
		}
		if got != history {
			t.Errorf("HistoryPath(false) = %q, want %q", got, history)
		}
	})
}

func TestLayout_ForcesavePath(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	const identity = "127.0.0.1"

	for _, create := range []bool{false, true} {
		got, err := layout.ForcesavePath("a.docx", identity, create)
		if err != nil || got != "" {
			t.Errorf("ForcesavePath(%v) without namespace = %q, %v; want empty", create, got, err)
		}
	}

	if _, err := layout.StoragePath("a.docx", identity); err != nil {
		t.Fatal(err)
	}
	if got, _ := layout.ForcesavePath("a.docx", identity, false); got != "" {
		t.Errorf("ForcesavePath(false) without history = %q, want empty", got)
	}

	checkpoint, err := layout.ForcesavePath("a.docx", identity, true)
	if err != nil {
		t.Fatalf("ForcesavePath(true) error = %v", err)
	}
	want := filepath.Join(layout.Root(), identity, "a.docx-history", "a.docx")
	if checkpoint != want {
		t.Errorf("ForcesavePath(true) = %q, want %q", checkpoint, want)
	}
	if got, _ := layout.ForcesavePath("a.docx", identity, false); got != "" {
		t.Errorf("ForcesavePath(false) without checkpoint = %q, want empty", got)
	}

	if err := os.WriteFile(checkpoint, []byte("draft"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := layout.ForcesavePath("a.docx", identity, false)
	if err != nil || got != want {
		t.Errorf("ForcesavePath(false) = %q, %v; want %q", got, err, want)
	}
}

func TestLayout_VersionArtifacts(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	const identity = "127.0.0.1"
	versionDir := filepath.Join(layout.Root(), identity, "Deck.PPTX-history", "3")

	tests := []struct {
		name string
		fn   func(string, string, int) (string, error)
		want string
	}{
		{name: "prev", fn: layout.PrevFilePath, want: filepath.Join(versionDir, "prev.pptx")},
		{name: "diff", fn: layout.DiffPath, want: filepath.Join(versionDir, "diff.zip")},
		{name: "changes", fn: layout.ChangesPath, want: filepath.Join(versionDir, "changes.txt")},
		{name: "key", fn: layout.KeyPath, want: filepath.Join(versionDir, "key.txt")},
		{name: "user", fn: layout.ChangesUserPath, want: filepath.Join(versionDir, "user.txt")},
		{name: "version", fn: layout.VersionPath, want: versionDir},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.fn("Deck.PPTX", identity, 3)
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	dataPath, err := layout.FileDataPath("Deck.PPTX", identity)
	if err != nil {
		t.Fatalf("FileDataPath() error = %v", err)
	}
	if want := filepath.Join(layout.Root(), identity, "Deck.PPTX-history", "Deck.PPTX.txt"); dataPath != want {
		t.Errorf("FileDataPath() = %q, want %q", dataPath, want)
	}
}
