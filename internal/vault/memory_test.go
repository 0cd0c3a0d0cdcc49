package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestMemoryVault_PutAndGetBlob(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		key     string
		content string
	}{
		{name: "store and retrieve blob", key: "abc123", content: "hello world"},
		{name: "store empty blob", key: "empty", content: ""},
		{name: "store large blob", key: "large", content: strings.Repeat("x", 10000)},
		{name: "store encrypted blob", key: "abc123.age", content: "ciphertext"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := vault.PutBlob(tt.key, strings.NewReader(tt.content), int64(len(tt.content))); err != nil {
				t.Fatalf("PutBlob() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetBlob(tt.key, &buf); err != nil {
				t.Fatalf("GetBlob() error = %v", err)
			}
			if got := buf.String(); got != tt.content {
				t.Errorf("GetBlob() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_PutBlobIdempotent(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	for i := 0; i < 3; i++ {
		if err := vault.PutBlob("same", strings.NewReader("data"), 4); err != nil {
			t.Fatalf("PutBlob() #%d error = %v", i, err)
		}
	}
	if vault.BlobCount() != 1 {
		t.Errorf("BlobCount() = %d, want 1", vault.BlobCount())
	}
	if !vault.HasBlob("same") {
		t.Error("HasBlob() = false, want true")
	}
}

func TestMemoryVault_GetBlobNotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	err := vault.GetBlob("missing", &buf)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBlob() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryVault_PutBlobSizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	if err := vault.PutBlob("k", strings.NewReader("hello"), 10); err == nil {
		t.Error("PutBlob() expected size mismatch error")
	}
	if vault.HasBlob("k") {
		t.Error("blob stored despite size mismatch")
	}
}

func TestMemoryVault_Catalog(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	version, err := vault.CatalogVersion("instance-1")
	if err != nil {
		t.Fatalf("CatalogVersion() error = %v", err)
	}
	if version != 0 {
		t.Errorf("CatalogVersion() = %d, want 0 before any upload", version)
	}

	var buf bytes.Buffer
	if err := vault.GetCatalog("instance-1", &buf); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCatalog() error = %v, want ErrNotFound", err)
	}

	if err := vault.PutCatalog("instance-1", strings.NewReader("db-v1"), 5, 3); err != nil {
		t.Fatalf("PutCatalog() error = %v", err)
	}
	if err := vault.PutCatalog("instance-1", strings.NewReader("db-v2"), 5, 7); err != nil {
		t.Fatalf("PutCatalog() error = %v", err)
	}

	buf.Reset()
	if err := vault.GetCatalog("instance-1", &buf); err != nil {
		t.Fatalf("GetCatalog() error = %v", err)
	}
	if buf.String() != "db-v2" {
		t.Errorf("GetCatalog() = %q, want %q", buf.String(), "db-v2")
	}
	if version, _ := vault.CatalogVersion("instance-1"); version != 7 {
		t.Errorf("CatalogVersion() = %d, want 7", version)
	}
}

func TestMemoryVault_ValidateSetup(t *testing.T) {
	if err := NewMemoryVault("test").ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
