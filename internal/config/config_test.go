package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		InstanceID: "test-instance-abc",
		BaseDir:    "/home/user/.local/share/docstore",
		LogDir:     "/home/user/.local/share/docstore/log",
		Storage:    StorageConfig{Root: "/srv/docstore", Folder: "files"},
		Server: ServerConfig{
			ExampleURL: "https://docs.example.com",
			EditedDocs: []string{".docx", ".txt"},
		},
		Vaults: []VaultConfig{
			{Type: "filesystem", Name: "local", FSVaultRoot: "/backup/vault"},
			{Type: "s3", Name: "offsite", S3Bucket: "docs", S3Prefix: "archive", S3Region: "eu-west-1"},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/docstore/keys/docstore.pub",
			PrivateKeyPath: "/home/user/.local/share/docstore/keys/docstore.key",
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/docstore/db"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.InstanceID != original.InstanceID {
		t.Errorf("InstanceID = %q, want %q", got.InstanceID, original.InstanceID)
	}
	if got.Storage != original.Storage {
		t.Errorf("Storage = %+v, want %+v", got.Storage, original.Storage)
	}
	if got.Server.ExampleURL != original.Server.ExampleURL {
		t.Errorf("Server.ExampleURL = %q, want %q", got.Server.ExampleURL, original.Server.ExampleURL)
	}
	if strings.Join(got.Server.EditedDocs, ",") != ".docx,.txt" {
		t.Errorf("Server.EditedDocs = %v, want [.docx .txt]", got.Server.EditedDocs)
	}
	if len(got.Vaults) != 2 {
		t.Fatalf("len(Vaults) = %d, want 2", len(got.Vaults))
	}
	if got.Vaults[0].FSVaultRoot != "/backup/vault" {
		t.Errorf("Vault.FSVaultRoot = %q, want %q", got.Vaults[0].FSVaultRoot, "/backup/vault")
	}
	if got.Vaults[1] != original.Vaults[1] {
		t.Errorf("Vaults[1] = %+v, want %+v", got.Vaults[1], original.Vaults[1])
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("instance-1", "/data/docstore")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"InstanceID", cfg.InstanceID, "instance-1"},
		{"BaseDir", cfg.BaseDir, "/data/docstore"},
		{"LogDir", cfg.LogDir, "/data/docstore/log"},
		{"Storage.Root", cfg.Storage.Root, "/data/docstore/storage"},
		{"Storage.Folder", cfg.Storage.Folder, "files"},
		{"Encryption.Type", cfg.Encryption.Type, "none"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/docstore/keys/docstore.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/docstore/keys/docstore.key"},
		{"Database.Type", cfg.Database.Type, "sqlite"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/docstore/db"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if len(cfg.Vaults) != 1 || cfg.Vaults[0].FSVaultRoot != "/data/docstore/vault" {
		t.Errorf("Vaults = %+v, want one filesystem vault under base dir", cfg.Vaults)
	}
	if len(cfg.Server.EditedDocs) != 5 {
		t.Errorf("len(Server.EditedDocs) = %d, want 5", len(cfg.Server.EditedDocs))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"missing instance id", func(c *Config) { c.InstanceID = "" }, true},
		{"missing storage root", func(c *Config) { c.Storage.Root = "" }, true},
		{"unnamed vault", func(c *Config) { c.Vaults = []VaultConfig{{Type: "memory"}} }, true},
		{"named vault", func(c *Config) { c.Vaults = []VaultConfig{{Type: "memory", Name: "m"}} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("i1", "/data")
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docstore.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docstore.toml")
		cfg := NewConfig("i1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "docstore.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.InstanceID != "read-test" {
			t.Errorf("InstanceID = %q, want %q", got.InstanceID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/docstore.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
