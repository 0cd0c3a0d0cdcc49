package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	envConfigPath = "DOCSTORE_CONFIG_PATH"
	envHome       = "DOCSTORE_HOME"
)

// Defaults are the locations used when no config says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - DOCSTORE_CONFIG_PATH: config file location (default: ~/.config/docstore.toml)
//   - DOCSTORE_HOME: base directory for docstore data (default: ~/.local/share/docstore)
func GetDefaults() (Defaults, error) {
	configPath, err := fromEnvOrHome(envConfigPath, ".config", "docstore.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := fromEnvOrHome(envHome, ".local", "share", "docstore")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

// fromEnvOrHome returns the value of env when set, otherwise elems joined
// below the user's home directory.
func fromEnvOrHome(env string, elems ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elems...)...), nil
}
