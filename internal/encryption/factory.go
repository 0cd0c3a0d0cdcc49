package encryption

import (
	"fmt"

	"docstore-go/internal/config"
	"docstore-go/internal/docs"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// "none" (or an empty type) returns a nil Encryptor: archives are stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (docs.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
