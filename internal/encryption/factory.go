package encryption

import (
	"epu-go/internal/config"
	"epu-go/internal/epu"
)

// NewEncryptorFromConfig creates an Encryptor from the backup
// configuration. An empty recipient disables encryption; the literal
// "test" selects the deterministic test encryptor; anything else is
// parsed as age recipients.
func NewEncryptorFromConfig(cfg config.BackupConfig) (epu.Encryptor, error) {
	switch cfg.EncryptRecipient {
	case "":
		return NewNopEncryptor(), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return NewAgeEncryptor(cfg.EncryptRecipient)
	}
}
