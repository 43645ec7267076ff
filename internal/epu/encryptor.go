package epu

import "io"

// Encryptor encrypts backup archives before they reach the vault.
type Encryptor interface {
	Encrypt(r io.Reader, w io.Writer) error
	// Suffix is appended to backup names produced by this encryptor,
	// e.g. ".age". An empty suffix means backups are stored as-is.
	Suffix() string
}
