package epu

import "io"

// Vault stores backup archives taken before an install is modified.
type Vault interface {
	// PutBackup stores size bytes from r under the given backup name.
	PutBackup(name string, r io.Reader, size int64) error
	// ValidateSetup verifies the vault is usable before any data is
	// written. It is called at the start of every update so a broken
	// vault aborts the run before the install is touched.
	ValidateSetup() error
}
