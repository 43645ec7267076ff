package epu

import "fmt"

// NotFoundError reports a required path that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// BackupError reports a failed pre-update backup. The install
// directory has not been modified when this error is returned.
type BackupError struct {
	InstallDir string
	Err        error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backing up %s: %v", e.InstallDir, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }
