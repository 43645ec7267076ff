package model

import (
	"database/sql"
	"time"
)

// UpdateOperation records a single run of the updater.
// A row is inserted with status "running" when the update starts and
// finalized with "success" or "error" when it completes.
type UpdateOperation struct {
	ID            int64
	RunID         string // UUID
	Operation     string
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	Status        string // "running", "success" or "error"
	ArchiveName   string
	ArchiveDigest string // sha256:<hex> of the downloaded archive
	InstallName   string
	BackupName    string
	FilesChanged  int64
}

// UpdateDetails carries the outcome fields recorded when an operation finishes.
type UpdateDetails struct {
	ArchiveName   string
	ArchiveDigest string
	InstallName   string
	BackupName    string
	FilesChanged  int64
}

// ChangedPath records one file written or deleted during an update.
type ChangedPath struct {
	ID          int64
	OperationID int64
	Phase       string // "write" or "delete"
	Path        string // forward-slash relative path within the install
}
