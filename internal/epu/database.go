package epu

import (
	"time"

	"epu-go/internal/model"
)

// Update operation status values as stored in the database.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Database records update operation history.
type Database interface {
	CreateUpdateOperation(runID, operation string, startedAt time.Time) (*model.UpdateOperation, error)
	FinishUpdateOperation(id int64, status string, finishedAt time.Time, details model.UpdateDetails) error
	RecordChangedPaths(operationID int64, phase string, paths []string) error
	ChangedPaths(operationID int64) ([]*model.ChangedPath, error)
	ListUpdateOperations(limit int) ([]*model.UpdateOperation, error)
	LastUpdateOperation() (*model.UpdateOperation, error)
	Migrate() error
	Close() error
}
