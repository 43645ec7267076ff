package epu

import (
	"fmt"

	"epu-go/internal/model"
)

// History returns the most recent update operations, newest first.
func (s *EPUService) History(limit int) ([]*model.UpdateOperation, error) {
	ops, err := s.database.ListUpdateOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing update operations: %w", err)
	}
	return ops, nil
}

// LastUpdate returns the most recent update operation, or nil when no
// update has been recorded yet.
func (s *EPUService) LastUpdate() (*model.UpdateOperation, error) {
	op, err := s.database.LastUpdateOperation()
	if err != nil {
		return nil, fmt.Errorf("loading last update operation: %w", err)
	}
	return op, nil
}
