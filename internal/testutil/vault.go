package testutil

import (
	"epu-go/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing. The concrete
// type is returned so tests can inspect stored backups.
func NewTestVault() *vault.MemoryVault {
	return vault.NewMemoryVault()
}
