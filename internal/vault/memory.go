package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"epu-go/internal/epu"
)

// MemoryVault is an in-memory implementation of the Vault interface,
// useful for testing. It is safe for concurrent use.
type MemoryVault struct {
	backups map[string][]byte
	mu      sync.RWMutex
}

var _ epu.Vault = (*MemoryVault)(nil)

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		backups: make(map[string][]byte),
	}
}

// PutBackup stores size bytes from r under the given name.
func (m *MemoryVault) PutBackup(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.backups[name] = data
	return nil
}

// GetBackup retrieves a stored backup by name and writes it to w.
func (m *MemoryVault) GetBackup(name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.backups[name]
	if !ok {
		return fmt.Errorf("backup not found: %s", name)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// BackupNames returns the names of all stored backups.
func (m *MemoryVault) BackupNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.backups))
	for name := range m.backups {
		names = append(names, name)
	}
	return names
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}
