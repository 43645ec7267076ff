package testutil

import (
	"epu-go/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing. The
// concrete type is returned so tests can check for its header.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
