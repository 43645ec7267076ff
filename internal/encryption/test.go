package encryption

import (
	"fmt"
	"io"
	"slices"

	"epu-go/internal/epu"
)

// testHeader is prepended to data by TestEncryptor to make encrypted
// output clearly different from plaintext while remaining deterministic
// and reversible.
var testHeader = []byte("EPUENC\x00\x00")

// TestEncryptor is a simple, deterministic encryptor for testing the
// backup pipeline without key material. It prepends a fixed 8-byte
// header, so output differs from plaintext but is trivially reversible.
type TestEncryptor struct{}

var _ epu.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Suffix() string { return ".enc" }

// Header returns the byte sequence Encrypt prepends, for tests that
// verify stored output.
func (e *TestEncryptor) Header() []byte {
	return slices.Clone(testHeader)
}
