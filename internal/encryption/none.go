package encryption

import (
	"fmt"
	"io"

	"epu-go/internal/epu"
)

// NopEncryptor stores backups unencrypted.
type NopEncryptor struct{}

var _ epu.Encryptor = (*NopEncryptor)(nil)

func NewNopEncryptor() *NopEncryptor {
	return &NopEncryptor{}
}

func (e *NopEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *NopEncryptor) Suffix() string { return "" }
