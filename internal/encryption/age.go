// Package encryption provides the Encryptor implementations used to
// protect backup archives before they are stored in a vault.
package encryption

import (
	"fmt"
	"io"
	"strings"

	"filippo.io/age"

	"epu-go/internal/epu"
)

// AgeEncryptor implements epu.Encryptor using filippo.io/age. It holds
// only recipients (public keys); decryption is done by the user with
// their own age identity, so no private key material ever passes
// through this program.
type AgeEncryptor struct {
	recipients []age.Recipient
}

var _ epu.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor parses one or more age recipients, one per line, and
// returns an encryptor that encrypts to all of them.
func NewAgeEncryptor(recipients string) (*AgeEncryptor, error) {
	parsed, err := age.ParseRecipients(strings.NewReader(recipients))
	if err != nil {
		return nil, fmt.Errorf("parsing age recipients: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("no age recipients found")
	}
	return &AgeEncryptor{recipients: parsed}, nil
}

// Encrypt reads plaintext from r and writes age-encrypted ciphertext
// to w.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	encWriter, err := age.Encrypt(w, e.recipients...)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}

	return nil
}

func (e *AgeEncryptor) Suffix() string { return ".age" }
