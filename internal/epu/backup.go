package epu

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

// createBackup archives installDir and stores it in the vault,
// returning the stored name. The archive is built in a temp file and
// optionally encrypted before it is handed to the vault, so a failure
// at any step leaves both the vault and the install untouched.
//
// Names look like backup_<dir>_<8 hex of the install path>_<UTC stamp>.zip
// plus the encryptor suffix. The path digest keeps same-named installs
// from different episode directories apart; the timestamp keeps
// successive backups of the same install apart.
func (s *EPUService) createBackup(installDir string) (string, error) {
	name := fmt.Sprintf("backup_%s_%s_%s.zip",
		filepath.Base(installDir),
		digest.FromString(installDir).Encoded()[:8],
		s.clock.Now().UTC().Format("20060102T150405Z"))

	tmp, err := os.CreateTemp("", "epu-backup-*.zip")
	if err != nil {
		return "", fmt.Errorf("creating backup temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := s.writeBackupArchive(tmp, installDir); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing backup archive: %w", err)
	}

	uploadPath := tmpPath
	if suffix := s.encryptor.Suffix(); suffix != "" {
		name += suffix
		encPath, err := s.encryptBackup(tmpPath)
		if err != nil {
			return "", err
		}
		defer os.Remove(encPath)
		uploadPath = encPath
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return "", fmt.Errorf("opening backup for upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat backup: %w", err)
	}
	if err := s.vault.PutBackup(name, f, info.Size()); err != nil {
		return "", fmt.Errorf("storing backup: %w", err)
	}
	return name, nil
}

// writeBackupArchive zips every regular file under installDir into w,
// with slash-separated paths relative to installDir. A file that
// cannot be read is logged and skipped so one bad file does not block
// the update.
func (s *EPUService) writeBackupArchive(w io.Writer, installDir string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, 6)
	})

	err := filepath.WalkDir(installDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(installDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			s.logger.Warn("skipping unreadable file in backup", "path", rel, "error", err)
			return nil
		}
		defer f.Close()

		hdr := &zip.FileHeader{
			Name:     rel,
			Method:   zip.Deflate,
			Modified: info.ModTime(),
		}
		hdr.SetMode(info.Mode().Perm())
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("adding %s: %w", rel, err)
		}
		if _, err := io.Copy(entry, f); err != nil {
			return fmt.Errorf("archiving %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("building backup archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing backup archive: %w", err)
	}
	return nil
}

// encryptBackup encrypts the archive at zipPath into a fresh temp file
// and returns its path. The caller removes both files.
func (s *EPUService) encryptBackup(zipPath string) (string, error) {
	in, err := os.Open(zipPath)
	if err != nil {
		return "", fmt.Errorf("opening archive for encryption: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "epu-backup-enc-*")
	if err != nil {
		return "", fmt.Errorf("creating encrypted temp file: %w", err)
	}
	if err := s.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("encrypting backup: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("closing encrypted backup: %w", err)
	}
	return out.Name(), nil
}
