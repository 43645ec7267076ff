// Package stage unpacks episode archives into a content-addressed cache
// and locates the episode's content root inside the extracted tree.
package stage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"
)

// Tree describes an extracted archive in the stage cache.
type Tree struct {
	Root    string        // effective content root, after wrapper collapse
	Dir     string        // cache directory the archive was extracted into
	Digest  digest.Digest // digest of the archive bytes; the cache key
	Wrapper string        // name of the collapsed top-level directory, "" if none
	Cached  bool          // true when the extraction was skipped because the cache entry existed
}

// TraversalError indicates an archive entry whose name would escape the
// extraction root. The whole extraction is aborted; nothing from the
// offending entry reaches disk.
type TraversalError struct {
	Entry string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("archive entry escapes extraction root: %s", e.Entry)
}

// Extract unpacks the zip at archivePath into <cacheRoot>/stage/<digest>.
// The digest of the archive bytes keys the cache: if the directory already
// exists the archive is not read again and the existing tree is reused.
// When the archive holds exactly one top-level directory, that directory
// becomes the tree's root and its name is reported as the wrapper.
func Extract(archivePath, cacheRoot string) (*Tree, error) {
	d, err := digestArchive(archivePath)
	if err != nil {
		return nil, fmt.Errorf("hashing archive: %w", err)
	}

	dir := filepath.Join(cacheRoot, "stage", d.Encoded())
	if _, err := os.Stat(dir); err == nil {
		root, wrapper := collapseRoot(dir)
		return &Tree{Root: root, Dir: dir, Digest: d, Wrapper: wrapper, Cached: true}, nil
	}

	if err := extractZip(archivePath, dir); err != nil {
		// Drop the partial tree so a later run does not reuse it.
		os.RemoveAll(dir)
		return nil, err
	}

	root, wrapper := collapseRoot(dir)
	return &Tree{Root: root, Dir: dir, Digest: d, Wrapper: wrapper}, nil
}

func digestArchive(archivePath string) (digest.Digest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}

func extractZip(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("creating stage directory: %w", err)
	}

	for _, f := range zr.File {
		target, err := secureJoin(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", f.Name, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}

	return nil
}

// secureJoin resolves an archive entry name against the extraction root.
// Entry names that are absolute or climb out of the root are rejected
// before any bytes are written.
func secureJoin(root, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if cleaned == "." {
		return root, nil
	}
	if filepath.IsAbs(cleaned) || !filepath.IsLocal(cleaned) {
		return "", &TraversalError{Entry: name}
	}

	target := filepath.Join(root, cleaned)
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", &TraversalError{Entry: name}
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// collapseRoot returns the effective root of an extracted tree. An archive
// that wraps its whole payload in a single directory is unwrapped one level.
func collapseRoot(dir string) (root string, wrapper string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir, ""
	}
	child := entries[0]
	return filepath.Join(dir, child.Name()), child.Name()
}
