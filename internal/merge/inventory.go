package merge

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
)

// Inventory maps forward-slash relative paths of regular files to the
// SHA-256 digest of their contents. Directories, symlinks and other
// special files are not inventoried.
type Inventory map[string]digest.Digest

// BuildInventory walks the tree rooted at root and hashes every regular file.
// File contents are hashed on a bounded worker pool; the resulting map is
// independent of walk and scheduling order.
func BuildInventory(root string) (Inventory, error) {
	var rels []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	digests := make([]digest.Digest, len(rels))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, rel := range rels {
		g.Go(func() error {
			d, err := digestFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("hashing %s: %w", rel, err)
			}
			digests[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	inv := make(Inventory, len(rels))
	for i, rel := range rels {
		inv[rel] = digests[i]
	}
	return inv, nil
}

func digestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}
