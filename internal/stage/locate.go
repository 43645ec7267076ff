package stage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindEpisodeRoot returns the directory that directly contains a world
// marker file (by default a .wld file). The extraction root wins when it
// holds a marker at the top level; otherwise the shallowest directory in
// the tree with a marker is chosen, ties broken by relative path so the
// result is stable. A tree without any marker falls back to root itself.
func FindEpisodeRoot(root, markerExt string) (string, error) {
	ext := strings.ToLower(markerExt)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading stage root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() && hasMarkerExt(e.Name(), ext) {
			return root, nil
		}
	}

	type candidate struct {
		depth int
		rel   string
		dir   string
	}
	var best *candidate
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasMarkerExt(d.Name(), ext) {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return rerr
		}
		rel = filepath.ToSlash(rel)
		depth := strings.Count(rel, "/") + 1
		if best == nil || depth < best.depth || (depth == best.depth && rel < best.rel) {
			best = &candidate{depth: depth, rel: rel, dir: filepath.Dir(p)}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scanning for %s files: %w", ext, err)
	}

	if best != nil {
		return best.dir, nil
	}
	return root, nil
}

func hasMarkerExt(name, ext string) bool {
	return ext != "" && strings.EqualFold(filepath.Ext(name), ext)
}
