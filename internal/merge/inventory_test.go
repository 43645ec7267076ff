package merge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
)

// writeTree creates files under root from forward-slash relative paths.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("creating %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}
}

// readTree returns relative path -> content for all regular files under root.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
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
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("reading tree %s: %v", root, err)
	}
	return out
}

func TestBuildInventory(t *testing.T) {
	t.Run("hashes all regular files with relative slash paths", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"world.wld":        "world data",
			"levels/l1.lvl":    "level one",
			"music/custom.ogg": "oggbytes",
		})

		inv, err := BuildInventory(root)
		if err != nil {
			t.Fatalf("BuildInventory() error = %v", err)
		}

		if len(inv) != 3 {
			t.Fatalf("len(inv) = %d, want 3", len(inv))
		}
		want := digest.FromString("level one")
		if inv["levels/l1.lvl"] != want {
			t.Errorf("inv[levels/l1.lvl] = %s, want %s", inv["levels/l1.lvl"], want)
		}
		if _, ok := inv[filepath.Join("levels", "l1.lvl")]; filepath.Separator != '/' && ok {
			t.Error("inventory keys must use forward slashes")
		}
	})

	t.Run("identical content yields identical digests", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"a.txt":     "same",
			"sub/b.txt": "same",
		})

		inv, err := BuildInventory(root)
		if err != nil {
			t.Fatalf("BuildInventory() error = %v", err)
		}
		if inv["a.txt"] != inv["sub/b.txt"] {
			t.Errorf("digests differ: %s vs %s", inv["a.txt"], inv["sub/b.txt"])
		}
	})

	t.Run("empty tree yields empty inventory", func(t *testing.T) {
		t.Parallel()
		inv, err := BuildInventory(t.TempDir())
		if err != nil {
			t.Fatalf("BuildInventory() error = %v", err)
		}
		if len(inv) != 0 {
			t.Errorf("len(inv) = %d, want 0", len(inv))
		}
	})

	t.Run("skips directories and symlinks", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeTree(t, root, map[string]string{"real.txt": "data"})
		if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}

		inv, err := BuildInventory(root)
		if err != nil {
			t.Fatalf("BuildInventory() error = %v", err)
		}
		if len(inv) != 1 {
			t.Fatalf("len(inv) = %d, want 1", len(inv))
		}
		if _, ok := inv["link.txt"]; ok {
			t.Error("symlink should not be inventoried")
		}
	})

	t.Run("missing root fails", func(t *testing.T) {
		t.Parallel()
		if _, err := BuildInventory(filepath.Join(t.TempDir(), "nope")); err == nil {
			t.Error("BuildInventory() expected error for missing root")
		}
	})
}
