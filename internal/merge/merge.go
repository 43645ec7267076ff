package merge

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"
)

// Phase identifies the kind of merge operation being performed on a path.
type Phase string

const (
	PhaseWrite  Phase = "write"
	PhaseDelete Phase = "delete"
)

// OpError records a single merge operation that failed. Operation failures
// do not abort the merge; they are collected on the Result and the affected
// path is excluded from the change set.
type OpError struct {
	Phase Phase
	Path  string
	Err   error
}

func (e *OpError) Error() string { return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err) }
func (e *OpError) Unwrap() error { return e.Err }

// Plan is the fixed set of operations needed to make installRoot match
// stageRoot, computed from both inventories before anything is touched.
// Writes come first, then deletes, each sorted by path, so the operation
// order and total are deterministic for a given pair of trees.
type Plan struct {
	stageRoot   string
	installRoot string
	preserve    *PreserveMatcher
	writes      []string
	deletes     []string
	applied     bool
	result      *Result
}

// Result is the outcome of applying a Plan. Written and Deleted hold the
// relative paths that were actually changed; Failed holds the operations
// that could not be completed.
type Result struct {
	Written []string
	Deleted []string
	Failed  []*OpError
}

// NewPlan inventories both trees and computes the operations to perform.
// A stage file is written when it is absent from the install or its digest
// differs; an install file is deleted when it is absent from the stage.
// Paths matched by preserve are excluded in both directions.
func NewPlan(stageRoot, installRoot string, preserve *PreserveMatcher) (*Plan, error) {
	stageInv, err := BuildInventory(stageRoot)
	if err != nil {
		return nil, fmt.Errorf("inventorying stage: %w", err)
	}
	installInv, err := BuildInventory(installRoot)
	if err != nil {
		return nil, fmt.Errorf("inventorying install: %w", err)
	}

	p := &Plan{
		stageRoot:   stageRoot,
		installRoot: installRoot,
		preserve:    preserve,
	}

	for rel, d := range stageInv {
		if preserve.Match(rel) {
			continue
		}
		if cur, ok := installInv[rel]; !ok || cur != d {
			p.writes = append(p.writes, rel)
		}
	}
	for rel := range installInv {
		if preserve.Match(rel) {
			continue
		}
		if _, ok := stageInv[rel]; !ok {
			p.deletes = append(p.deletes, rel)
		}
	}
	sort.Strings(p.writes)
	sort.Strings(p.deletes)

	return p, nil
}

// Total returns the number of operations in the plan. It is fixed at plan
// time and is the denominator reported in progress events.
func (p *Plan) Total() int { return len(p.writes) + len(p.deletes) }

// Writes returns the relative paths that will be copied from the stage.
func (p *Plan) Writes() []string { return slices.Clone(p.writes) }

// Deletes returns the relative paths that will be removed from the install.
func (p *Plan) Deletes() []string { return slices.Clone(p.deletes) }

// Apply executes the plan: all writes, then all deletes, then a single
// bottom-up pass removing directories left empty. Individual operation
// failures are collected on the Result and execution continues. A write
// whose staged source vanished since planning and a delete whose target
// is already gone count as neither changed nor failed. Progress
// is reported after each operation with a strictly increasing index;
// onProgress may be nil, and a panicking callback does not abort the merge.
// Applying a plan twice returns the first Result without re-executing.
func (p *Plan) Apply(onProgress ProgressFunc) *Result {
	if p.applied {
		return p.result
	}

	total := p.Total()
	res := &Result{}
	idx := 0

	for _, rel := range p.writes {
		idx++
		wrote, err := p.copyFile(rel)
		if err != nil {
			res.Failed = append(res.Failed, &OpError{Phase: PhaseWrite, Path: rel, Err: err})
		} else if wrote {
			res.Written = append(res.Written, rel)
		}
		notify(onProgress, Progress{Phase: PhaseWrite, Path: rel, Index: idx, Total: total})
	}

	for _, rel := range p.deletes {
		idx++
		removed, err := p.removeFile(rel)
		if err != nil {
			res.Failed = append(res.Failed, &OpError{Phase: PhaseDelete, Path: rel, Err: err})
		} else if removed {
			res.Deleted = append(res.Deleted, rel)
		}
		notify(onProgress, Progress{Phase: PhaseDelete, Path: rel, Index: idx, Total: total})
	}

	p.pruneEmptyDirs()

	p.applied = true
	p.result = res
	return res
}

// Result returns the outcome of Apply, or nil if the plan has not run yet.
func (p *Plan) Result() *Result { return p.result }

// copyFile copies one file from the stage into the install, creating parent
// directories as needed, and reports whether the destination was written.
// A source that vanished since planning is skipped without being counted.
// The destination keeps the source's modification time on a best-effort basis.
func (p *Plan) copyFile(rel string) (bool, error) {
	src := filepath.Join(p.stageRoot, filepath.FromSlash(rel))
	dst := filepath.Join(p.installRoot, filepath.FromSlash(rel))

	in, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, err
	}
	if err := out.Close(); err != nil {
		return false, err
	}

	os.Chtimes(dst, time.Time{}, info.ModTime())
	return true, nil
}

// removeFile deletes one file from the install and reports whether it
// removed anything. A file that is already gone satisfies the operation
// without being counted.
func (p *Plan) removeFile(rel string) (bool, error) {
	dst := filepath.Join(p.installRoot, filepath.FromSlash(rel))
	err := os.Remove(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// pruneEmptyDirs removes directories left empty by the merge, deepest
// first so that chains of empty directories collapse in one pass.
// Preserved directories are kept and removal failures are ignored.
func (p *Plan) pruneEmptyDirs() {
	var dirs []string
	filepath.WalkDir(p.installRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == p.installRoot {
			return nil
		}
		rel, rerr := filepath.Rel(p.installRoot, path)
		if rerr != nil {
			return nil
		}
		if p.preserve.Match(rel) {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		// Remove fails on non-empty directories; that is the emptiness check.
		os.Remove(d)
	}
}
