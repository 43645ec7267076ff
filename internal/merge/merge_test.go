package merge

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// stagePair builds a stage and install tree and returns their roots.
func stagePair(t *testing.T, stage, install map[string]string) (string, string) {
	t.Helper()
	stageRoot := filepath.Join(t.TempDir(), "stage")
	installRoot := filepath.Join(t.TempDir(), "install")
	for _, dir := range []string{stageRoot, installRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	writeTree(t, stageRoot, stage)
	writeTree(t, installRoot, install)
	return stageRoot, installRoot
}

func TestNewPlan(t *testing.T) {
	t.Run("plans writes for new and changed files, deletes for removed", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "new", "b.txt": "same", "sub/d.txt": "added"},
			map[string]string{"a.txt": "old", "b.txt": "same", "old.txt": "gone"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}

		if got, want := p.Writes(), []string{"a.txt", "sub/d.txt"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Writes() = %v, want %v", got, want)
		}
		if got, want := p.Deletes(), []string{"old.txt"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Deletes() = %v, want %v", got, want)
		}
		if p.Total() != 3 {
			t.Errorf("Total() = %d, want 3", p.Total())
		}
	})

	t.Run("preserved paths are excluded in both directions", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"save1.sav": "distributor save"},
			map[string]string{"save1.sav": "player save", "save2.sav": "only local"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher([]string{"save*.sav"}))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		if p.Total() != 0 {
			t.Errorf("Total() = %d, want 0 (writes %v, deletes %v)", p.Total(), p.Writes(), p.Deletes())
		}
	})

	t.Run("identical trees yield empty plan", func(t *testing.T) {
		t.Parallel()
		files := map[string]string{"a.txt": "x", "sub/b.txt": "y"}
		stageRoot, installRoot := stagePair(t, files, files)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		if p.Total() != 0 {
			t.Errorf("Total() = %d, want 0", p.Total())
		}
	})

	t.Run("missing install root fails", func(t *testing.T) {
		t.Parallel()
		stageRoot := t.TempDir()
		if _, err := NewPlan(stageRoot, filepath.Join(t.TempDir(), "nope"), NewPreserveMatcher(nil)); err == nil {
			t.Error("NewPlan() expected error for missing install root")
		}
	})
}

func TestPlan_Apply(t *testing.T) {
	t.Run("merges stage into install", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "new", "b.txt": "same"},
			map[string]string{"a.txt": "old", "b.txt": "same", "c.txt": "keep", "old.txt": "x"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher([]string{"c.txt"}))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		res := p.Apply(nil)

		if len(res.Failed) != 0 {
			t.Fatalf("Failed = %v, want none", res.Failed)
		}
		if got, want := res.Written, []string{"a.txt"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Written = %v, want %v", got, want)
		}
		if got, want := res.Deleted, []string{"old.txt"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Deleted = %v, want %v", got, want)
		}

		want := map[string]string{"a.txt": "new", "b.txt": "same", "c.txt": "keep"}
		if got := readTree(t, installRoot); !reflect.DeepEqual(got, want) {
			t.Errorf("install tree = %v, want %v", got, want)
		}
	})

	t.Run("second merge is a no-op", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "v2", "sub/b.txt": "data"},
			map[string]string{"a.txt": "v1", "stale.txt": "x"},
		)

		p1, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		p1.Apply(nil)

		p2, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("second NewPlan() error = %v", err)
		}
		res := p2.Apply(nil)
		if p2.Total() != 0 || len(res.Written)+len(res.Deleted)+len(res.Failed) != 0 {
			t.Errorf("second merge changed something: total=%d result=%+v", p2.Total(), res)
		}
	})

	t.Run("install matches stage on non-preserved paths afterwards", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"w.wld": "world", "levels/l1.lvl": "one", "levels/l2.lvl": "two"},
			map[string]string{"w.wld": "old world", "levels/l9.lvl": "gone", "save1.sav": "mine", "music/m.ogg": "gone too"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher([]string{"save*.sav"}))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		p.Apply(nil)

		want := map[string]string{
			"w.wld":         "world",
			"levels/l1.lvl": "one",
			"levels/l2.lvl": "two",
			"save1.sav":     "mine",
		}
		if got := readTree(t, installRoot); !reflect.DeepEqual(got, want) {
			t.Errorf("install tree = %v, want %v", got, want)
		}
	})

	t.Run("prunes directories left empty", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "keep"},
			map[string]string{"a.txt": "keep", "deep/nested/dir/file.txt": "gone"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		p.Apply(nil)

		if _, err := os.Stat(filepath.Join(installRoot, "deep")); !os.IsNotExist(err) {
			t.Errorf("deep/ should have been pruned, stat err = %v", err)
		}
	})

	t.Run("does not prune preserved directories", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "keep"},
			map[string]string{"a.txt": "keep"},
		)
		if err := os.MkdirAll(filepath.Join(installRoot, "saves"), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.MkdirAll(filepath.Join(installRoot, "scratch"), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher([]string{"saves"}))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		p.Apply(nil)

		if _, err := os.Stat(filepath.Join(installRoot, "saves")); err != nil {
			t.Errorf("preserved empty dir was pruned: %v", err)
		}
		if _, err := os.Stat(filepath.Join(installRoot, "scratch")); !os.IsNotExist(err) {
			t.Errorf("scratch/ should have been pruned, stat err = %v", err)
		}
	})

	t.Run("source missing at execution time is skipped", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "data", "b.txt": "more"},
			map[string]string{},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		if err := os.Remove(filepath.Join(stageRoot, "a.txt")); err != nil {
			t.Fatalf("removing staged file: %v", err)
		}

		res := p.Apply(nil)
		if len(res.Failed) != 0 {
			t.Fatalf("Failed = %v, want none", res.Failed)
		}
		// The skipped write never touched the install, so it is not a change.
		if got, want := res.Written, []string{"b.txt"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Written = %v, want %v", got, want)
		}
		if _, err := os.Stat(filepath.Join(installRoot, "a.txt")); !os.IsNotExist(err) {
			t.Errorf("a.txt should not exist, stat err = %v", err)
		}
		if got := readTree(t, installRoot); got["b.txt"] != "more" {
			t.Errorf("b.txt = %q, want %q", got["b.txt"], "more")
		}
	})

	t.Run("operation failure is collected and the merge continues", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"blocked/file.txt": "x", "ok.txt": "fine"},
			map[string]string{},
		)
		// A regular file where the plan needs a directory forces the write to fail.
		if err := os.WriteFile(filepath.Join(installRoot, "blocked"), []byte("wall"), 0644); err != nil {
			t.Fatalf("writing blocker: %v", err)
		}

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		res := p.Apply(nil)

		if len(res.Failed) != 1 {
			t.Fatalf("len(Failed) = %d, want 1 (%v)", len(res.Failed), res.Failed)
		}
		if res.Failed[0].Phase != PhaseWrite || res.Failed[0].Path != "blocked/file.txt" {
			t.Errorf("Failed[0] = %v", res.Failed[0])
		}
		if got, want := res.Written, []string{"ok.txt"}; !reflect.DeepEqual(got, want) {
			t.Errorf("Written = %v, want %v", got, want)
		}
	})

	t.Run("delete of already-missing file is satisfied but not counted", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{},
			map[string]string{"stale.txt": "x"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		if err := os.Remove(filepath.Join(installRoot, "stale.txt")); err != nil {
			t.Fatalf("removing file: %v", err)
		}

		res := p.Apply(nil)
		if len(res.Failed) != 0 {
			t.Errorf("Failed = %v, want none", res.Failed)
		}
		if len(res.Deleted) != 0 {
			t.Errorf("Deleted = %v, want empty for a target that was already gone", res.Deleted)
		}
	})

	t.Run("applying twice returns the first result", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "new"},
			map[string]string{},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		first := p.Apply(nil)
		calls := 0
		second := p.Apply(func(Progress) { calls++ })
		if second != first {
			t.Error("second Apply should return the first Result")
		}
		if calls != 0 {
			t.Errorf("second Apply emitted %d events, want 0", calls)
		}
	})
}

func TestPlan_Progress(t *testing.T) {
	t.Run("events are ordered with fixed total", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "1", "b.txt": "2"},
			map[string]string{"z.txt": "bye"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}

		var events []Progress
		p.Apply(func(ev Progress) { events = append(events, ev) })

		if len(events) != 3 {
			t.Fatalf("len(events) = %d, want 3", len(events))
		}
		for i, ev := range events {
			if ev.Index != i+1 {
				t.Errorf("events[%d].Index = %d, want %d", i, ev.Index, i+1)
			}
			if ev.Total != 3 {
				t.Errorf("events[%d].Total = %d, want 3", i, ev.Total)
			}
		}
		if events[0].Phase != PhaseWrite || events[1].Phase != PhaseWrite || events[2].Phase != PhaseDelete {
			t.Errorf("phases = %v %v %v, want write write delete", events[0].Phase, events[1].Phase, events[2].Phase)
		}
		if events[2].Path != "z.txt" {
			t.Errorf("events[2].Path = %q, want z.txt", events[2].Path)
		}
	})

	t.Run("panicking callback does not abort the merge", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "1", "b.txt": "2"},
			map[string]string{},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}
		res := p.Apply(func(Progress) { panic("observer bug") })

		if len(res.Written) != 2 {
			t.Errorf("len(Written) = %d, want 2", len(res.Written))
		}
		want := map[string]string{"a.txt": "1", "b.txt": "2"}
		if got := readTree(t, installRoot); !reflect.DeepEqual(got, want) {
			t.Errorf("install tree = %v, want %v", got, want)
		}
	})
}

func TestPlan_Events(t *testing.T) {
	t.Run("yields every operation", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "1", "b.txt": "2"},
			map[string]string{"z.txt": "bye"},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}

		var events []Progress
		for ev := range p.Events() {
			events = append(events, ev)
		}
		if len(events) != 3 {
			t.Fatalf("len(events) = %d, want 3", len(events))
		}
		if p.Result() == nil {
			t.Fatal("Result() = nil after Events")
		}
	})

	t.Run("breaking detaches the consumer but the merge completes", func(t *testing.T) {
		t.Parallel()
		stageRoot, installRoot := stagePair(t,
			map[string]string{"a.txt": "1", "b.txt": "2", "c.txt": "3"},
			map[string]string{},
		)

		p, err := NewPlan(stageRoot, installRoot, NewPreserveMatcher(nil))
		if err != nil {
			t.Fatalf("NewPlan() error = %v", err)
		}

		seen := 0
		for range p.Events() {
			seen++
			break
		}
		if seen != 1 {
			t.Fatalf("seen = %d, want 1", seen)
		}

		res := p.Result()
		if res == nil {
			t.Fatal("Result() = nil, merge should have completed")
		}
		if len(res.Written) != 3 {
			t.Errorf("len(Written) = %d, want 3", len(res.Written))
		}
		want := map[string]string{"a.txt": "1", "b.txt": "2", "c.txt": "3"}
		if got := readTree(t, installRoot); !reflect.DeepEqual(got, want) {
			t.Errorf("install tree = %v, want %v", got, want)
		}
	})
}
