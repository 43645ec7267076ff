package merge

import "iter"

// Progress describes one completed merge operation. Index is 1-based and
// strictly increasing; Total is the plan's operation count, fixed before
// the first event is delivered.
type Progress struct {
	Phase Phase
	Path  string
	Index int
	Total int
}

// ProgressFunc receives progress events during Apply.
type ProgressFunc func(Progress)

// Events applies the plan and yields one Progress event per operation.
// Breaking out of the range stops event delivery only: the merge keeps
// running to completion before Events returns, and Result is valid
// afterwards. There is no way to cancel a merge midway.
func (p *Plan) Events() iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		delivering := true
		p.Apply(func(ev Progress) {
			if delivering && !yield(ev) {
				delivering = false
			}
		})
	}
}

// notify invokes onProgress, swallowing panics so a faulty observer
// cannot abort a merge in progress.
func notify(onProgress ProgressFunc, ev Progress) {
	if onProgress == nil {
		return
	}
	defer func() {
		recover()
	}()
	onProgress(ev)
}
