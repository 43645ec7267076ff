package app

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"epu-go/internal/merge"
)

// ProgressPrinter renders progress for long-running operations. On a
// terminal it rewrites a single status line in place; elsewhere it
// prints a plain line per 10% step so piped output stays small.
type ProgressPrinter struct {
	w       io.Writer
	tty     bool
	label   string
	lastPct int
	dirty   bool
}

// NewProgressPrinter creates a printer writing to w. The in-place
// terminal rendering is only used when w is a terminal *os.File.
func NewProgressPrinter(w io.Writer, label string) *ProgressPrinter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &ProgressPrinter{w: w, tty: tty, label: label, lastPct: -1}
}

// Download reports bytes received so far. total is -1 when the remote
// does not advertise a length; no percentage is rendered then.
func (p *ProgressPrinter) Download(received, total int64) {
	if total <= 0 {
		if p.tty {
			fmt.Fprintf(p.w, "\r%s: %s", p.label, formatBytes(received))
			p.dirty = true
		}
		return
	}
	p.step(int(received*100/total), fmt.Sprintf("%s / %s", formatBytes(received), formatBytes(total)))
}

// Merge reports one applied merge operation.
func (p *ProgressPrinter) Merge(ev merge.Progress) {
	p.step(ev.Index*100/ev.Total, fmt.Sprintf("%d/%d", ev.Index, ev.Total))
}

func (p *ProgressPrinter) step(pct int, detail string) {
	if p.tty {
		fmt.Fprintf(p.w, "\r%s: %3d%% (%s)", p.label, pct, detail)
		p.dirty = true
		return
	}
	if p.lastPct < 0 || pct/10 > p.lastPct/10 {
		fmt.Fprintf(p.w, "%s: %d%% (%s)\n", p.label, pct, detail)
	}
	p.lastPct = pct
}

// Done terminates the in-place progress line. Safe to call when
// nothing was rendered.
func (p *ProgressPrinter) Done() {
	if p.tty && p.dirty {
		fmt.Fprintln(p.w)
		p.dirty = false
	}
	p.lastPct = -1
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
