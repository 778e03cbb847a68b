package reconcile

import (
	"fmt"
	"io"
	"time"
)

// phaseProgress rewrites a single status line for one reconcile phase
// every interval items.
type phaseProgress struct {
	w        io.Writer
	label    string
	total    int
	interval int
	done     int
	printed  int
	start    time.Time
}

func newPhaseProgress(w io.Writer, label string, total, interval int) *phaseProgress {
	if interval <= 0 {
		interval = 1
	}
	return &phaseProgress{w: w, label: label, total: total, interval: interval, start: time.Now()}
}

func (p *phaseProgress) step() {
	if p.done < p.total {
		p.done++
	}
	if p.done-p.printed >= p.interval {
		p.print()
		p.printed = p.done
	}
}

// finish prints the last count and ends the line. The count is short of
// total when the phase was interrupted.
func (p *phaseProgress) finish() {
	p.print()
	fmt.Fprintln(p.w)
}

func (p *phaseProgress) print() {
	var rate float64
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(p.done) / secs
	}
	fmt.Fprintf(p.w, "\r%s: %d/%d chunks (%.1f/s)", p.label, p.done, p.total, rate)
}
