package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter draws a single-line progress bar for replay and other
// commands that work through a known number of streams or signals.
type ProgressReporter interface {
	Start(total int64)
	Update(current int64)
	Add(delta int64)
	Finish()
	Error(err error)
}

const progressBarWidth = 40

// SimpleProgress redraws the bar in place with a carriage return. Its
// methods may be called from several replay workers at once.
type SimpleProgress struct {
	mu      sync.Mutex
	w       io.Writer
	unit    string
	total   int64
	done    int64
	started time.Time
}

// NewProgressReporter counts signals. A nil w means os.Stderr, keeping the
// bar off the command's stdout.
func NewProgressReporter(w io.Writer) ProgressReporter {
	return NewUnitProgressReporter(w, "signals")
}

// NewUnitProgressReporter counts unit ("streams", "batches") instead.
func NewUnitProgressReporter(w io.Writer, unit string) ProgressReporter {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{w: w, unit: unit}
}

// Start resets the count and the rate clock. A zero total draws nothing.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total, p.done, p.started = total, 0, time.Now()
	p.draw()
}

// Update sets the count.
func (p *SimpleProgress) Update(current int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = current
	p.draw()
}

// Add advances the count by delta.
func (p *SimpleProgress) Add(delta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += delta
	p.draw()
}

// Finish fills the bar and ends the line.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = p.total
	p.draw()
	fmt.Fprintln(p.w)
}

// Error ends the bar line with err.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n✗ Error: %v\n", err)
}

func (p *SimpleProgress) draw() {
	if p.total == 0 {
		return
	}
	fmt.Fprint(p.w, "\r"+p.line(time.Since(p.started)))
}

// line renders the bar. The bar and percentage are clamped to [0, total];
// the raw count and rate are not.
func (p *SimpleProgress) line(elapsed time.Duration) string {
	shown := min(max(p.done, 0), p.total)
	pct := float64(shown) / float64(p.total) * 100
	filled := int(float64(progressBarWidth) * pct / 100)

	var rate float64
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(p.done) / s
	}

	return fmt.Sprintf("Progress: [%s%s] %.1f%% (%d/%d) %.1f %s/s",
		strings.Repeat("█", filled), strings.Repeat("░", progressBarWidth-filled),
		pct, p.done, p.total, rate, p.unit)
}
