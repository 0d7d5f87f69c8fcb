package ingestion

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressTracker reports how many work units (listing pages or cataloged
// documents) have been processed, together with a running output count.
type ProgressTracker struct {
	writer    io.Writer
	unit      string // "pages"
	output    string // "documents"
	total     int
	current   int
	produced  int
	startTime time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a page tracker writing to writer (typically os.Stderr).
func NewProgressTracker(writer io.Writer, total int) *ProgressTracker {
	return newTracker(writer, total, "pages", "documents")
}

func newTracker(writer io.Writer, total int, unit, output string) *ProgressTracker {
	return &ProgressTracker{
		writer: writer,
		unit:   unit,
		output: output,
		total:  total,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.produced = 0
}

// Advance records one finished unit and the output produced so far.
func (p *ProgressTracker) Advance(produced int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = min(p.current+1, p.total)
	p.produced = produced
	p.report()
}

// Finish prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.report()
	fmt.Fprintln(p.writer)
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime).Minutes()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.current) / elapsed
	}

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	label := strings.ToUpper(p.unit[:1]) + p.unit[1:]
	fmt.Fprintf(p.writer, "\r%s: %d/%d (%.1f%%) - %d %s - %.1f %s/min",
		label, p.current, p.total, percentage, p.produced, p.output, rate, p.unit)
}
