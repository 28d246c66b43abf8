package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	progressBar   = "█"
	progressEmpty = "░"
	barWidth      = 20
)

// ProgressTracker reports page conversion progress with a time estimate
type ProgressTracker struct {
	mu        sync.Mutex
	total     int
	done      int
	skipped   int
	failed    int
	startTime time.Time
}

// NewProgressTracker creates a tracker for a run of total pages to process
func NewProgressTracker(total int) *ProgressTracker {
	return &ProgressTracker{
		total:     total,
		startTime: time.Now(),
	}
}

// PageDone records a completed page and prints progress
func (pt *ProgressTracker) PageDone(page int) {
	pt.mu.Lock()
	pt.done++
	line := pt.lineLocked(fmt.Sprintf("page %d done", page))
	pt.mu.Unlock()
	printProgress(Green("[OK]  "), line)
}

// PageSkipped records an up-to-date page
func (pt *ProgressTracker) PageSkipped(page int) {
	pt.mu.Lock()
	pt.skipped++
	pt.mu.Unlock()
	if !quietMode.Load() {
		fmt.Printf("%s page %d up to date\n", Dim("[SKIP]"), page)
	}
}

// PageFailed records a terminally failed page
func (pt *ProgressTracker) PageFailed(page int, err error) {
	pt.mu.Lock()
	pt.failed++
	line := pt.lineLocked(fmt.Sprintf("page %d failed: %v", page, err))
	pt.mu.Unlock()
	printProgress(Red("[FAIL]"), line)
}

// lineLocked formats the bar, counts and remaining-time estimate
func (pt *ProgressTracker) lineLocked(suffix string) string {
	processed := pt.done + pt.failed
	var bar string
	if pt.total > 0 {
		filled := processed * barWidth / pt.total
		bar = strings.Repeat(progressBar, filled) + strings.Repeat(progressEmpty, barWidth-filled)
	} else {
		bar = strings.Repeat(progressEmpty, barWidth)
	}

	line := fmt.Sprintf("[%s] %d/%d %s", bar, processed, pt.total, suffix)

	if processed > 0 && processed < pt.total {
		avg := time.Since(pt.startTime) / time.Duration(processed)
		remaining := avg * time.Duration(pt.total-processed)
		line += Dim(fmt.Sprintf(" (~%s left)", remaining.Round(time.Second)))
	}
	return line
}

func printProgress(tag, line string) {
	if quietMode.Load() {
		return
	}
	fmt.Printf("%s %s\n", tag, line)
}

// Elapsed returns the time since tracking started
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}
