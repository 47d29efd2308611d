package plate

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// ProgressFunc receives status lines while a plate is loaded or written
type ProgressFunc func(msg string)

// ProgressTracker tracks progress of a step over a known number of wells
type ProgressTracker struct {
	Step      string
	Total     int
	Current   int
	StartTime time.Time
	Message   string
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(step string, total int) *ProgressTracker {
	return &ProgressTracker{
		Step:      step,
		Total:     total,
		StartTime: time.Now(),
	}
}

// Increment advances by one well and returns the status line for it, for
// example "Loading tissue and reference data... 50% (Well B1, 1 out of 2)"
func (p *ProgressTracker) Increment(wellName string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Current++
	p.Message = fmt.Sprintf("%s %d%% (Well %s, %d out of %d)",
		p.Step, p.percentageLocked(), wellName, p.Current, p.Total)
	return p.Message
}

// Skip drops one well from the total, for files that turned out not to be
// well files
func (p *ProgressTracker) Skip() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Total > p.Current {
		p.Total--
	}
}

// GetProgress returns the current progress state
func (p *ProgressTracker) GetProgress() (current, total, percentage int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current, p.Total, p.percentageLocked(), p.Message
}

func (p *ProgressTracker) percentageLocked() int {
	if p.Total <= 0 {
		return 0
	}
	return int(math.Round(float64(p.Current) / float64(p.Total) * 100))
}

// IsComplete returns true once every well was counted
func (p *ProgressTracker) IsComplete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.Current >= p.Total
}

// GetElapsedTime returns the elapsed time since start
func (p *ProgressTracker) GetElapsedTime() time.Duration {
	return time.Since(p.StartTime)
}
