package plate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	p := NewProgressTracker(loadingStep, 3)
	assert.False(t, p.IsComplete())

	assert.Equal(t, "Loading tissue and reference data... 33% (Well A1, 1 out of 3)", p.Increment("A1"))

	// a skipped file shrinks the total
	p.Skip()
	assert.Equal(t, "Loading tissue and reference data... 100% (Well B1, 2 out of 2)", p.Increment("B1"))

	current, total, pct, msg := p.GetProgress()
	assert.Equal(t, 2, current)
	assert.Equal(t, 2, total)
	assert.Equal(t, 100, pct)
	assert.Contains(t, msg, "Well B1")
	assert.True(t, p.IsComplete())

	// never below what was already counted
	p.Skip()
	_, total, _, _ = p.GetProgress()
	assert.Equal(t, 2, total)

	assert.GreaterOrEqual(t, p.GetElapsedTime(), time.Duration(0))
}

func TestProgressTrackerEmpty(t *testing.T) {
	p := NewProgressTracker(loadingStep, 0)
	_, _, pct, _ := p.GetProgress()
	assert.Equal(t, 0, pct)
	assert.True(t, p.IsComplete())
}

func TestProgressTrackerConcurrentIncrements(t *testing.T) {
	p := NewProgressTracker("Analysing wells...", 24)

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Increment("A1")
		}()
	}
	wg.Wait()

	current, _, pct, _ := p.GetProgress()
	assert.Equal(t, 24, current)
	assert.Equal(t, 100, pct)
}
