package resources

import (
	"sync"
	"time"

	"github.com/kitware/ctest-go/internal/testmodel"
)

// Elapsed records how long a single test took to run, the way the
// teacher's UsageRecord captures a single token-consumption event.
type Elapsed struct {
	ID       testmodel.ID
	Name     string
	Duration time.Duration
	Passed   bool
}

// Summary aggregates a run's elapsed times, mirroring the shape of the
// teacher's UsageSummary.
type Summary struct {
	Total     time.Duration
	Count     int
	PassCount int
	FailCount int
	Longest   Elapsed
}

// RunAccountant tracks per-test durations across a single scheduler run
// and produces the end-of-run timing summary. Adapted from the teacher's
// Accountant, with token/tier/VPS aggregation replaced by a single
// duration total and a running record of the slowest test, since a
// scheduler run has no user or fleet dimension to aggregate by.
type RunAccountant struct {
	mu      sync.Mutex
	records []Elapsed
}

// NewRunAccountant creates an empty accountant.
func NewRunAccountant() *RunAccountant {
	return &RunAccountant{}
}

// Record logs one test's completion.
func (a *RunAccountant) Record(id testmodel.ID, name string, d time.Duration, passed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, Elapsed{ID: id, Name: name, Duration: d, Passed: passed})
}

// Summarize computes the aggregate Summary over every recorded test.
func (a *RunAccountant) Summarize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s Summary
	for _, r := range a.records {
		s.Total += r.Duration
		s.Count++
		if r.Passed {
			s.PassCount++
		} else {
			s.FailCount++
		}
		if r.Duration > s.Longest.Duration {
			s.Longest = r
		}
	}
	return s
}

// RecordCount returns the number of completions recorded so far.
func (a *RunAccountant) RecordCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Records returns a copy of every completion recorded, in recording order.
func (a *RunAccountant) Records() []Elapsed {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Elapsed, len(a.records))
	copy(out, a.records)
	return out
}
