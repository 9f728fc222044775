package ingestion

import (
	"fmt"
	"sync"
)

// State is the lifecycle position of one unit.
type State int

const (
	StatePending State = iota
	StateChunked
	StateEmbedded
	StatePersisted
	StateSkipped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateChunked:
		return "chunked"
	case StateEmbedded:
		return "embedded"
	case StatePersisted:
		return "persisted"
	case StateSkipped:
		return "skipped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome for one item. A source-level failure has an empty
// UnitID.
type Result struct {
	SourceID string
	UnitID   string
	State    State
	Chunks   int
	Err      error
}

// Report collects per-item results and running totals for an ingestion run.
// It is safe for concurrent use while the run is in progress.
type Report struct {
	Results []Result

	SourcesAdded   int
	SourcesSkipped int
	SourcesFailed  int
	UnitsAdded     int
	UnitsSkipped   int
	UnitsFailed    int
	ChunksAdded    int

	mu sync.Mutex
}

func newReport() *Report {
	return &Report{Results: []Result{}}
}

func (r *Report) add(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(res)
}

func (r *Report) addLocked(res Result) {
	r.Results = append(r.Results, res)
	switch {
	case res.UnitID == "" && res.State == StateFailed:
		r.SourcesFailed++
	case res.UnitID == "":
	case res.State == StatePersisted:
		r.UnitsAdded++
		r.ChunksAdded += res.Chunks
	case res.State == StateSkipped:
		r.UnitsSkipped++
	case res.State == StateFailed:
		r.UnitsFailed++
	}
}

func (r *Report) sources(added, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SourcesAdded += added
	r.SourcesSkipped += skipped
}

// merge folds other into r.
func (r *Report) merge(other *Report) {
	if other == nil {
		return
	}
	other.mu.Lock()
	defer other.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.SourcesAdded += other.SourcesAdded
	r.SourcesSkipped += other.SourcesSkipped
	for _, res := range other.Results {
		r.addLocked(res)
	}
}

// Failures returns the failed results in the order they were recorded.
func (r *Report) Failures() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	failures := []Result{}
	for _, res := range r.Results {
		if res.State == StateFailed {
			failures = append(failures, res)
		}
	}
	return failures
}

// String summarizes the totals on one line.
func (r *Report) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("sources: %d added, %d skipped, %d failed; units: %d added, %d skipped, %d failed; chunks: %d added",
		r.SourcesAdded, r.SourcesSkipped, r.SourcesFailed,
		r.UnitsAdded, r.UnitsSkipped, r.UnitsFailed, r.ChunksAdded)
}
