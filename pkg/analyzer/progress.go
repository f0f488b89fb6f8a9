package analyzer

import (
	"context"
	"sync/atomic"
)

// Progress is the state of a batch after one more file has finished.
type Progress struct {
	Current int
	Total   int
	Failed  int
	Path    string
}

// ProgressFunc is called after each analyzed file.
type ProgressFunc func(Progress)

// Tracker tracks progress for batch analysis.
// It is safe for concurrent use from multiple goroutines.
type Tracker struct {
	total    atomic.Int32
	current  atomic.Int32
	failed   atomic.Int32
	callback ProgressFunc
}

// NewTracker creates a new progress tracker with the given callback.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add increments the total count by n. Batches call it once they know
// how many files they will analyze.
func (t *Tracker) Add(n int) {
	t.total.Add(int32(n))
}

// Tick marks path as finished. failed records that it produced no report.
func (t *Tracker) Tick(path string, failed bool) {
	current := int(t.current.Add(1))
	nfailed := int(t.failed.Load())
	if failed {
		nfailed = int(t.failed.Add(1))
	}
	if t.callback != nil {
		t.callback(Progress{
			Current: current,
			Total:   int(t.total.Load()),
			Failed:  nfailed,
			Path:    path,
		})
	}
}

// Current returns the number of finished files.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Total returns the total count.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

// Failed returns the number of files that could not be analyzed.
func (t *Tracker) Failed() int {
	return int(t.failed.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext extracts the progress tracker from the context.
// Returns nil if no tracker was set.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
