// Package progress draws a terminal progress bar for batch analysis.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/panbanda/pyaudit/pkg/analyzer"
)

// Bar renders analyzer progress. A quiet Bar accepts updates and draws
// nothing.
type Bar struct {
	bar     *progressbar.ProgressBar
	out     io.Writer
	label   string
	mu      sync.Mutex
	current int
	failed  int
}

// New creates a bar writing to w. The total grows as batches report it.
func New(label string, w io.Writer, quiet bool) *Bar {
	b := &Bar{out: w, label: label}
	if quiet {
		return b
	}
	b.bar = progressbar.NewOptions(0,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return b
}

// Update moves the bar to p. It is an analyzer.ProgressFunc and safe for
// concurrent use; late updates never move the bar backwards.
func (b *Bar) Update(p analyzer.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failed = max(b.failed, p.Failed)
	if p.Current <= b.current {
		return
	}
	b.current = p.Current
	if b.bar == nil {
		return
	}
	if p.Total != b.bar.GetMax() {
		b.bar.ChangeMax(p.Total)
	}
	_ = b.bar.Set(p.Current)
}

// Current returns the number of finished files seen so far.
func (b *Bar) Current() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Finish clears the bar and reports failed files, if any.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	_ = b.bar.Clear()
	if b.failed > 0 {
		fmt.Fprintf(b.out, "  %s: %d of %d files could not be analyzed\n", b.label, b.failed, b.current)
	}
}

// FinishError clears the bar and prints err.
func (b *Bar) FinishError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bar == nil {
		return
	}
	_ = b.bar.Finish()
	_ = b.bar.Clear()
	fmt.Fprintf(b.out, "  %s error: %v\n", b.label, err)
}
