// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/stream"

	"github.com/panbanda/pyaudit/pkg/parser"
	"github.com/panbanda/pyaudit/pkg/source"
)

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ErrFileTooLarge is returned for files above the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// Options configures MapSources.
type Options[T any] struct {
	// Workers bounds concurrent tasks; <= 0 means 2x NumCPU.
	Workers int
	// MaxFileSize skips larger files with ErrFileTooLarge; 0 means no limit.
	MaxFileSize int64
	// OnDone is called once per file with its result, serially and in input order.
	OnDone func(path string, result T)
}

// Task processes the content of one file with a parser owned by the task.
type Task[T any] func(ctx context.Context, psr *parser.Parser, path string, content []byte) T

// FailFunc converts a read or cancellation error into a result.
type FailFunc[T any] func(path string, err error) T

// MapSources reads each file from src and runs fn on it concurrently, one
// parser per task. Results are returned in the order of files: completed
// tasks hand their result to a callback that runs serially in submission
// order, so only one goroutine ever appends to the result slice. Files
// that cannot be read, exceed the size limit, or are reached after ctx is
// cancelled produce fail(path, err) instead of aborting the batch.
func MapSources[T any](ctx context.Context, files []string, src source.ContentSource, opts Options[T], fn Task[T], fail FailFunc[T]) []T {
	if len(files) == 0 {
		return nil
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	results := make([]T, 0, len(files))
	s := stream.New().WithMaxGoroutines(workers)
	for _, path := range files {
		s.Go(func() stream.Callback {
			res := process(ctx, src, opts.MaxFileSize, path, fn, fail)
			return func() {
				results = append(results, res)
				if opts.OnDone != nil {
					opts.OnDone(path, res)
				}
			}
		})
	}
	s.Wait()

	return results
}

func process[T any](ctx context.Context, src source.ContentSource, maxSize int64, path string, fn Task[T], fail FailFunc[T]) T {
	if err := ctx.Err(); err != nil {
		return fail(path, err)
	}

	content, err := src.Read(path)
	if err != nil {
		return fail(path, ProcessingError{Path: path, Err: err})
	}
	if maxSize > 0 && int64(len(content)) > maxSize {
		return fail(path, ProcessingError{
			Path: path,
			Err:  fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, len(content), maxSize),
		})
	}

	psr := parser.New()
	defer psr.Close()
	return fn(ctx, psr, path, content)
}
