// Package downloader runs bounded-concurrency transfers from order
// result links into a storage sink.
package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"

	"flowzero/internal/storage"
)

// Fetcher opens a stream for a result link. The planet client satisfies
// this.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Task is one file to transfer.
type Task struct {
	URL         string
	Destination string
}

// Result is the outcome of one task. Exactly one of OK, Skipped or Err
// describes it: OK means freshly downloaded, Skipped means the sink
// already held the file, Err carries the failure.
type Result struct {
	Destination string
	OK          bool
	Skipped     bool
	Err         error
}

// Engine downloads batches of files with a fixed worker count. One
// failed file never aborts the rest of the batch.
type Engine struct {
	fetcher     Fetcher
	concurrency int
}

func NewEngine(fetcher Fetcher, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{fetcher: fetcher, concurrency: concurrency}
}

// DownloadBatch transfers every task into the sink and streams results
// as they finish, in no particular order. Files already present in the
// sink are skipped without occupying a worker unless overwrite is set.
// The returned channel closes once every task has a result.
func (e *Engine) DownloadBatch(ctx context.Context, tasks []Task, sink storage.Sink, overwrite bool) <-chan Result {
	results := make(chan Result)
	jobs := make(chan Task)

	var wg sync.WaitGroup
	for i := 0; i < e.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- e.download(ctx, task, sink)
			}
		}()
	}

	go func() {
		defer close(results)
		for _, task := range tasks {
			if ctx.Err() != nil {
				results <- Result{Destination: task.Destination, Err: ctx.Err()}
				continue
			}
			if !overwrite {
				exists, err := sink.Exists(ctx, task.Destination)
				if err != nil {
					results <- Result{Destination: task.Destination, Err: fmt.Errorf("existence check failed: %w", err)}
					continue
				}
				if exists {
					results <- Result{Destination: task.Destination, Skipped: true}
					continue
				}
			}
			jobs <- task
		}
		close(jobs)
		wg.Wait()
	}()

	return results
}

func (e *Engine) download(ctx context.Context, task Task, sink storage.Sink) Result {
	body, size, err := e.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return Result{Destination: task.Destination, Err: fmt.Errorf("fetch failed: %w", err)}
	}
	defer body.Close()

	if err := sink.Write(ctx, task.Destination, body, size); err != nil {
		return Result{Destination: task.Destination, Err: err}
	}
	return Result{Destination: task.Destination, OK: true}
}

// Tally accumulates batch results.
type Tally struct {
	Downloaded int
	Skipped    int
	Failed     int
	Failures   []Result
}

func (t *Tally) Add(r Result) {
	switch {
	case r.Skipped:
		t.Skipped++
	case r.OK:
		t.Downloaded++
	default:
		t.Failed++
		t.Failures = append(t.Failures, r)
	}
}
