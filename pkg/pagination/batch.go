package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/alchemy-client/pkg/logging"
)

// Job is one independent paginated fetch.
type Job[T any] struct {
	// Key identifies the job in the result map (for example an owner address).
	Key      string
	Build    RequestBuilder
	Parse    PageParser[T]
	PageSize int
	MaxPages int
}

// BatchFetcher runs many Jobs on a bounded worker pool. Jobs share the
// fetcher's retrier and therefore its rate limiter.
type BatchFetcher[T any] struct {
	fetcher        *Fetcher[T]
	maxConcurrency int
	sink           logging.Sink
}

// NewBatchFetcher creates a batch fetcher. maxConcurrency <= 0 defaults to 4.
func NewBatchFetcher[T any](fetcher *Fetcher[T], maxConcurrency int) *BatchFetcher[T] {
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &BatchFetcher[T]{
		fetcher:        fetcher,
		maxConcurrency: maxConcurrency,
		sink:           fetcher.sink,
	}
}

// FetchAll runs every job and returns one Result per job key. Keys must be
// unique: a job whose key was already seen is skipped and only the first one
// runs. Jobs not yet started when ctx ends report a cancelled error.
func (bf *BatchFetcher[T]) FetchAll(ctx context.Context, jobs []Job[T]) map[string]Result[T] {
	start := time.Now()
	jobs = bf.uniqueJobs(jobs)
	results := make(map[string]Result[T], len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := bf.maxConcurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	bf.sink.Log(logging.Info, "starting batch fetch", logging.Fields{
		"jobs":    len(jobs),
		"workers": workers,
	})

	queue := make(chan Job[T], len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			processed := 0
			for job := range queue {
				res := bf.fetcher.Fetch(ctx, job.Build, job.Parse, job.PageSize, job.MaxPages)
				mu.Lock()
				results[job.Key] = res
				mu.Unlock()
				processed++
			}
			bf.sink.Log(logging.Debug, "worker completed", logging.Fields{
				"worker_id": workerID,
				"jobs":      processed,
			})
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	bf.sink.Log(logging.Info, "batch fetch complete", logging.Fields{
		"jobs":     len(jobs),
		"failed":   failed,
		"duration": time.Since(start).String(),
	})
	return results
}

func (bf *BatchFetcher[T]) uniqueJobs(jobs []Job[T]) []Job[T] {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]Job[T], 0, len(jobs))
	for _, job := range jobs {
		if _, dup := seen[job.Key]; dup {
			bf.sink.Log(logging.Warn, "duplicate job key skipped", logging.Fields{"key": job.Key})
			continue
		}
		seen[job.Key] = struct{}{}
		out = append(out, job)
	}
	return out
}
