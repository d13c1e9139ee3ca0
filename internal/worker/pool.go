// Package worker fans independent work items out to a bounded set of
// goroutines and collects the results in input order. keyguard uses it to
// replay command logs against the rule engine, which is safe for concurrent
// use.
package worker

import (
	"context"
	"runtime"
	"sync"
)

// Result pairs a value with the index of the item that produced it.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Pool bounds how many items are processed at once.
type Pool struct {
	concurrency int
}

// NewPool creates a pool with the given concurrency.
// If concurrency <= 0, defaults to runtime.NumCPU().
func NewPool(concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool{concurrency: concurrency}
}

// Concurrency reports the configured worker count.
func (p *Pool) Concurrency() int {
	return p.concurrency
}

// Map applies fn to every item and returns one Result per item, in input
// order. Errors are recorded per item and never abort the batch. Once ctx is
// done, items not yet started are skipped and carry ctx.Err().
func Map[I, R any](ctx context.Context, p *Pool, items []I, fn func(context.Context, I) (R, error)) []Result[R] {
	if len(items) == 0 {
		return nil
	}

	workers := min(p.concurrency, len(items))
	jobs := make(chan int, len(items))
	results := make([]Result[R], len(items))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result[R]{Index: i, Err: err}
					continue
				}
				val, err := fn(ctx, items[i])
				results[i] = Result[R]{Index: i, Value: val, Err: err}
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}
