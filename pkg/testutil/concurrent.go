package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	dErrors "github.com/jasonachkar/secure-api-gateway-sub001/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	// ByCode counts domain errors by their code.
	ByCode map[dErrors.Code]int32
	// Errors counts failures that were not domain errors.
	Errors int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	total := r.Successes + r.Errors
	for _, n := range r.ByCode {
		total += n
	}
	return total
}

// RunConcurrent executes fn in parallel goroutines released at the same
// instant and collects results by domain code.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes atomic.Int32
		errs      atomic.Int32
		start     = make(chan struct{})
	)
	byCode := make(map[dErrors.Code]int32)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			var domainErr *dErrors.Error
			switch {
			case err == nil:
				successes.Add(1)
			case errors.As(err, &domainErr):
				mu.Lock()
				byCode[domainErr.Code]++
				mu.Unlock()
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		ByCode:    byCode,
		Errors:    errs.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}
