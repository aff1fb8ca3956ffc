// Package parallel fans row-indexed work out over a bounded set of goroutines.
package parallel

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool runs row-indexed work on a fixed number of workers. A Pool holds no
// goroutines between calls and is safe for concurrent use.
type Pool struct {
	workers int
}

// NewPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// ExecuteRows calls fn once for every row in [0, n) and waits for all calls
// to return.
//
// Workers claim the next unclaimed row from a shared counter, so rows of
// uneven cost (macroblock rows clipped by the frame edge, for example)
// balance out. After the first failure no further rows are claimed and that
// error is returned.
func (p *Pool) ExecuteRows(n int, fn func(row int) error) error {
	if n <= 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(context.Background())
	var next atomic.Int64
	for range min(p.workers, n) {
		g.Go(func() error {
			for ctx.Err() == nil {
				row := int(next.Add(1) - 1)
				if row >= n {
					return nil
				}
				if err := fn(row); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
