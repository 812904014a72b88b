// Package parallel provides the fork-join primitives shared by the builders
// and the optimizer. Every call blocks until all the work it started has
// completed.
package parallel

import (
	"runtime"
	"sync"
)

// DefaultGrain is the minimum number of items per parallel chunk used when
// no explicit grain is configured.
const DefaultGrain = 1024

// A half-open index range [Begin, End).
type Range struct {
	Begin, End int
}

// Len returns the number of items in the range.
func (r Range) Len() int {
	return r.End - r.Begin
}

// Executor runs bounded fan-out/fan-in work on at most a fixed number of
// goroutines.
type Executor struct {
	workers int
	grain   int

	// Tokens for Fork; a full channel means all workers are busy.
	tokens chan struct{}
}

// Create a new executor. A non-positive workers value selects GOMAXPROCS and a
// non-positive grain selects DefaultGrain.
func New(workers, grain int) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if grain <= 0 {
		grain = DefaultGrain
	}
	return &Executor{
		workers: workers,
		grain:   grain,
		tokens:  make(chan struct{}, workers-1),
	}
}

// Workers returns the max number of goroutines used by a single call.
func (e *Executor) Workers() int {
	return e.workers
}

// Grain returns the sequential cut-off size.
func (e *Executor) Grain() int {
	return e.grain
}

// Chunks splits [0, n) into at most Workers() contiguous ranges holding at
// least Grain() items each (except when n itself is smaller). The split only
// depends on n and the executor settings.
func (e *Executor) Chunks(n int) []Range {
	if n <= 0 {
		return nil
	}
	count := n / e.grain
	if count > e.workers {
		count = e.workers
	}
	if count < 1 {
		count = 1
	}

	chunks := make([]Range, count)
	size, rem := n/count, n%count
	begin := 0
	for i := range chunks {
		end := begin + size
		if i < rem {
			end++
		}
		chunks[i] = Range{begin, end}
		begin = end
	}
	return chunks
}

// Run invokes fn once per chunk and waits for all invocations to return.
// A single chunk runs on the calling goroutine.
func (e *Executor) Run(chunks []Range, fn func(chunk int, r Range)) {
	if len(chunks) == 1 {
		fn(0, chunks[0])
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(chunks))
	for i, r := range chunks {
		go func(i int, r Range) {
			defer wg.Done()
			fn(i, r)
		}(i, r)
	}
	wg.Wait()
}

// For splits [0, n) into chunks and processes them concurrently.
func (e *Executor) For(n int, fn func(r Range)) {
	e.Run(e.Chunks(n), func(_ int, r Range) { fn(r) })
}

// Fork runs left and right and returns once both have completed. When size
// reaches the grain and a worker is idle, right runs on its own goroutine;
// otherwise both run sequentially on the caller.
func (e *Executor) Fork(size int, left, right func()) {
	if size < e.grain {
		left()
		right()
		return
	}

	select {
	case e.tokens <- struct{}{}:
	default:
		left()
		right()
		return
	}

	done := make(chan struct{})
	go func() {
		defer func() {
			<-e.tokens
			close(done)
		}()
		right()
	}()
	left()
	<-done
}

// Each invokes fn(i) for every i in [0, n) on its own goroutine and waits for
// all invocations to return. It is meant for a handful of independent tasks
// (for example one per axis); use For for data-parallel loops.
func (e *Executor) Each(n int, fn func(i int)) {
	if n == 1 || e.workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			fn(i)
		}(i)
	}
	wg.Wait()
}
