// Package parallel splits index ranges across goroutines for the CPU backend
// and the batch evaluator.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns sensible defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

// Sequential returns a config that runs everything on the calling goroutine.
// Tests use it to get a fixed evaluation order.
func Sequential() Config {
	return Config{NumWorkers: 1, MinChunkSize: 1}
}

// WithWorkers returns a copy of cfg using n workers. n <= 1 disables
// parallelism.
func (cfg Config) WithWorkers(n int) Config {
	cfg.NumWorkers = max(n, 1)
	cfg.Enabled = n > 1
	return cfg
}

// chunkSize returns the range length handed to each goroutine, or n when the
// work should stay on the calling goroutine.
func (cfg Config) chunkSize(n int) int {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		return n
	}
	return max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
}

// ForChunks calls f(lo, hi) on disjoint ranges covering [0, n).
// Falls back to a single call when parallelism is disabled or n is small.
func ForChunks(n int, f func(lo, hi int), cfg Config) {
	if n <= 0 {
		return
	}
	size := cfg.chunkSize(n)
	if size >= n {
		f(0, n)
		return
	}

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += size {
		hi := min(lo+size, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(lo, hi)
		}()
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n) with optional parallelism.
func For(n int, f func(i int), cfg Config) {
	ForChunks(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			f(i)
		}
	}, cfg)
}
