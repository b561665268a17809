package annsearch

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// resolveFunc resolves one worker bin (a list of cluster ids) to its
// exact-kNN results.
type resolveFunc func(bin []int) error

// runner drives N independent resolveFunc calls over the bins produced by
// binPack and reports the first error, if any.
type runner func(bins [][]int, fn resolveFunc) error

func newResolver(backend Backend) runner {
	switch backend {
	case StructuredLoop:
		return structuredLoopRunner
	case WorkStealing:
		return workStealingRunner
	default:
		return nativeThreadsRunner
	}
}

// nativeThreadsRunner launches one goroutine per bin, joined with a
// sync.WaitGroup — the Go analogue of a pthread-per-worker design.
func nativeThreadsRunner(bins [][]int, fn resolveFunc) error {
	var wg sync.WaitGroup
	errs := make([]error, len(bins))
	for i, bin := range bins {
		wg.Add(1)
		i, bin := i, bin
		go func() {
			defer wg.Done()
			errs[i] = fn(bin)
		}()
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// structuredLoopRunner dispatches bins through a shared errgroup.Group, the
// idiomatic Go analogue of an OpenMP "#pragma omp parallel for" with a
// first-error barrier at the end.
func structuredLoopRunner(bins [][]int, fn resolveFunc) error {
	var g errgroup.Group
	for _, bin := range bins {
		bin := bin
		g.Go(func() error {
			return fn(bin)
		})
	}
	return g.Wait()
}

// workStealingRunner dispatches bins through a bounded semaphore channel
// sized to the bin count, so any idle goroutine can pick up the next
// unclaimed bin rather than owning a fixed one for the whole call —
// mirroring a work-stealing scheduler such as OpenCilk's.
func workStealingRunner(bins [][]int, fn resolveFunc) error {
	type job struct {
		idx int
		bin []int
	}
	jobs := make(chan job, len(bins))
	for i, bin := range bins {
		jobs <- job{i, bin}
	}
	close(jobs)

	errs := make([]error, len(bins))
	var wg sync.WaitGroup
	workers := len(bins)
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				errs[j.idx] = fn(j.bin)
			}
		}()
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
