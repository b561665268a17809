// Package knnengine implements the blocked, worker-pool-parallel exact kNN
// engine: the engine drives internal/knnmath in memory-bounded query
// blocks, sharding each block across a long-lived worker pool, and copies
// out square-rooted, optionally sorted neighbor lists.
package knnengine

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/therealutkarshpriyadarshi/annknn/internal/knnmath"
	"github.com/therealutkarshpriyadarshi/annknn/internal/sysinfo"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/observability"
)

// minQueriesPerBlock mirrors MIN_QUERIES_PER_BLOCK from the reference
// implementation's a2a_knn.h: if the chosen block size can't give each
// worker at least this many queries, worker_count is coerced to 1.
const minQueriesPerBlock = 1

// queryFreeMemory is a seam over sysinfo.FreeMemory so tests can pin a
// deterministic memory budget instead of depending on the real host's
// /proc/meminfo, which varies run to run and would make mem_ratio-driven
// block-count assertions flaky.
var queryFreeMemory = sysinfo.FreeMemory

// Status classifies a failure per the error taxonomy of the public
// contract: callers can distinguish invalid arguments, exhausted
// resources, and worker failures without parsing error strings.
type Status int

const (
	// StatusInvalidArgument covers null/zero dimensions, K out of range,
	// mem_ratio outside (0, 1], and similar caller mistakes.
	StatusInvalidArgument Status = iota
	// StatusResourceExhausted covers scratch allocation that cannot be
	// sized even at block size 1.
	StatusResourceExhausted
	// StatusWorkerFailure covers an error surfaced by a worker task.
	StatusWorkerFailure
)

func (s Status) String() string {
	switch s {
	case StatusInvalidArgument:
		return "invalid-argument"
	case StatusResourceExhausted:
		return "resource-exhausted"
	case StatusWorkerFailure:
		return "worker-failure"
	default:
		return "unknown"
	}
}

// Error wraps a failure with its Status so callers can type-assert and
// branch, per spec.md §7's propagation policy.
type Error struct {
	Status Status
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("knnengine: %s: %v", e.Status, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func invalidArg(format string, args ...interface{}) error {
	return &Error{Status: StatusInvalidArgument, Err: fmt.Errorf(format, args...)}
}

func resourceExhausted(format string, args ...interface{}) error {
	return &Error{Status: StatusResourceExhausted, Err: fmt.Errorf(format, args...)}
}

func workerFailure(format string, args ...interface{}) error {
	return &Error{Status: StatusWorkerFailure, Err: fmt.Errorf(format, args...)}
}

// Params configures one exact kNN call. Zero values are not valid defaults
// for WorkerCount/BLASThreads/MemRatio — callers must supply sane values
// (Defaults() below fills in the usual ones).
type Params struct {
	Sorted       bool
	WorkerCount  int
	BLASThreads  int
	MemRatio     float64
	Logger       *observability.Logger
}

// Defaults returns engine parameters suitable for a single-call default:
// unsorted, one worker per CPU, one BLAS thread, and a conservative memory
// ratio.
func Defaults() Params {
	return Params{
		Sorted:      false,
		WorkerCount: sysinfo.NumCPU(),
		BLASThreads: 1,
		MemRatio:    0.25,
	}
}

func (p Params) logger() *observability.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return observability.GetGlobalLogger()
}

// Exact runs knn_exact and returns newly allocated output slices. It is a
// convenience wrapper around ExactInto for callers that don't already own
// output buffers.
func Exact[F knnmath.Float](q, c []F, m, n, l, k int, params Params) ([]int32, []F, error) {
	idx := make([]int32, m*k)
	dist := make([]F, m*k)
	if err := ExactInto(q, c, idx, dist, m, n, l, k, params); err != nil {
		return nil, nil, err
	}
	return idx, dist, nil
}

// ExactInto implements knn_exact(Q, C, IDX, D, M, N, L, K, sorted,
// worker_count, blas_thread_count, mem_ratio) -> status from spec.md §4.2 /
// §6. idxOut and distOut must be pre-allocated by the caller with length
// m*k; they are the sole mutated state visible to the caller on success.
func ExactInto[F knnmath.Float](q, c []F, idxOut []int32, distOut []F, m, n, l, k int, params Params) error {
	if err := validateArgs(m, n, l, k, params); err != nil {
		return err
	}
	if len(idxOut) != m*k || len(distOut) != m*k {
		return invalidArg("output slices must have length m*k=%d, got idx=%d dist=%d", m*k, len(idxOut), len(distOut))
	}

	log := params.logger()

	// INIT: shared, once-per-call state.
	sqC := knnmath.SquaredNorms(c, n, l)

	var zeroF F
	sizeofF := int(unsafe.Sizeof(zeroF))
	const sizeofIdx = 4 // int32

	avail, err := queryFreeMemory()
	if err != nil {
		return resourceExhausted("querying host free memory: %v", err)
	}
	budget := float64(avail) * params.MemRatio

	blockSize := computeBlockSize(budget, n, sizeofF, sizeofIdx)
	if blockSize < 1 {
		return resourceExhausted("no block size satisfies mem_ratio=%g against N=%d (available=%d bytes)", params.MemRatio, n, avail)
	}
	if blockSize > m {
		blockSize = m
	}

	workerCount := params.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}
	if blockSize < minQueriesPerBlock*workerCount {
		workerCount = 1
	}

	if workerCount > 1 {
		knnmath.SetBLASThreads(1)
	} else {
		knnmath.SetBLASThreads(params.BLASThreads)
	}

	log.Debug("knnengine: starting exact search", map[string]interface{}{
		"m": m, "n": n, "l": l, "k": k,
		"block_size": blockSize, "worker_count": workerCount,
	})

	scratchDist := make([]F, blockSize*n)
	scratchIdx := make([]int32, blockSize*n)
	qNormBlock := make([]F, blockSize)

	var pool *workerPool
	if workerCount > 1 {
		pool = newWorkerPool(workerCount)
		defer pool.shutdown()
	}

	for qStart := 0; qStart < m; qStart += blockSize {
		b := blockSize
		if qStart+b > m {
			b = m - qStart
		}

		qBlock := q[qStart*l : (qStart+b)*l]
		resetIndexRows(scratchIdx, b, n)
		copy(qNormBlock[:b], knnmath.SquaredNorms(qBlock, b, l))

		log.WithBlock(qStart, b, workerCount).Debug("knnengine: dispatching block")

		if err := runBlock(pool, scratchDist[:b*n], qBlock, c, qNormBlock[:b], sqC, scratchIdx[:b*n], b, n, l, k); err != nil {
			return workerFailure("block at query %d: %v", qStart, err)
		}

		for i := 0; i < b; i++ {
			distRow := scratchDist[i*n : i*n+n]
			idxRow := scratchIdx[i*n : i*n+n]

			outBase := (qStart + i) * k
			for j := 0; j < k; j++ {
				d := distRow[j]
				if d < 0 {
					d = 0
				}
				distOut[outBase+j] = F(math.Sqrt(float64(d)))
				idxOut[outBase+j] = idxRow[j]
			}
			if params.Sorted {
				knnmath.SortRowByDistance(distOut[outBase:outBase+k], idxOut[outBase:outBase+k], k)
			}
		}
	}

	log.Debug("knnengine: exact search complete", map[string]interface{}{"m": m, "k": k})
	return nil
}

// runBlock computes distances and selects the K smallest for every query
// row in the block, either directly (worker_count == 1) or by partitioning
// the block across the worker pool into contiguous, near-equal row ranges.
func runBlock[F knnmath.Float](pool *workerPool, dist, q, c, qNorm, cNorm []F, idx []int32, b, n, l, k int) error {
	if pool == nil {
		knnmath.ComputeBlockDistances(dist, q, c, qNorm, cNorm, b, n, l)
		for i := 0; i < b; i++ {
			knnmath.SelectKRow(dist[i*n:i*n+n], idx[i*n:i*n+n], k)
		}
		return nil
	}

	workers := pool.workers
	if workers > b {
		workers = b
	}
	ranges := splitRows(b, workers)

	var wg sync.WaitGroup
	errs := make([]error, len(ranges))
	for wi, r := range ranges {
		wg.Add(1)
		wi, r := wi, r
		pool.submit(func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					errs[wi] = fmt.Errorf("panic: %v", rec)
				}
			}()
			rowsQ := q[r.start*l : r.end*l]
			rowsDist := dist[r.start*n : r.end*n]
			rowsIdx := idx[r.start*n : r.end*n]
			rowsQNorm := qNorm[r.start:r.end]
			knnmath.ComputeBlockDistances(rowsDist, rowsQ, c, rowsQNorm, cNorm, r.end-r.start, n, l)
			for i := 0; i < r.end-r.start; i++ {
				knnmath.SelectKRow(rowsDist[i*n:i*n+n], rowsIdx[i*n:i*n+n], k)
			}
		})
	}
	wg.Wait()

	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

type rowRange struct{ start, end int }

// splitRows partitions [0, b) into `workers` contiguous slices whose sizes
// differ by at most one, per spec.md §4.2's worker-dispatch contract.
func splitRows(b, workers int) []rowRange {
	if workers < 1 {
		workers = 1
	}
	base := b / workers
	rem := b % workers
	ranges := make([]rowRange, 0, workers)
	start := 0
	for w := 0; w < workers; w++ {
		size := base
		if w < rem {
			size++
		}
		if size == 0 {
			continue
		}
		ranges = append(ranges, rowRange{start, start + size})
		start += size
	}
	return ranges
}

func resetIndexRows(idx []int32, rows, n int) {
	for i := 0; i < rows; i++ {
		row := idx[i*n : i*n+n]
		for j := range row {
			row[j] = int32(j)
		}
	}
}

// computeBlockSize solves for the largest B satisfying
//
//	B*N*(sizeof(F)+sizeof(I)) + B*sizeof(F) + N*sizeof(F) <= budget
//
// per spec.md §4.2.
func computeBlockSize(budget float64, n, sizeofF, sizeofIdx int) int {
	denom := float64(n)*float64(sizeofF+sizeofIdx) + float64(sizeofF)
	if denom <= 0 {
		return 0
	}
	numer := budget - float64(n)*float64(sizeofF)
	if numer <= 0 {
		return 0
	}
	return int(numer / denom)
}

func validateArgs(m, n, l, k int, params Params) error {
	if m < 1 {
		return invalidArg("M must be >= 1, got %d", m)
	}
	if n < 1 {
		return invalidArg("N must be >= 1, got %d", n)
	}
	if l < 1 {
		return invalidArg("L must be >= 1, got %d", l)
	}
	if k < 1 || k > n {
		return invalidArg("K must satisfy 1 <= K <= N, got K=%d N=%d", k, n)
	}
	if params.MemRatio <= 0 || params.MemRatio > 1 {
		return invalidArg("mem_ratio must be in (0, 1], got %g", params.MemRatio)
	}
	if params.WorkerCount < 1 {
		return invalidArg("worker_count must be >= 1, got %d", params.WorkerCount)
	}
	if params.BLASThreads < 1 {
		return invalidArg("blas_thread_count must be >= 1, got %d", params.BLASThreads)
	}
	return nil
}
