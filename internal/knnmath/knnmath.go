// Package knnmath implements the distance kernel and selection primitives of
// the kNN core: the Gram-identity squared-distance computation
// (‖q−c‖² = ‖q‖² + ‖c‖² − 2 q·cᵀ) and quickselect over a row of candidates.
//
// Both operate on flat row-major slices rather than matrix types so they can
// be called on sub-slices of a larger scratch buffer without copying, which
// is how internal/knnengine drives them one query block at a time.
package knnmath

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// Float is the element type a kNN call is specialized over: a compile-time
// choice between 32-bit and 64-bit IEEE float, per the public contract.
type Float interface {
	~float32 | ~float64
}

var blasThreads int32 = 1

// SetBLASThreads configures how many goroutines the dense matmul fallback
// path (used for the float32 instantiation, since gonum's BLAS only
// accelerates float64) may use internally. This mirrors the host BLAS
// library's thread-count knob from the reference implementation: the
// engine sets it to 1 whenever it itself runs multiple query-block workers,
// to avoid oversubscription, and to the caller's blas_thread_count
// otherwise.
func SetBLASThreads(n int) {
	if n < 1 {
		n = 1
	}
	atomic.StoreInt32(&blasThreads, int32(n))
}

func blasThreadCount() int {
	n := int(atomic.LoadInt32(&blasThreads))
	if n < 1 {
		return 1
	}
	return n
}

// SquaredNorms computes ‖row‖² for every one of the n rows (each of length
// l) of a row-major matrix.
func SquaredNorms[F Float](rows []F, n, l int) []F {
	out := make([]F, n)
	for i := 0; i < n; i++ {
		row := rows[i*l : i*l+l]
		var s F
		for _, v := range row {
			s += v * v
		}
		out[i] = s
	}
	return out
}

// SquaredDistance computes the squared Euclidean distance between two
// equal-length vectors directly (no Gram identity — used by k-means, which
// compares single centroid pairs rather than whole blocks).
func SquaredDistance[F Float](a, b []F) F {
	var s F
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// ComputeBlockDistances fills dist (length b*n) with squared Euclidean
// distances between the b query rows at q (each length l) and all n corpus
// rows at c, via the Gram identity, using precomputed squared norms qNorm
// (length b) and cNorm (length n). Negative values produced by floating
// point cancellation are clamped to zero.
func ComputeBlockDistances[F Float](dist, q, c, qNorm, cNorm []F, b, n, l int) {
	gemmNeg2(dist, q, c, b, n, l)
	for i := 0; i < b; i++ {
		qi := qNorm[i]
		row := dist[i*n : i*n+n]
		for j := 0; j < n; j++ {
			s := row[j] + qi + cNorm[j]
			if s < 0 {
				s = 0
			}
			row[j] = s
		}
	}
}

// gemmNeg2 computes dist = -2 * Q * Cᵀ. When F is float64 it delegates to
// gonum's BLAS-backed dense multiply (the ecosystem's accelerated matmul);
// otherwise (float32, which gonum's mat package does not support) it falls
// back to a goroutine-parallel loop governed by SetBLASThreads.
func gemmNeg2[F Float](dist, q, c []F, b, n, l int) {
	var probe F
	if _, ok := any(probe).(float64); ok {
		dist64 := any(dist).([]float64)
		q64 := any(q).([]float64)
		c64 := any(c).([]float64)

		Qm := mat.NewDense(b, l, q64)
		Cm := mat.NewDense(n, l, c64)
		var r mat.Dense
		r.Mul(Qm, Cm.T())
		for i := 0; i < b; i++ {
			out := dist64[i*n : i*n+n]
			for j := 0; j < n; j++ {
				out[j] = -2 * r.At(i, j)
			}
		}
		return
	}
	gemmNeg2Fallback(dist, q, c, b, n, l)
}

func gemmNeg2Fallback[F Float](dist, q, c []F, b, n, l int) {
	workers := blasThreadCount()
	if workers > b {
		workers = b
	}
	if workers <= 1 {
		gemmNeg2Range(dist, q, c, 0, b, n, l)
		return
	}

	var wg sync.WaitGroup
	chunk := (b + workers - 1) / workers
	for start := 0; start < b; start += chunk {
		end := start + chunk
		if end > b {
			end = b
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			gemmNeg2Range(dist, q, c, s, e, n, l)
		}(start, end)
	}
	wg.Wait()
}

func gemmNeg2Range[F Float](dist, q, c []F, start, end, n, l int) {
	for i := start; i < end; i++ {
		qi := q[i*l : i*l+l]
		out := dist[i*n : i*n+n]
		for j := 0; j < n; j++ {
			cj := c[j*l : j*l+l]
			var dot F
			for k := 0; k < l; k++ {
				dot += qi[k] * cj[k]
			}
			out[j] = -2 * dot
		}
	}
}

// SelectKRow partitions distRow/idxRow (both length n, in lockstep) so that
// the first k positions hold the k smallest distances, unordered within the
// prefix. It uses quickselect with Lomuto (pivot-last) partitioning,
// recursing only into the side containing rank k, implemented iteratively
// to avoid unbounded recursion depth. Ties go to the "≤" side.
func SelectKRow[F Float](distRow []F, idxRow []int32, k int) {
	n := len(distRow)
	if k >= n {
		return
	}
	lo, hi := 0, n-1
	for lo < hi {
		p := partition(distRow, idxRow, lo, hi)
		switch {
		case p == k:
			return
		case p > k:
			hi = p - 1
		default:
			lo = p + 1
		}
	}
}

func partition[F Float](dist []F, idx []int32, lo, hi int) int {
	pivot := dist[hi]
	i := lo
	for j := lo; j < hi; j++ {
		if dist[j] <= pivot {
			dist[i], dist[j] = dist[j], dist[i]
			idx[i], idx[j] = idx[j], idx[i]
			i++
		}
	}
	dist[i], dist[hi] = dist[hi], dist[i]
	idx[i], idx[hi] = idx[hi], idx[i]
	return i
}

// SortRowByDistance sorts the first k entries of distRow/idxRow ascending by
// distance, in lockstep. k is expected to be small (it is the number of
// neighbors requested), so a simple insertion sort is used rather than
// pulling in sort.Sort for an interface allocation.
func SortRowByDistance[F Float](distRow []F, idxRow []int32, k int) {
	for i := 1; i < k; i++ {
		dv, iv := distRow[i], idxRow[i]
		j := i - 1
		for j >= 0 && distRow[j] > dv {
			distRow[j+1] = distRow[j]
			idxRow[j+1] = idxRow[j]
			j--
		}
		distRow[j+1] = dv
		idxRow[j+1] = iv
	}
}
