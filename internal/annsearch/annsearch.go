// Package annsearch implements the ANN orchestrator of spec.md §4.3: it
// partitions a corpus into clusters via internal/kmeans, bin-packs clusters
// onto workers by point count, and resolves each worker's clusters by
// calling internal/knnengine on a per-cluster sub-matrix, self-excluded,
// remapping local indices back to global ones.
package annsearch

import (
	"fmt"
	"sort"

	"github.com/therealutkarshpriyadarshi/annknn/internal/kmeans"
	"github.com/therealutkarshpriyadarshi/annknn/internal/knnengine"
	"github.com/therealutkarshpriyadarshi/annknn/internal/knnmath"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/observability"
)

// Backend selects which "run N independent tasks" strategy pass 7 uses to
// resolve bin-packed clusters. The three implementations mirror the
// reference implementation's parallelization_type_t choices (PTHREADS,
// OpenMP, OpenCilk) with their nearest Go idiom.
type Backend int

const (
	// NativeThreads dispatches one goroutine per worker bin, joined with a
	// sync.WaitGroup — the direct analogue of a pthread-per-worker design.
	NativeThreads Backend = iota
	// StructuredLoop dispatches bins through a shared errgroup.Group, the
	// idiomatic Go analogue of an OpenMP "#pragma omp parallel for".
	StructuredLoop
	// WorkStealing dispatches bins through a bounded semaphore channel so
	// idle workers can pick up the next unclaimed bin, mirroring a
	// work-stealing scheduler such as OpenCilk's.
	WorkStealing
)

func (b Backend) String() string {
	switch b {
	case NativeThreads:
		return "native-threads"
	case StructuredLoop:
		return "structured-loop"
	case WorkStealing:
		return "work-stealing"
	default:
		return "unknown"
	}
}

// Params configures one ann_all_to_all call.
type Params struct {
	NumClusters int
	WorkerCount int
	MemRatio    float64
	Backend     Backend
	Logger      *observability.Logger
}

func (p Params) logger() *observability.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return observability.GetGlobalLogger()
}

func invalidArg(format string, args ...interface{}) error {
	return &knnengine.Error{Status: knnengine.StatusInvalidArgument, Err: fmt.Errorf(format, args...)}
}

// AllToAll implements ann_all_to_all(C, N, L, K, Kc, worker_count,
// mem_ratio, parallel_backend) -> (IDX, D) from spec.md §4.3: corpus and
// query set coincide. With Kc > 1 every point excludes itself from its own
// result; with Kc == 1 the call is a plain knn_exact(C, C, ...) and each
// point's own index stays in its row.
func AllToAll[F knnmath.Float](corpus []F, n, l, k int, params Params) ([]int32, []F, error) {
	if n < 1 {
		return nil, nil, invalidArg("N must be >= 1, got %d", n)
	}
	if l < 1 {
		return nil, nil, invalidArg("L must be >= 1, got %d", l)
	}
	if k < 1 {
		return nil, nil, invalidArg("K must be >= 1, got %d", k)
	}
	if params.NumClusters < 1 {
		return nil, nil, invalidArg("Kc must be >= 1, got %d", params.NumClusters)
	}
	if params.NumClusters > n {
		return nil, nil, invalidArg("Kc (%d) must be <= N (%d)", params.NumClusters, n)
	}
	if n/params.NumClusters <= k {
		return nil, nil, invalidArg("N/Kc (%d) must be > K (%d)", n/params.NumClusters, k)
	}
	if params.WorkerCount < 1 {
		return nil, nil, invalidArg("worker_count must be >= 1, got %d", params.WorkerCount)
	}
	if params.MemRatio <= 0 || params.MemRatio > 1 {
		return nil, nil, invalidArg("mem_ratio must be in (0, 1], got %g", params.MemRatio)
	}

	log := params.logger()

	// Degenerate case: Kc == 1 bypasses k-means entirely and calls
	// knn_exact(C, C, ...) with K neighbors. Self-exclusion is NOT
	// performed here — a deliberately preserved source behavior (see
	// DESIGN.md's Open Questions).
	if params.NumClusters == 1 {
		log.Debug("annsearch: Kc=1, delegating directly to knn_exact", map[string]interface{}{"n": n})
		enginParams := knnengine.Defaults()
		enginParams.WorkerCount = params.WorkerCount
		enginParams.MemRatio = params.MemRatio
		enginParams.Logger = params.Logger
		return knnengine.Exact(corpus, corpus, n, n, l, k, enginParams)
	}

	kmResult, err := kmeans.Run[F](corpus, n, l, kmeans.Config{
		NumClusters:    params.NumClusters,
		MinClusterSize: k + 1,
		WorkerCount:    1,
		BLASThreads:    1,
		MemRatio:       params.MemRatio,
		Logger:         params.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("annsearch: clustering: %w", err)
	}

	log.Debug("annsearch: clustering complete", map[string]interface{}{
		"clusters_requested": params.NumClusters,
		"clusters_surviving": len(kmResult.Clusters),
	})

	bins := binPack(kmResult.Clusters, params.WorkerCount)

	idxOut := make([]int32, n*k)
	distOut := make([]F, n*k)

	resolver := newResolver(params.Backend)
	if err := resolver(bins, func(bin []int32) error {
		return resolveBin(corpus, kmResult.Clusters, bin, l, k, params, idxOut, distOut)
	}); err != nil {
		return nil, nil, fmt.Errorf("annsearch: resolving clusters: %w", err)
	}

	return idxOut, distOut, nil
}

// binPack implements pass 6: sort clusters by descending size, then greedily
// assign each to the worker with the smallest current total-point load
// (longest-processing-time list scheduling). Returns, for each of
// workerCount bins, the list of cluster ids assigned to it.
func binPack(clusters [][]int32, workerCount int) [][]int {
	order := make([]int, len(clusters))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return len(clusters[order[a]]) > len(clusters[order[b]])
	})

	if workerCount > len(clusters) {
		workerCount = len(clusters)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	bins := make([][]int, workerCount)
	load := make([]int, workerCount)
	for _, c := range order {
		w := 0
		for i := 1; i < workerCount; i++ {
			if load[i] < load[w] {
				w = i
			}
		}
		bins[w] = append(bins[w], c)
		load[w] += len(clusters[c])
	}
	return bins
}

// resolveBin runs the exact kNN engine, self-excluded, on every cluster in
// one worker's bin, writing results directly into the global output slices
// at each cluster member's global row.
func resolveBin[F knnmath.Float](corpus []F, clusters [][]int32, bin []int, l, k int, params Params, idxOut []int32, distOut []F) error {
	n := len(idxOut) / k
	log := params.logger()
	for _, cid := range bin {
		members := clusters[cid]
		size := len(members)

		log.WithCluster(cid, size).Debug("annsearch: resolving cluster")

		sub := make([]F, size*l)
		for i, m := range members {
			copy(sub[i*l:(i+1)*l], corpus[int(m)*l:int(m)*l+l])
		}

		subParams := knnengine.Defaults()
		subParams.WorkerCount = 1
		subParams.BLASThreads = 1
		subParams.MemRatio = params.MemRatio * float64(size) / float64(n)
		if subParams.MemRatio <= 0 {
			subParams.MemRatio = params.MemRatio
		}
		subParams.Logger = params.Logger

		subIdx, subDist, err := knnengine.Exact(sub, sub, size, size, l, k+1, subParams)
		if err != nil {
			return fmt.Errorf("cluster %d (size %d): %w", cid, size, err)
		}

		for i, m := range members {
			localRow := subIdx[i*(k+1) : (i+1)*(k+1)]
			localDist := subDist[i*(k+1) : (i+1)*(k+1)]

			outBase := int(m) * k
			written := 0
			for j := 0; j < k+1 && written < k; j++ {
				if int(localRow[j]) == i {
					continue // skip self
				}
				idxOut[outBase+written] = members[localRow[j]]
				distOut[outBase+written] = localDist[j]
				written++
			}
		}
	}
	return nil
}
