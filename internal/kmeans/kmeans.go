// Package kmeans implements the clustering stage of the ANN orchestrator:
// cold-start centroid seeding, a single assignment pass delegated to the
// exact kNN engine (K=1), a one-shot centroid recompute, and a
// merge-until-viable pass that guarantees every surviving cluster has at
// least MinClusterSize members. This is deliberately not Lloyd's algorithm:
// spec.md's ANN orchestrator calls for a single assign/recompute pass rather
// than iterating to convergence, trading clustering quality for a bounded,
// predictable cost per ann_all_to_all call.
package kmeans

import (
	"fmt"
	"math/rand"

	"github.com/therealutkarshpriyadarshi/annknn/internal/knnengine"
	"github.com/therealutkarshpriyadarshi/annknn/internal/knnmath"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/observability"
)

// Config configures one clustering run.
type Config struct {
	// NumClusters is the requested cluster count (Kc in spec.md's naming).
	NumClusters int
	// MinClusterSize is the smallest a surviving cluster may be; the ANN
	// orchestrator sets this to K+1 so every cluster can answer a K-NN query
	// with self-exclusion.
	MinClusterSize int
	WorkerCount    int
	BLASThreads    int
	MemRatio       float64
	// Rand seeds centroid sampling; callers that need reproducible runs
	// (tests, recall benchmarks) supply their own source.
	Rand   *rand.Rand
	Logger *observability.Logger
}

// Result holds the output of one clustering run.
type Result[F knnmath.Float] struct {
	// Assignment maps each of the n corpus points to a cluster id in
	// [0, len(Clusters)).
	Assignment []int32
	// Clusters holds the global point indices belonging to each surviving
	// cluster.
	Clusters [][]int32
	// Centroids holds the final centroid vector (length l) for each
	// surviving cluster, in the same order as Clusters.
	Centroids [][]F
}

func (c Config) logger() *observability.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return observability.GetGlobalLogger()
}

// Run clusters the n points of corpus (each of length l, row-major) into at
// most cfg.NumClusters groups, merging undersized groups until every
// survivor has at least cfg.MinClusterSize members (or only one cluster
// remains).
func Run[F knnmath.Float](corpus []F, n, l int, cfg Config) (*Result[F], error) {
	if n < 1 {
		return nil, fmt.Errorf("kmeans: n must be >= 1, got %d", n)
	}
	if l < 1 {
		return nil, fmt.Errorf("kmeans: l must be >= 1, got %d", l)
	}
	if cfg.NumClusters < 1 {
		return nil, fmt.Errorf("kmeans: NumClusters must be >= 1, got %d", cfg.NumClusters)
	}
	if cfg.MinClusterSize < 1 {
		return nil, fmt.Errorf("kmeans: MinClusterSize must be >= 1, got %d", cfg.MinClusterSize)
	}

	kc := cfg.NumClusters
	if kc > n {
		kc = n
	}

	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	log := cfg.logger()
	log.Debug("kmeans: seeding centroids", map[string]interface{}{"n": n, "l": l, "kc": kc})

	seedIdx := samplDistinct(r, n, kc)
	centroids := make([]F, kc*l)
	for c, idx := range seedIdx {
		copy(centroids[c*l:(c+1)*l], corpus[idx*l:(idx+1)*l])
	}

	assignment, err := assignOneShot(corpus, centroids, n, l, kc, cfg)
	if err != nil {
		return nil, fmt.Errorf("kmeans: assignment pass: %w", err)
	}

	clusters := groupByAssignment(assignment, kc)
	centroids = recomputeCentroids(corpus, clusters, kc, l)

	clusters, centroids = mergeUntilViable(corpus, assignment, clusters, centroids, l, cfg.MinClusterSize)

	log.Debug("kmeans: clustering complete", map[string]interface{}{
		"clusters_surviving": len(clusters),
	})

	centroidRows := make([][]F, len(clusters))
	for i := range clusters {
		centroidRows[i] = centroids[i*l : (i+1)*l]
	}

	return &Result[F]{
		Assignment: assignment,
		Clusters:   clusters,
		Centroids:  centroidRows,
	}, nil
}

// samplDistinct draws k distinct indices from [0, n) via partial
// Fisher-Yates, the same cold-start sampling approach the reference
// quantization package's KMeansPlusPlus uses for its first centroid, applied
// k times instead of once since this package does not use the k-means++
// weighting (the engine provides the nearest-centroid search that weighting
// would otherwise approximate).
func samplDistinct(r *rand.Rand, n, k int) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + r.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// assignOneShot finds the nearest centroid for every corpus point via the
// exact kNN engine run with K=1, treating centroids as the "corpus" side of
// the search.
func assignOneShot[F knnmath.Float](corpus, centroids []F, n, l, kc int, cfg Config) ([]int32, error) {
	params := knnengine.Defaults()
	if cfg.WorkerCount > 0 {
		params.WorkerCount = cfg.WorkerCount
	}
	if cfg.BLASThreads > 0 {
		params.BLASThreads = cfg.BLASThreads
	}
	if cfg.MemRatio > 0 {
		params.MemRatio = cfg.MemRatio
	}
	params.Logger = cfg.Logger

	idx, _, err := knnengine.Exact(corpus, centroids, n, kc, l, 1, params)
	if err != nil {
		return nil, err
	}

	assignment := make([]int32, n)
	for i := 0; i < n; i++ {
		assignment[i] = idx[i]
	}
	return assignment, nil
}

func groupByAssignment(assignment []int32, kc int) [][]int32 {
	clusters := make([][]int32, kc)
	for i, c := range assignment {
		clusters[c] = append(clusters[c], int32(i))
	}
	return clusters
}

func recomputeCentroids[F knnmath.Float](corpus []F, clusters [][]int32, kc, l int) []F {
	centroids := make([]F, kc*l)
	for c, members := range clusters {
		if len(members) == 0 {
			continue
		}
		row := centroids[c*l : (c+1)*l]
		for _, m := range members {
			src := corpus[int(m)*l : int(m)*l+l]
			for d := 0; d < l; d++ {
				row[d] += src[d]
			}
		}
		inv := F(1) / F(len(members))
		for d := 0; d < l; d++ {
			row[d] *= inv
		}
	}
	return centroids
}

// mergeUntilViable repeatedly absorbs the smallest undersized cluster into
// its nearest surviving neighbor (by centroid distance) until every
// remaining cluster meets minSize, or a single cluster remains.
func mergeUntilViable[F knnmath.Float](corpus []F, assignment []int32, clusters [][]int32, centroids []F, l, minSize int) ([][]int32, []F) {
	for len(clusters) > 1 {
		smallest := -1
		for i, members := range clusters {
			if len(members) < minSize {
				if smallest == -1 || len(members) < len(clusters[smallest]) {
					smallest = i
				}
			}
		}
		if smallest == -1 {
			break
		}

		nearest := nearestOther(centroids, l, smallest, len(clusters))

		clusters[nearest] = append(clusters[nearest], clusters[smallest]...)
		for _, m := range clusters[smallest] {
			assignment[m] = int32(nearest)
		}

		clusters = append(clusters[:smallest], clusters[smallest+1:]...)
		centroids = recomputeCentroids(corpus, clusters, len(clusters), l)
		remapAssignment(assignment, smallest)
	}
	return clusters, centroids
}

func nearestOther[F knnmath.Float](centroids []F, l, self, kc int) int {
	best := -1
	var bestDist F
	for c := 0; c < kc; c++ {
		if c == self {
			continue
		}
		d := knnmath.SquaredDistance(centroids[self*l:(self+1)*l], centroids[c*l:(c+1)*l])
		if best == -1 || d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// remapAssignment shifts every assignment index greater than removed down
// by one, keeping assignment consistent with clusters after a deletion.
func remapAssignment(assignment []int32, removed int) {
	for i, c := range assignment {
		if int(c) > removed {
			assignment[i] = c - 1
		}
	}
}
