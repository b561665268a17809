package ivf

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/therealutkarshpriyadarshi/annknn/internal/kmeans"
	"github.com/therealutkarshpriyadarshi/annknn/internal/knnengine"
	"github.com/therealutkarshpriyadarshi/annknn/internal/quantization"
)

// IVFPQ implements Inverted File index with Product Quantization
// This combines the benefits of IVF (fast search) with PQ (high compression)
//
// Achieves:
// - 32-256x compression ratios
// - Fast search (only probe a few regions)
// - Good recall with asymmetric distance computation
//
// This is one of the most popular production vector index types!
type IVFPQ struct {
	numCentroids  int                            // Number of clusters (nlist)
	centroids     [][]float32                    // Cluster centroids
	invertedLists [][]IVFPQEntry                 // Compressed entries
	pq            *quantization.ProductQuantizer // Product quantizer
	dim           int                             // Vector dimension
	metric        quantization.DistanceMetric
	mu            sync.RWMutex
	trained       bool
	pqTrained     bool
	// rerankFactor*k candidates in total, across all probed lists, are
	// pulled by approximate PQ distance before the exact re-ranking pass
	// narrows them to k.
	rerankFactor int
}

// IVFPQEntry represents a compressed entry in an inverted list
type IVFPQEntry struct {
	ID       int                    // Vector ID
	Code     []byte                 // PQ code
	Metadata map[string]interface{} // Metadata for filtering
}

// ConfigPQ holds IVF-PQ configuration
type ConfigPQ struct {
	NumCentroids  int // Number of IVF clusters
	NumSubvectors int // PQ parameter
	BitsPerCode   int // PQ parameter
	Metric        quantization.DistanceMetric
	TrainConfig   *quantization.QuantizationConfig
	// RerankFactor controls how many approximate candidates survive into
	// the exact re-ranking pass, as a multiple of k. 0 selects a default
	// of 4.
	RerankFactor int
}

// NewIVFPQ creates a new IVF-PQ index
func NewIVFPQ(config ConfigPQ) *IVFPQ {
	if config.TrainConfig == nil {
		config.TrainConfig = quantization.DefaultConfig()
	}
	rerank := config.RerankFactor
	if rerank < 1 {
		rerank = 4
	}

	return &IVFPQ{
		numCentroids:  config.NumCentroids,
		metric:        config.Metric,
		invertedLists: make([][]IVFPQEntry, config.NumCentroids),
		pq:            quantization.NewProductQuantizerWithConfig(config.NumSubvectors, config.BitsPerCode, config.TrainConfig),
		rerankFactor:  rerank,
	}
}

// Train trains both the IVF clustering and the PQ quantizer
func (ivfpq *IVFPQ) Train(vectors [][]float32) error {
	ivfpq.mu.Lock()
	defer ivfpq.mu.Unlock()

	if len(vectors) == 0 {
		return fmt.Errorf("no training data provided")
	}

	ivfpq.dim = len(vectors[0])

	// Step 1: Train IVF clustering via the core's cold-start k-means.
	flat := flatten(vectors)
	result, err := kmeans.Run[float32](flat, len(vectors), ivfpq.dim, kmeans.Config{
		NumClusters:    ivfpq.numCentroids,
		MinClusterSize: 1,
		WorkerCount:    1,
		BLASThreads:    1,
		MemRatio:       0.25,
		Rand:           rand.New(rand.NewSource(0)),
	})
	if err != nil {
		return fmt.Errorf("IVF clustering failed: %w", err)
	}

	ivfpq.centroids = result.Centroids
	ivfpq.numCentroids = len(result.Centroids)
	ivfpq.invertedLists = make([][]IVFPQEntry, ivfpq.numCentroids)
	ivfpq.trained = true

	// Step 2: Compute residuals (vector - nearest centroid). Product
	// Quantization is trained on residuals for better accuracy.
	residuals := make([][]float32, len(vectors))

	for i, vec := range vectors {
		nearestCentroidIdx, err := ivfpq.findNearestCentroid(vec)
		if err != nil {
			return fmt.Errorf("assigning training vector %d: %w", i, err)
		}
		nearestCentroid := ivfpq.centroids[nearestCentroidIdx]

		residual := make([]float32, ivfpq.dim)
		for d := 0; d < ivfpq.dim; d++ {
			residual[d] = vec[d] - nearestCentroid[d]
		}
		residuals[i] = residual
	}

	// Step 3: Train Product Quantizer on residuals
	if err := ivfpq.pq.Train(residuals); err != nil {
		return fmt.Errorf("PQ training failed: %w", err)
	}

	ivfpq.pqTrained = true
	return nil
}

// Add adds vectors to the index (compresses them with PQ)
func (ivfpq *IVFPQ) Add(vectors [][]float32, ids []int, metadata []map[string]interface{}) error {
	ivfpq.mu.Lock()
	defer ivfpq.mu.Unlock()

	if !ivfpq.trained || !ivfpq.pqTrained {
		return fmt.Errorf("index not trained, call Train() first")
	}

	if len(vectors) != len(ids) {
		return fmt.Errorf("vectors and ids length mismatch")
	}

	for i, vec := range vectors {
		if len(vec) != ivfpq.dim {
			return fmt.Errorf("vector dimension mismatch")
		}

		centroidIdx, err := ivfpq.findNearestCentroid(vec)
		if err != nil {
			return fmt.Errorf("assigning vector %d: %w", ids[i], err)
		}
		nearestCentroid := ivfpq.centroids[centroidIdx]

		residual := make([]float32, ivfpq.dim)
		for d := 0; d < ivfpq.dim; d++ {
			residual[d] = vec[d] - nearestCentroid[d]
		}

		code := ivfpq.pq.Encode(residual)

		entry := IVFPQEntry{
			ID:   ids[i],
			Code: code,
		}
		if metadata != nil && i < len(metadata) {
			entry.Metadata = metadata[i]
		}

		ivfpq.invertedLists[centroidIdx] = append(ivfpq.invertedLists[centroidIdx], entry)
	}

	return nil
}

// Search performs approximate nearest neighbor search
func (ivfpq *IVFPQ) Search(query []float32, k int, nprobe int) ([]int, []float32, error) {
	ivfpq.mu.RLock()
	defer ivfpq.mu.RUnlock()

	if !ivfpq.trained {
		return nil, nil, fmt.Errorf("index not trained")
	}

	if len(query) != ivfpq.dim {
		return nil, nil, fmt.Errorf("query dimension mismatch")
	}

	centroidIDs, err := ivfpq.findNearestCentroids(query, nprobe)
	if err != nil {
		return nil, nil, err
	}

	candidates := ivfpq.scoreApprox(query, centroidIDs, nil, k*ivfpq.rerankFactor)
	return ivfpq.rerank(query, candidates, k)
}

// SearchWithFilter performs filtered search
func (ivfpq *IVFPQ) SearchWithFilter(query []float32, k int, nprobe int, filter func(map[string]interface{}) bool) ([]int, []float32, error) {
	ivfpq.mu.RLock()
	defer ivfpq.mu.RUnlock()

	if !ivfpq.trained {
		return nil, nil, fmt.Errorf("index not trained")
	}

	centroidIDs, err := ivfpq.findNearestCentroids(query, nprobe)
	if err != nil {
		return nil, nil, err
	}

	candidates := ivfpq.scoreApprox(query, centroidIDs, filter, k*ivfpq.rerankFactor)
	return ivfpq.rerank(query, candidates, k)
}

type approxCandidate struct {
	id       int
	code     []byte
	centroid int
}

// scoreApprox computes the PQ asymmetric distance for every candidate in
// the probed lists and keeps the best `keep` of them, using the residual
// against each candidate's own centroid.
func (ivfpq *IVFPQ) scoreApprox(query []float32, centroidIDs []int, filter func(map[string]interface{}) bool, keep int) []approxCandidate {
	type scored struct {
		approxCandidate
		dist float32
	}
	var scoredList []scored

	for _, centroidID := range centroidIDs {
		centroid := ivfpq.centroids[centroidID]
		queryResidual := make([]float32, ivfpq.dim)
		for d := 0; d < ivfpq.dim; d++ {
			queryResidual[d] = query[d] - centroid[d]
		}
		distTable := ivfpq.pq.ComputeDistanceTable(queryResidual)

		for _, entry := range ivfpq.invertedLists[centroidID] {
			if filter != nil && !filter(entry.Metadata) {
				continue
			}
			dist := ivfpq.pq.AsymmetricDistance(distTable, entry.Code)
			scoredList = append(scoredList, scored{approxCandidate{entry.ID, entry.Code, centroidID}, dist})
		}
	}

	sort.Slice(scoredList, func(i, j int) bool { return scoredList[i].dist < scoredList[j].dist })
	if keep > 0 && len(scoredList) > keep {
		scoredList = scoredList[:keep]
	}

	out := make([]approxCandidate, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.approxCandidate
	}
	return out
}

// rerank reconstructs each surviving candidate as its decoded PQ residual
// plus its list's centroid and re-scores the reconstructions exactly through
// internal/knnengine, instead of trusting the quantized asymmetric distance
// all the way down to k.
func (ivfpq *IVFPQ) rerank(query []float32, candidates []approxCandidate, k int) ([]int, []float32, error) {
	if len(candidates) == 0 {
		return nil, nil, nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	decoded := make([]float32, len(candidates)*ivfpq.dim)
	for i, c := range candidates {
		row := decoded[i*ivfpq.dim : (i+1)*ivfpq.dim]
		copy(row, ivfpq.pq.Decode(c.code))
		for d, v := range ivfpq.centroids[c.centroid] {
			row[d] += v
		}
	}

	localIdx, dist, err := knnengine.Exact(query, decoded, 1, len(candidates), ivfpq.dim, k, knnengine.Params{
		Sorted:      true,
		WorkerCount: 1,
		BLASThreads: 1,
		MemRatio:    0.5,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("re-ranking PQ candidates: %w", err)
	}

	ids := make([]int, k)
	distances := make([]float32, k)
	for i := 0; i < k; i++ {
		ids[i] = candidates[localIdx[i]].id
		distances[i] = dist[i]
	}
	return ids, distances, nil
}

// findNearestCentroid finds the nearest centroid for a vector via the exact
// kNN engine (K=1 against the centroid set).
func (ivfpq *IVFPQ) findNearestCentroid(vec []float32) (int, error) {
	ids, err := ivfpq.findNearestCentroids(vec, 1)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// findNearestCentroids finds the nprobe nearest centroids
func (ivfpq *IVFPQ) findNearestCentroids(vec []float32, nprobe int) ([]int, error) {
	if nprobe > len(ivfpq.centroids) {
		nprobe = len(ivfpq.centroids)
	}
	flat := flatten(ivfpq.centroids)

	idx, _, err := knnengine.Exact(vec, flat, 1, len(ivfpq.centroids), ivfpq.dim, nprobe, knnengine.Params{
		Sorted:      true,
		WorkerCount: 1,
		BLASThreads: 1,
		MemRatio:    0.5,
	})
	if err != nil {
		return nil, fmt.Errorf("probing centroids: %w", err)
	}

	result := make([]int, nprobe)
	for i, v := range idx {
		result[i] = int(v)
	}
	return result, nil
}

// GetStats returns index statistics
func (ivfpq *IVFPQ) GetStats() map[string]interface{} {
	ivfpq.mu.RLock()
	defer ivfpq.mu.RUnlock()

	stats := make(map[string]interface{})
	stats["num_centroids"] = ivfpq.numCentroids
	stats["dimension"] = ivfpq.dim
	stats["trained"] = ivfpq.trained

	// Count total entries
	totalEntries := 0
	for _, list := range ivfpq.invertedLists {
		totalEntries += len(list)
	}

	stats["total_entries"] = totalEntries
	stats["compression_ratio"] = ivfpq.pq.GetCompressionRatio(ivfpq.dim)

	codebookBytes, perVectorBytes := ivfpq.pq.GetMemoryUsage()
	stats["codebook_bytes"] = codebookBytes
	stats["per_vector_bytes"] = perVectorBytes

	return stats
}

// GetMemoryUsage returns memory usage in bytes
func (ivfpq *IVFPQ) GetMemoryUsage() int64 {
	ivfpq.mu.RLock()
	defer ivfpq.mu.RUnlock()

	var total int64

	// Centroids
	total += int64(ivfpq.numCentroids * ivfpq.dim * 4)

	// PQ codebooks
	codebookBytes, _ := ivfpq.pq.GetMemoryUsage()
	total += int64(codebookBytes)

	// Compressed vectors
	totalEntries := 0
	for _, list := range ivfpq.invertedLists {
		totalEntries += len(list)
	}
	_, perVectorBytes := ivfpq.pq.GetMemoryUsage()
	total += int64(totalEntries * perVectorBytes)

	return total
}
