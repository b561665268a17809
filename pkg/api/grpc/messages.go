package grpc

// This package has no generated protobuf stubs: there is no .proto/protoc
// step behind it, so the wire messages are plain Go structs marshaled by
// jsonCodec (codec.go) and dispatched through a hand-built grpc.ServiceDesc
// (service.go) instead of protoc-gen-go-grpc output.

// KnnExactRequest requests the K nearest neighbors of Query against a
// namespace's registered corpus.
type KnnExactRequest struct {
	Namespace   string    `json:"namespace"`
	Query       []float64 `json:"query"`
	K           int32     `json:"k"`
	Sorted      bool      `json:"sorted"`
	WorkerCount int32     `json:"worker_count,omitempty"`
	BlasThreads int32     `json:"blas_threads,omitempty"`
	MemRatio    float64   `json:"mem_ratio,omitempty"`
}

// KnnExactResponse carries K indices and distances, row-major if the
// caller ever batches (this RPC is single-query; see BatchKnnExact).
type KnnExactResponse struct {
	Indices   []int32   `json:"indices"`
	Distances []float64 `json:"distances"`
	Error     *string   `json:"error,omitempty"`
}

// BatchKnnExactRequest runs knn_exact for M queries against the same
// namespace corpus in one call, amortizing corpus norm precomputation.
type BatchKnnExactRequest struct {
	Namespace   string    `json:"namespace"`
	Queries     []float64 `json:"queries"` // M*L, row-major
	M           int32     `json:"m"`
	K           int32     `json:"k"`
	Sorted      bool      `json:"sorted"`
	WorkerCount int32     `json:"worker_count,omitempty"`
	BlasThreads int32     `json:"blas_threads,omitempty"`
	MemRatio    float64   `json:"mem_ratio,omitempty"`
}

// BatchKnnExactResponse carries M*K indices/distances, row-major.
type BatchKnnExactResponse struct {
	Indices   []int32   `json:"indices"`
	Distances []float64 `json:"distances"`
	Error     *string   `json:"error,omitempty"`
}

// AnnAllToAllRequest requests approximate all-pairs K nearest neighbors
// over a namespace's registered corpus.
type AnnAllToAllRequest struct {
	Namespace   string  `json:"namespace"`
	K           int32   `json:"k"`
	Kc          int32   `json:"kc"`
	WorkerCount int32   `json:"worker_count,omitempty"`
	MemRatio    float64 `json:"mem_ratio,omitempty"`
	Backend     string  `json:"backend,omitempty"` // "native_threads" | "structured_loop" | "work_stealing"
}

// AnnAllToAllResponse carries N*K indices/distances, row-major, one row
// per corpus point.
type AnnAllToAllResponse struct {
	Indices   []int32   `json:"indices"`
	Distances []float64 `json:"distances"`
	N         int32     `json:"n"`
	K         int32     `json:"k"`
	Error     *string   `json:"error,omitempty"`
}

// AddVectorsRequest appends vectors to a namespace's corpus. The corpus
// grows monotonically within a namespace; there is no in-place update or
// delete (per spec.md's in-memory, batch-oriented contract).
type AddVectorsRequest struct {
	Namespace string    `json:"namespace"`
	Vectors   []float64 `json:"vectors"` // count*dim, row-major
	Count     int32     `json:"count"`
	Dim       int32     `json:"dim"`
}

// AddVectorsResponse reports the namespace's corpus size after the append.
type AddVectorsResponse struct {
	Success    bool    `json:"success"`
	TotalCount int64   `json:"total_count"`
	Error      *string `json:"error,omitempty"`
}

// HealthCheckRequest takes no parameters.
type HealthCheckRequest struct{}

// HealthCheckResponse reports liveness and basic diagnostics.
type HealthCheckResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Details       map[string]string `json:"details,omitempty"`
}

// StatsRequest asks for namespace statistics; empty Namespace means all.
type StatsRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// NamespaceStats reports one namespace's corpus shape and cache behavior.
type NamespaceStats struct {
	CorpusSize   int64   `json:"corpus_size"`
	Dimensions   int32   `json:"dimensions"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// StatsResponse aggregates process and per-namespace statistics.
type StatsResponse struct {
	UptimeSeconds  float64                    `json:"uptime_seconds"`
	NamespaceCount int32                      `json:"namespace_count"`
	Namespaces     map[string]*NamespaceStats `json:"namespaces"`
}
