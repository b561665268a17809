package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/annknn/internal/annsearch"
	"github.com/therealutkarshpriyadarshi/annknn/internal/knnengine"
	"github.com/therealutkarshpriyadarshi/annknn/internal/sysinfo"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/search"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/tenant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func stringPtr(s string) *string { return &s }

// KnnExact implements the KnnExact RPC: exact K nearest neighbors of one
// query vector against the namespace's registered corpus.
func (s *Server) KnnExact(ctx context.Context, req *KnnExactRequest) (*KnnExactResponse, error) {
	start := time.Now()

	if req.Namespace == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	if len(req.Query) == 0 {
		return nil, status.Error(codes.InvalidArgument, "query is required")
	}
	if req.K <= 0 {
		return nil, status.Error(codes.InvalidArgument, "k must be > 0")
	}

	c := s.getOrCreateCorpus(req.Namespace)
	vectors, dim, n := c.tenantCorpus.Snapshot()

	if n == 0 {
		return nil, status.Error(codes.FailedPrecondition, "namespace has an empty corpus")
	}
	if len(req.Query) != dim {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("query dimension %d does not match corpus dimension %d", len(req.Query), dim))
	}

	var cacheKey search.CacheKey
	if c.cache != nil {
		cacheKey = search.GenerateQueryKey(req.Query, int(req.K), false)
		if cached, ok := c.cache.Get(cacheKey); ok {
			s.metrics.RecordCacheHit()
			return &KnnExactResponse{Indices: cached.Indices, Distances: cached.Distances}, nil
		}
		s.metrics.RecordCacheMiss()
	}

	workerCount := int(req.WorkerCount)
	if workerCount <= 0 {
		workerCount = s.config.Engine.DefaultWorkerCount
	}
	blasThreads := int(req.BlasThreads)
	if blasThreads <= 0 {
		blasThreads = s.config.Engine.DefaultBLASThreads
	}
	memRatio := req.MemRatio
	if memRatio <= 0 {
		memRatio = s.config.Engine.DefaultMemRatio
	}

	idx, dist, err := knnengine.Exact(req.Query, vectors, 1, n, dim, int(req.K), knnengine.Params{
		Sorted:      req.Sorted,
		WorkerCount: workerCount,
		BLASThreads: blasThreads,
		MemRatio:    memRatio,
		Logger:      s.logger,
	})
	if err != nil {
		s.metrics.RecordError("KnnExact", "engine")
		return nil, toGRPCError(err)
	}

	s.metrics.RecordKnnExact(time.Since(start), 1, n)
	s.metrics.RecordRequest("KnnExact", "ok", time.Since(start))

	result := &search.Result{Indices: idx, Distances: dist}
	if c.cache != nil {
		c.cache.Put(cacheKey, result)
	}

	return &KnnExactResponse{Indices: idx, Distances: dist}, nil
}

// BatchKnnExact implements the BatchKnnExact RPC: M queries resolved
// against the same corpus in one engine invocation.
func (s *Server) BatchKnnExact(ctx context.Context, req *BatchKnnExactRequest) (*BatchKnnExactResponse, error) {
	start := time.Now()

	if req.Namespace == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	if req.M <= 0 || req.K <= 0 {
		return nil, status.Error(codes.InvalidArgument, "m and k must be > 0")
	}

	c := s.getOrCreateCorpus(req.Namespace)
	vectors, dim, n := c.tenantCorpus.Snapshot()

	if n == 0 {
		return nil, status.Error(codes.FailedPrecondition, "namespace has an empty corpus")
	}
	if len(req.Queries) != int(req.M)*dim {
		return nil, status.Error(codes.InvalidArgument, "queries length does not match m*dim")
	}

	workerCount := int(req.WorkerCount)
	if workerCount <= 0 {
		workerCount = s.config.Engine.DefaultWorkerCount
	}
	blasThreads := int(req.BlasThreads)
	if blasThreads <= 0 {
		blasThreads = s.config.Engine.DefaultBLASThreads
	}
	memRatio := req.MemRatio
	if memRatio <= 0 {
		memRatio = s.config.Engine.DefaultMemRatio
	}

	idx, dist, err := knnengine.Exact(req.Queries, vectors, int(req.M), n, dim, int(req.K), knnengine.Params{
		Sorted:      req.Sorted,
		WorkerCount: workerCount,
		BLASThreads: blasThreads,
		MemRatio:    memRatio,
		Logger:      s.logger,
	})
	if err != nil {
		s.metrics.RecordError("BatchKnnExact", "engine")
		return nil, toGRPCError(err)
	}

	s.metrics.RecordKnnExact(time.Since(start), int(req.M), n)
	s.metrics.RecordRequest("BatchKnnExact", "ok", time.Since(start))

	return &BatchKnnExactResponse{Indices: idx, Distances: dist}, nil
}

// AnnAllToAll implements the AnnAllToAll RPC over the namespace's corpus.
func (s *Server) AnnAllToAll(ctx context.Context, req *AnnAllToAllRequest) (*AnnAllToAllResponse, error) {
	start := time.Now()

	if req.Namespace == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	if req.K <= 0 || req.Kc <= 0 {
		return nil, status.Error(codes.InvalidArgument, "k and kc must be > 0")
	}

	c := s.getOrCreateCorpus(req.Namespace)
	vectors, dim, n := c.tenantCorpus.Snapshot()

	if n == 0 {
		return nil, status.Error(codes.FailedPrecondition, "namespace has an empty corpus")
	}

	workerCount := int(req.WorkerCount)
	if workerCount <= 0 {
		workerCount = s.config.Engine.DefaultWorkerCount
	}
	memRatio := req.MemRatio
	if memRatio <= 0 {
		memRatio = s.config.Engine.DefaultMemRatio
	}
	backendName := req.Backend
	if backendName == "" {
		backendName = s.config.Engine.DefaultParallelBackend
	}

	idx, dist, err := annsearch.AllToAll(vectors, n, dim, int(req.K), annsearch.Params{
		NumClusters: int(req.Kc),
		WorkerCount: workerCount,
		MemRatio:    memRatio,
		Backend:     parseBackend(backendName),
		Logger:      s.logger,
	})
	if err != nil {
		s.metrics.RecordError("AnnAllToAll", "engine")
		return nil, toGRPCError(err)
	}

	s.metrics.RecordAnnAllToAll(time.Since(start), int(req.Kc), int(req.Kc), 0, nil)
	s.metrics.RecordRequest("AnnAllToAll", "ok", time.Since(start))

	return &AnnAllToAllResponse{Indices: idx, Distances: dist, N: int32(n), K: req.K}, nil
}

// AddVectors implements the AddVectors RPC: append vectors to a
// namespace's in-memory corpus.
func (s *Server) AddVectors(ctx context.Context, req *AddVectorsRequest) (*AddVectorsResponse, error) {
	if req.Namespace == "" {
		return nil, status.Error(codes.InvalidArgument, "namespace is required")
	}
	if req.Count <= 0 || req.Dim <= 0 {
		return nil, status.Error(codes.InvalidArgument, "count and dim must be > 0")
	}
	if len(req.Vectors) != int(req.Count)*int(req.Dim) {
		return &AddVectorsResponse{Success: false, Error: stringPtr("vectors length does not match count*dim")},
			status.Error(codes.InvalidArgument, "vectors length does not match count*dim")
	}

	t, err := s.tenants.GetTenant(req.Namespace)
	if err != nil {
		t, err = s.tenants.CreateTenant(req.Namespace, tenant.DefaultQuota())
		if err != nil {
			return &AddVectorsResponse{Success: false, Error: stringPtr(err.Error())}, status.Error(codes.Internal, err.Error())
		}
	}
	if err := t.CheckDimensionQuota(int(req.Dim)); err != nil {
		return &AddVectorsResponse{Success: false, Error: stringPtr(err.Error())}, status.Error(codes.ResourceExhausted, err.Error())
	}
	if err := t.CheckVectorQuota(int64(req.Count)); err != nil {
		return &AddVectorsResponse{Success: false, Error: stringPtr(err.Error())}, status.Error(codes.ResourceExhausted, err.Error())
	}

	c := s.getOrCreateCorpus(req.Namespace)
	if err := c.tenantCorpus.Append(req.Vectors, int(req.Dim)); err != nil {
		return &AddVectorsResponse{Success: false, Error: stringPtr(err.Error())},
			status.Error(codes.InvalidArgument, err.Error())
	}
	total := int64(c.tenantCorpus.Count())

	t.IncrementVectorCount(int64(req.Count))
	t.SetDimensions(int(req.Dim))

	return &AddVectorsResponse{Success: true, TotalCount: total}, nil
}

// Health implements the Health RPC.
func (s *Server) Health(ctx context.Context, req *HealthCheckRequest) (*HealthCheckResponse, error) {
	healthStatus := "healthy"
	details := make(map[string]string)

	s.shutdownMu.Lock()
	isShutdown := s.isShutdown
	s.shutdownMu.Unlock()

	if isShutdown {
		healthStatus = "unhealthy"
		details["reason"] = "server is shutting down"
	}

	s.corpusMu.RLock()
	details["namespaces"] = fmt.Sprintf("%d", len(s.corpora))
	s.corpusMu.RUnlock()
	details["cache_enabled"] = fmt.Sprintf("%v", s.config.Cache.Enabled)
	details["num_cpu"] = fmt.Sprintf("%d", sysinfo.NumCPU())

	return &HealthCheckResponse{
		Status:        healthStatus,
		Version:       "1.0.0",
		UptimeSeconds: int64(s.Uptime().Seconds()),
		Details:       details,
	}, nil
}

// GetStats implements the GetStats RPC.
func (s *Server) GetStats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	s.corpusMu.RLock()
	defer s.corpusMu.RUnlock()

	resp := &StatsResponse{
		UptimeSeconds:  s.Uptime().Seconds(),
		NamespaceCount: int32(len(s.corpora)),
		Namespaces:     make(map[string]*NamespaceStats),
	}

	for ns, c := range s.corpora {
		if req.Namespace != "" && req.Namespace != ns {
			continue
		}
		stat := &NamespaceStats{
			CorpusSize: int64(c.tenantCorpus.Count()),
			Dimensions: int32(c.tenantCorpus.Dim()),
		}
		if c.cache != nil {
			cs := c.cache.Stats()
			stat.CacheHits = cs.Hits
			stat.CacheMisses = cs.Misses
			stat.CacheHitRate = cs.HitRate
		}
		resp.Namespaces[ns] = stat
	}

	return resp, nil
}

func toGRPCError(err error) error {
	if engErr, ok := err.(*knnengine.Error); ok {
		switch engErr.Status {
		case knnengine.StatusInvalidArgument:
			return status.Error(codes.InvalidArgument, err.Error())
		case knnengine.StatusResourceExhausted:
			return status.Error(codes.ResourceExhausted, err.Error())
		default:
			return status.Error(codes.Internal, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}
