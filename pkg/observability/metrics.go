package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

// Metrics holds all Prometheus metrics for the kNN/ANN core and the API
// surface in front of it.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestErrors   *prometheus.CounterVec

	// Exact-engine metrics
	KnnExactTotal    prometheus.Counter
	KnnExactDuration prometheus.Histogram
	KnnExactBlocks   prometheus.Histogram
	KnnBlockSize     prometheus.Histogram

	// ANN orchestrator metrics
	AnnAllToAllTotal    prometheus.Counter
	AnnAllToAllDuration prometheus.Histogram
	ClustersRequested   prometheus.Histogram
	ClustersSurviving   prometheus.Histogram
	ClustersMergedTotal prometheus.Counter
	ClusterSize         prometheus.Histogram

	// Accuracy metrics
	SearchRecall prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheSize   prometheus.Gauge

	// Tenant metrics
	TenantsTotal     prometheus.Gauge
	TenantQuotaUsage *prometheus.GaugeVec

	// System metrics
	GoroutinesCount prometheus.Gauge
	MemoryUsage     prometheus.Gauge
	CPUUsage        prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		// Request metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annknn_requests_total",
				Help: "Total number of requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "annknn_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),
		RequestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "annknn_request_errors_total",
				Help: "Total number of request errors by method and error type",
			},
			[]string{"method", "error_type"},
		),

		// Exact-engine metrics
		KnnExactTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "annknn_knn_exact_total",
				Help: "Total number of knn_exact calls",
			},
		),
		KnnExactDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_knn_exact_duration_seconds",
				Help:    "knn_exact call duration in seconds",
				Buckets: []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		KnnExactBlocks: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_knn_exact_blocks",
				Help:    "Number of query blocks processed by a knn_exact call",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
			},
		),
		KnnBlockSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_knn_block_size",
				Help:    "Chosen query block size B",
				Buckets: prometheus.ExponentialBuckets(1, 2, 20),
			},
		),

		// ANN orchestrator metrics
		AnnAllToAllTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "annknn_ann_all_to_all_total",
				Help: "Total number of ann_all_to_all calls",
			},
		),
		AnnAllToAllDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_ann_all_to_all_duration_seconds",
				Help:    "ann_all_to_all call duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ClustersRequested: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_clusters_requested",
				Help:    "Requested cluster count (Kc) per ann_all_to_all call",
				Buckets: prometheus.ExponentialBuckets(1, 2, 16),
			},
		),
		ClustersSurviving: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_clusters_surviving",
				Help:    "Surviving cluster count after the merge-until-viable pass",
				Buckets: prometheus.ExponentialBuckets(1, 2, 16),
			},
		),
		ClustersMergedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "annknn_clusters_merged_total",
				Help: "Total number of clusters absorbed by the merge-until-viable pass",
			},
		),
		ClusterSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_cluster_size",
				Help:    "Size of each surviving cluster",
				Buckets: prometheus.ExponentialBuckets(1, 2, 20),
			},
		),

		// Accuracy metrics
		SearchRecall: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "annknn_search_recall",
				Help:    "ANN recall against the exact result, when measured",
				Buckets: []float64{.5, .6, .7, .8, .85, .9, .92, .94, .95, .96, .97, .98, .99, 1.0},
			},
		),

		// Cache metrics
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "annknn_cache_hits_total",
				Help: "Total number of query-result cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "annknn_cache_misses_total",
				Help: "Total number of query-result cache misses",
			},
		),
		CacheSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "annknn_cache_size",
				Help: "Current number of entries in the query-result cache",
			},
		),

		// Tenant metrics
		TenantsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "annknn_tenants_total",
				Help: "Total number of active tenants",
			},
		),
		TenantQuotaUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "annknn_tenant_quota_usage",
				Help: "Tenant quota usage percentage by tenant and resource",
			},
			[]string{"tenant", "resource"},
		),

		// System metrics
		GoroutinesCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "annknn_goroutines",
				Help: "Current number of goroutines",
			},
		),
		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "annknn_memory_bytes",
				Help: "Memory usage in bytes",
			},
		),
		CPUUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "annknn_cpu_usage",
				Help: "CPU usage percentage",
			},
		),
	}

	return m
}

// RecordRequest records a request with duration and status
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordError records an error
func (m *Metrics) RecordError(method, errorType string) {
	m.RequestErrors.WithLabelValues(method, errorType).Inc()
}

// RecordKnnExact records one knn_exact call: its duration, how many memory
// blocks it took, and the block size chosen for it.
func (m *Metrics) RecordKnnExact(duration time.Duration, blocks, blockSize int) {
	m.KnnExactTotal.Inc()
	m.KnnExactDuration.Observe(duration.Seconds())
	m.KnnExactBlocks.Observe(float64(blocks))
	m.KnnBlockSize.Observe(float64(blockSize))
}

// RecordAnnAllToAll records one ann_all_to_all call and the cluster shape it
// produced: requested vs. surviving cluster counts, how many clusters the
// merge-until-viable pass absorbed, and the size of each survivor.
func (m *Metrics) RecordAnnAllToAll(duration time.Duration, requested, surviving, merged int, clusterSizes []int) {
	m.AnnAllToAllTotal.Inc()
	m.AnnAllToAllDuration.Observe(duration.Seconds())
	m.ClustersRequested.Observe(float64(requested))
	m.ClustersSurviving.Observe(float64(surviving))
	m.ClustersMergedTotal.Add(float64(merged))
	for _, s := range clusterSizes {
		m.ClusterSize.Observe(float64(s))
	}
}

// RecordRecall records a recall observation against a ground-truth exact run.
func (m *Metrics) RecordRecall(recall float64) {
	m.SearchRecall.Observe(recall)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// UpdateTenantCount updates the total tenant count
func (m *Metrics) UpdateTenantCount(count int) {
	m.TenantsTotal.Set(float64(count))
}

// UpdateTenantQuota updates tenant quota usage
func (m *Metrics) UpdateTenantQuota(tenant, resource string, usage float64) {
	m.TenantQuotaUsage.WithLabelValues(tenant, resource).Set(usage)
}

// UpdateGoroutineCount updates goroutine count
func (m *Metrics) UpdateGoroutineCount(count int) {
	m.GoroutinesCount.Set(float64(count))
}

// UpdateMemoryUsage updates memory usage
func (m *Metrics) UpdateMemoryUsage(bytes uint64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateCPUUsage updates CPU usage
func (m *Metrics) UpdateCPUUsage(percentage float64) {
	m.CPUUsage.Set(percentage)
}

// UpdateCacheSize updates cache size
func (m *Metrics) UpdateCacheSize(size int) {
	m.CacheSize.Set(float64(size))
}

// GetCacheHitRate returns the cache hit rate. Prometheus counters aren't
// locally readable without the client's internal metric family dump, so this
// is left as a placeholder the way the teacher's implementation was; actual
// hit-rate tracking belongs in dashboards querying the exported counters.
func (m *Metrics) GetCacheHitRate() float64 {
	return 0.0
}
