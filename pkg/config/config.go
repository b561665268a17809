package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all process configuration
type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Cache    CacheConfig
	Database DatabaseConfig
	REST     RESTConfig
}

// ServerConfig holds gRPC server configuration
type ServerConfig struct {
	Host            string        // Server host (default: "0.0.0.0")
	Port            int           // Server port (default: 50051)
	MaxConnections  int           // Max concurrent connections
	RequestTimeout  time.Duration // Request timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	EnableTLS       bool          // Enable TLS
	CertFile        string        // TLS certificate file
	KeyFile         string        // TLS key file
}

// EngineConfig holds defaults for the kNN/ANN compute core
type EngineConfig struct {
	DefaultWorkerCount     int     // Goroutine worker count for a single engine call (default: 4)
	DefaultBLASThreads     int     // BLAS thread count for the float64 Gram-matrix path
	DefaultMemRatio        float64 // Fraction of free host memory a query block may occupy (0,1]
	DefaultParallelBackend string  // "native_threads" | "structured_loop" | "work_stealing"
	Dimensions             int     // Expected vector dimensionality (default: 768)
}

// CacheConfig holds query cache configuration
type CacheConfig struct {
	Enabled  bool          // Enable query caching
	Capacity int           // Max cache entries
	TTL      time.Duration // Time to live for cache entries
}

// DatabaseConfig holds storage configuration
type DatabaseConfig struct {
	DataDir       string // Data directory path
	EnableWAL     bool   // Enable write-ahead log
	SyncWrites    bool   // Sync writes to disk
	MaxNamespaces int    // Max number of tenant namespaces
}

// RESTConfig holds the optional REST gateway configuration. The gateway
// dials the gRPC engine and re-exposes knn_exact/ann_all_to_all/add_vectors
// over HTTP+JSON.
type RESTConfig struct {
	Enabled bool
	Host    string
	Port    int

	CORSEnabled bool
	CORSOrigins []string

	AuthEnabled bool
	JWTSecret   string
	PublicPaths []string
	AdminPaths  []string

	RateLimitEnabled bool
	RateLimitPerSec  float64
	RateLimitBurst   int
	RateLimitPerIP   bool
	RateLimitPerUser bool
	RateLimitPerTenant bool
	RateLimitGlobal  bool
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            50051,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
		},
		Engine: EngineConfig{
			DefaultWorkerCount:     4,
			DefaultBLASThreads:     4,
			DefaultMemRatio:        0.25,
			DefaultParallelBackend: "native_threads",
			Dimensions:             768,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
		Database: DatabaseConfig{
			DataDir:       "./data",
			EnableWAL:     true,
			SyncWrites:    false,
			MaxNamespaces: 100,
		},
		REST: RESTConfig{
			Enabled:          true,
			Host:             "0.0.0.0",
			Port:             8080,
			CORSEnabled:      true,
			CORSOrigins:      []string{"*"},
			AuthEnabled:      false,
			PublicPaths:      []string{"/v1/health", "/docs", "/docs/openapi.yaml"},
			AdminPaths:       []string{},
			RateLimitEnabled:   true,
			RateLimitPerSec:    100,
			RateLimitBurst:     200,
			RateLimitPerIP:     true,
			RateLimitPerUser:   false,
			RateLimitPerTenant: false,
			RateLimitGlobal:    false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	cfg := Default()

	// Server configuration
	if host := os.Getenv("ANNKNN_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("ANNKNN_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if maxConn := os.Getenv("ANNKNN_MAX_CONNECTIONS"); maxConn != "" {
		if mc, err := strconv.Atoi(maxConn); err == nil {
			cfg.Server.MaxConnections = mc
		}
	}
	if timeout := os.Getenv("ANNKNN_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if enableTLS := os.Getenv("ANNKNN_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("ANNKNN_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("ANNKNN_TLS_KEY")
	}

	// Engine configuration
	if wc := os.Getenv("ANNKNN_WORKER_COUNT"); wc != "" {
		if w, err := strconv.Atoi(wc); err == nil {
			cfg.Engine.DefaultWorkerCount = w
		}
	}
	if bt := os.Getenv("ANNKNN_BLAS_THREADS"); bt != "" {
		if b, err := strconv.Atoi(bt); err == nil {
			cfg.Engine.DefaultBLASThreads = b
		}
	}
	if mr := os.Getenv("ANNKNN_MEM_RATIO"); mr != "" {
		if m, err := strconv.ParseFloat(mr, 64); err == nil {
			cfg.Engine.DefaultMemRatio = m
		}
	}
	if backend := os.Getenv("ANNKNN_PARALLEL_BACKEND"); backend != "" {
		cfg.Engine.DefaultParallelBackend = backend
	}
	if dims := os.Getenv("ANNKNN_DIMENSIONS"); dims != "" {
		if d, err := strconv.Atoi(dims); err == nil {
			cfg.Engine.Dimensions = d
		}
	}

	// Cache configuration
	if cacheEnabled := os.Getenv("ANNKNN_CACHE_ENABLED"); cacheEnabled == "false" {
		cfg.Cache.Enabled = false
	}
	if capacity := os.Getenv("ANNKNN_CACHE_CAPACITY"); capacity != "" {
		if c, err := strconv.Atoi(capacity); err == nil {
			cfg.Cache.Capacity = c
		}
	}
	if ttl := os.Getenv("ANNKNN_CACHE_TTL"); ttl != "" {
		if t, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = t
		}
	}

	// Database configuration
	if dataDir := os.Getenv("ANNKNN_DATA_DIR"); dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	if wal := os.Getenv("ANNKNN_ENABLE_WAL"); wal == "false" {
		cfg.Database.EnableWAL = false
	}
	if sync := os.Getenv("ANNKNN_SYNC_WRITES"); sync == "true" {
		cfg.Database.SyncWrites = true
	}

	// REST gateway configuration
	if enabled := os.Getenv("ANNKNN_REST_ENABLED"); enabled == "false" {
		cfg.REST.Enabled = false
	}
	if host := os.Getenv("ANNKNN_REST_HOST"); host != "" {
		cfg.REST.Host = host
	}
	if port := os.Getenv("ANNKNN_REST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.REST.Port = p
		}
	}
	if cors := os.Getenv("ANNKNN_REST_CORS_ENABLED"); cors == "false" {
		cfg.REST.CORSEnabled = false
	}
	if authEnabled := os.Getenv("ANNKNN_REST_AUTH_ENABLED"); authEnabled == "true" {
		cfg.REST.AuthEnabled = true
		cfg.REST.JWTSecret = os.Getenv("ANNKNN_REST_JWT_SECRET")
	}
	if rl := os.Getenv("ANNKNN_REST_RATE_LIMIT_ENABLED"); rl == "false" {
		cfg.REST.RateLimitEnabled = false
	}
	if rps := os.Getenv("ANNKNN_REST_RATE_LIMIT_PER_SEC"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.REST.RateLimitPerSec = r
		}
	}
	if burst := os.Getenv("ANNKNN_REST_RATE_LIMIT_BURST"); burst != "" {
		if b, err := strconv.Atoi(burst); err == nil {
			cfg.REST.RateLimitBurst = b
		}
	}
	if perTenant := os.Getenv("ANNKNN_REST_RATE_LIMIT_PER_TENANT"); perTenant == "true" {
		cfg.REST.RateLimitPerTenant = true
	}
	if global := os.Getenv("ANNKNN_REST_RATE_LIMIT_GLOBAL"); global == "true" {
		cfg.REST.RateLimitGlobal = true
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}

	// Engine validation
	if c.Engine.DefaultWorkerCount < 1 {
		return fmt.Errorf("invalid worker count: %d (must be > 0)", c.Engine.DefaultWorkerCount)
	}
	if c.Engine.DefaultBLASThreads < 1 {
		return fmt.Errorf("invalid BLAS thread count: %d (must be > 0)", c.Engine.DefaultBLASThreads)
	}
	if c.Engine.DefaultMemRatio <= 0 || c.Engine.DefaultMemRatio > 1 {
		return fmt.Errorf("invalid mem ratio: %g (must be in (0, 1])", c.Engine.DefaultMemRatio)
	}
	switch c.Engine.DefaultParallelBackend {
	case "native_threads", "structured_loop", "work_stealing":
	default:
		return fmt.Errorf("invalid parallel backend: %q (want native_threads, structured_loop, or work_stealing)", c.Engine.DefaultParallelBackend)
	}
	if c.Engine.Dimensions < 1 {
		return fmt.Errorf("invalid dimensions: %d (must be > 0)", c.Engine.Dimensions)
	}

	// Cache validation
	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	// Database validation
	if c.Database.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}

	// REST validation
	if c.REST.Enabled {
		if c.REST.Port < 1 || c.REST.Port > 65535 {
			return fmt.Errorf("invalid REST port: %d (must be 1-65535)", c.REST.Port)
		}
		if c.REST.AuthEnabled && c.REST.JWTSecret == "" {
			return fmt.Errorf("REST auth enabled but JWT secret not specified")
		}
	}

	return nil
}

// Address returns the server address (host:port)
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
