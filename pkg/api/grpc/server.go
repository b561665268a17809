package grpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/annknn/internal/annsearch"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/config"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/observability"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/search"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/tenant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// corpus pairs a tenant's storage with the query cache fronting it. The
// storage itself (vectors, dim) lives on tenant.Tenant.Corpus; this type
// adds nothing a tenant doesn't already own except the per-namespace
// cache, which is a transport-layer concern the tenant package has no
// reason to know about.
type corpus struct {
	tenantCorpus *annsearch.Corpus
	cache        *search.QueryCache
}

// Server implements EngineServer over the engine core.
type Server struct {
	config     *config.Config
	grpcServer *grpc.Server
	listener   net.Listener
	startTime  time.Time
	shutdownMu sync.Mutex
	isShutdown bool

	tenants  *tenant.Manager
	metrics  *observability.Metrics
	logger   *observability.Logger
	corpora  map[string]*corpus
	corpusMu sync.RWMutex
}

// NewServer creates a new gRPC server
func NewServer(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	s := &Server{
		config:    cfg,
		startTime: time.Now(),
		tenants:   tenant.NewManager(),
		metrics:   observability.NewMetrics(),
		logger:    observability.GetGlobalLogger(),
		corpora:   make(map[string]*corpus),
	}

	if _, err := s.tenants.CreateTenant("default", tenant.DefaultQuota()); err != nil {
		return nil, fmt.Errorf("failed to initialize default namespace: %w", err)
	}
	s.getOrCreateCorpus("default")

	return s, nil
}

// getOrCreateCorpus returns the corpus wrapper for a namespace, registering
// the tenant (and its corpus) the first time the namespace is seen.
func (s *Server) getOrCreateCorpus(namespace string) *corpus {
	s.corpusMu.Lock()
	defer s.corpusMu.Unlock()

	if c, ok := s.corpora[namespace]; ok {
		return c
	}

	t, err := s.tenants.GetTenant(namespace)
	if err != nil {
		t, err = s.tenants.CreateTenant(namespace, tenant.DefaultQuota())
		if err != nil {
			// Lost a race with another caller creating the same tenant;
			// it exists now under the lock tenants.Manager holds internally.
			t, _ = s.tenants.GetTenant(namespace)
		}
	}

	var cache *search.QueryCache
	if s.config.Cache.Enabled {
		cache = search.NewQueryCache(s.config.Cache.Capacity, s.config.Cache.TTL)
	}
	c := &corpus{tenantCorpus: t.Corpus, cache: cache}
	s.corpora[namespace] = c
	return c
}

func parseBackend(name string) annsearch.Backend {
	switch name {
	case "structured_loop":
		return annsearch.StructuredLoop
	case "work_stealing":
		return annsearch.WorkStealing
	default:
		return annsearch.NativeThreads
	}
}

// Start starts the gRPC server
func (s *Server) Start() error {
	var opts []grpc.ServerOption

	if s.config.Server.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.config.Server.CertFile, s.config.Server.KeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificates: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
		creds := credentials.NewTLS(tlsConfig)
		opts = append(opts, grpc.Creds(creds))
		s.logger.Info("TLS enabled")
	}

	kaParams := keepalive.ServerParameters{
		MaxConnectionIdle: 15 * time.Second,
		MaxConnectionAge:  30 * time.Second,
		Time:              5 * time.Second,
		Timeout:           1 * time.Second,
	}
	opts = append(opts, grpc.KeepaliveParams(kaParams))
	opts = append(opts, grpc.MaxConcurrentStreams(uint32(s.config.Server.MaxConnections)))
	opts = append(opts, grpc.ForceServerCodec(jsonCodec{}))

	s.grpcServer = grpc.NewServer(opts...)
	RegisterEngineServer(s.grpcServer, s)
	reflection.Register(s.grpcServer)

	addr := s.config.Server.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Info(fmt.Sprintf("kNN/ANN engine gRPC server listening on %s", addr))

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Errorf("gRPC server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.isShutdown {
		return nil
	}

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		s.logger.Info("Server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout exceeded, forcing stop")
		s.grpcServer.Stop()
	}

	s.isShutdown = true
	return nil
}

// Wait blocks until the server is stopped
func (s *Server) Wait() {
	if s.listener != nil {
		<-make(chan struct{})
	}
}

// Uptime returns server uptime
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
