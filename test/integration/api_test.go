package integration

import (
	"context"
	"testing"
	"time"

	grpcserver "github.com/therealutkarshpriyadarshi/annknn/pkg/api/grpc"
	"github.com/therealutkarshpriyadarshi/annknn/pkg/config"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func setupTestServer(t *testing.T) (*grpcserver.Server, *grpcserver.EngineClient, func()) {
	cfg := config.Default()
	cfg.Server.Port = 50052 // use a different port for testing
	cfg.Engine.Dimensions = 3

	server, err := grpcserver.NewServer(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, "localhost:50052",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		server.Stop()
		t.Fatalf("Failed to connect to server: %v", err)
	}

	client := grpcserver.NewEngineClient(conn)

	cleanup := func() {
		conn.Close()
		server.Stop()
	}

	return server, client, cleanup
}

func TestAddVectors(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	req := &grpcserver.AddVectorsRequest{
		Namespace: "default",
		Vectors:   []float64{0.1, 0.2, 0.3},
		Count:     1,
		Dim:       3,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.AddVectors(ctx, req)
	if err != nil {
		t.Fatalf("AddVectors failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("AddVectors returned success=false: %v", resp.Error)
	}
	if resp.TotalCount != 1 {
		t.Fatalf("expected total count 1, got %d", resp.TotalCount)
	}
}

func TestAddVectorsInvalidRequest(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	tests := []struct {
		name    string
		req     *grpcserver.AddVectorsRequest
		wantErr bool
	}{
		{
			name:    "empty namespace",
			req:     &grpcserver.AddVectorsRequest{Namespace: "", Vectors: []float64{0.1, 0.2, 0.3}, Count: 1, Dim: 3},
			wantErr: true,
		},
		{
			name:    "count*dim mismatch",
			req:     &grpcserver.AddVectorsRequest{Namespace: "default", Vectors: []float64{0.1, 0.2}, Count: 1, Dim: 3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			resp, err := client.AddVectors(ctx, tt.req)

			if tt.wantErr {
				if err == nil && resp.Success {
					t.Error("Expected error, got success")
				}
			} else if err != nil || !resp.Success {
				t.Errorf("Expected success, got error: %v", err)
			}
		})
	}
}

func TestKnnExact(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()

	corpus := []float64{
		0.1, 0.2, 0.3,
		0.2, 0.3, 0.4,
		0.9, 0.8, 0.7,
	}
	if _, err := client.AddVectors(ctx, &grpcserver.AddVectorsRequest{
		Namespace: "default",
		Vectors:   corpus,
		Count:     3,
		Dim:       3,
	}); err != nil {
		t.Fatalf("Failed to register corpus: %v", err)
	}

	resp, err := client.KnnExact(ctx, &grpcserver.KnnExactRequest{
		Namespace: "default",
		Query:     []float64{0.15, 0.25, 0.35},
		K:         2,
		Sorted:    true,
	})
	if err != nil {
		t.Fatalf("KnnExact failed: %v", err)
	}

	if len(resp.Indices) != 2 {
		t.Fatalf("expected 2 results, got %d", len(resp.Indices))
	}

	for i := 1; i < len(resp.Distances); i++ {
		if resp.Distances[i] < resp.Distances[i-1] {
			t.Error("results not sorted by ascending distance")
		}
	}
}

func TestBatchKnnExact(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()

	corpus := []float64{
		0.1, 0.2, 0.3,
		0.2, 0.3, 0.4,
		0.9, 0.8, 0.7,
	}
	if _, err := client.AddVectors(ctx, &grpcserver.AddVectorsRequest{
		Namespace: "default",
		Vectors:   corpus,
		Count:     3,
		Dim:       3,
	}); err != nil {
		t.Fatalf("Failed to register corpus: %v", err)
	}

	queries := []float64{
		0.15, 0.25, 0.35,
		0.85, 0.75, 0.65,
	}
	resp, err := client.BatchKnnExact(ctx, &grpcserver.BatchKnnExactRequest{
		Namespace: "default",
		Queries:   queries,
		M:         2,
		K:         1,
		Sorted:    true,
	})
	if err != nil {
		t.Fatalf("BatchKnnExact failed: %v", err)
	}

	if len(resp.Indices) != 2 {
		t.Fatalf("expected 2 results (m*k), got %d", len(resp.Indices))
	}
}

func TestAnnAllToAll(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()

	corpus := make([]float64, 0, 30)
	for i := 0; i < 10; i++ {
		corpus = append(corpus, float64(i)*0.1, float64(i)*0.2, float64(i)*0.3)
	}
	if _, err := client.AddVectors(ctx, &grpcserver.AddVectorsRequest{
		Namespace: "default",
		Vectors:   corpus,
		Count:     10,
		Dim:       3,
	}); err != nil {
		t.Fatalf("Failed to register corpus: %v", err)
	}

	resp, err := client.AnnAllToAll(ctx, &grpcserver.AnnAllToAllRequest{
		Namespace: "default",
		K:         2,
		Kc:        1,
	})
	if err != nil {
		t.Fatalf("AnnAllToAll failed: %v", err)
	}

	if resp.N != 10 {
		t.Fatalf("expected n=10, got %d", resp.N)
	}
	if len(resp.Indices) != int(resp.N)*int(resp.K) {
		t.Fatalf("expected n*k=%d indices, got %d", int(resp.N)*int(resp.K), len(resp.Indices))
	}
}

func TestGetStats(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()

	corpus := make([]float64, 0, 15)
	for i := 0; i < 5; i++ {
		corpus = append(corpus, float64(i)*0.1, float64(i)*0.2, float64(i)*0.3)
	}
	if _, err := client.AddVectors(ctx, &grpcserver.AddVectorsRequest{
		Namespace: "default",
		Vectors:   corpus,
		Count:     5,
		Dim:       3,
	}); err != nil {
		t.Fatalf("Failed to register corpus: %v", err)
	}

	statsResp, err := client.GetStats(ctx, &grpcserver.StatsRequest{})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	stat, ok := statsResp.Namespaces["default"]
	if !ok {
		t.Fatal("expected 'default' namespace in stats")
	}
	if stat.CorpusSize < 5 {
		t.Fatalf("expected at least 5 vectors, got %d", stat.CorpusSize)
	}

	if statsResp.NamespaceCount < 1 {
		t.Fatal("Expected at least 1 namespace")
	}

	t.Logf("Stats: %d vectors in default, %d namespaces", stat.CorpusSize, statsResp.NamespaceCount)
}

func TestHealthCheck(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()

	healthResp, err := client.Health(ctx, &grpcserver.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}

	if healthResp.Status != "healthy" {
		t.Fatalf("Expected status 'healthy', got '%s'", healthResp.Status)
	}

	if healthResp.Version == "" {
		t.Error("Version is empty")
	}

	t.Logf("Health: %s (version %s, uptime %ds)",
		healthResp.Status, healthResp.Version, healthResp.UptimeSeconds)
}

func TestMultipleNamespaces(t *testing.T) {
	_, client, cleanup := setupTestServer(t)
	defer cleanup()

	ctx := context.Background()

	namespaces := []string{"ns1", "ns2", "ns3"}
	for _, ns := range namespaces {
		req := &grpcserver.AddVectorsRequest{
			Namespace: ns,
			Vectors:   []float64{0.1, 0.2, 0.3},
			Count:     1,
			Dim:       3,
		}
		if _, err := client.AddVectors(ctx, req); err != nil {
			t.Fatalf("Failed to register corpus in namespace %s: %v", ns, err)
		}
	}

	statsResp, err := client.GetStats(ctx, &grpcserver.StatsRequest{})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if int(statsResp.NamespaceCount) < len(namespaces) {
		t.Fatalf("Expected at least %d namespaces, got %d",
			len(namespaces), statsResp.NamespaceCount)
	}

	t.Logf("Created %d namespaces successfully", len(namespaces))
}
