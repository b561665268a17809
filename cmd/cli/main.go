package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	enginegrpc "github.com/therealutkarshpriyadarshi/annknn/pkg/api/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	version = "1.0.0"
)

var (
	serverAddr string
	namespace  string
	timeout    time.Duration
)

func main() {
	if len(os.Args) < 2 {
		showUsage()
		os.Exit(1)
	}

	flag.StringVar(&serverAddr, "server", "localhost:50051", "gRPC server address")
	flag.StringVar(&namespace, "namespace", "default", "namespace to use")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	command := os.Args[1]

	switch command {
	case "add-vectors":
		handleAddVectors(os.Args[2:])
	case "knn":
		handleKnnExact(os.Args[2:])
	case "batch-knn":
		handleBatchKnnExact(os.Args[2:])
	case "ann":
		handleAnnAllToAll(os.Args[2:])
	case "stats":
		handleStats(os.Args[2:])
	case "health":
		handleHealth(os.Args[2:])
	case "version":
		fmt.Printf("annknn-cli version %s\n", version)
	case "help", "-h", "--help":
		showUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		showUsage()
		os.Exit(1)
	}
}

func handleAddVectors(args []string) {
	fs := flag.NewFlagSet("add-vectors", flag.ExitOnError)
	var (
		vectorsStr = fs.String("vectors", "", "row-major flattened vectors as JSON array (required)")
		count      = fs.Int("count", 0, "number of vectors in -vectors (required)")
		dim        = fs.Int("dim", 0, "dimensionality of each vector (required)")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.Parse(args)

	if *vectorsStr == "" || *count <= 0 || *dim <= 0 {
		fmt.Println("Error: -vectors, -count, and -dim are required")
		fs.Usage()
		os.Exit(1)
	}

	var vectors []float64
	if err := json.Unmarshal([]byte(*vectorsStr), &vectors); err != nil {
		fmt.Printf("Error parsing vectors: %v\n", err)
		os.Exit(1)
	}

	client, conn := connectToServer()
	defer conn.Close()

	req := &enginegrpc.AddVectorsRequest{
		Namespace: namespace,
		Vectors:   vectors,
		Count:     int32(*count),
		Dim:       int32(*dim),
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.AddVectors(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		msg := "add_vectors failed"
		if resp.Error != nil {
			msg = *resp.Error
		}
		fmt.Printf("%s\n", msg)
		os.Exit(1)
	}

	fmt.Printf("✓ Corpus %q now holds %d vectors\n", namespace, resp.TotalCount)
}

func handleKnnExact(args []string) {
	fs := flag.NewFlagSet("knn", flag.ExitOnError)
	var (
		queryStr    = fs.String("query", "", "query vector as JSON array (required)")
		k           = fs.Int("k", 10, "number of neighbors to return")
		sorted      = fs.Bool("sorted", true, "sort results by ascending distance")
		workerCount = fs.Int("workers", 0, "override worker count (0 = server default)")
		blasThreads = fs.Int("blas-threads", 0, "override BLAS thread count (0 = server default)")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.Parse(args)

	if *queryStr == "" {
		fmt.Println("Error: -query is required")
		fs.Usage()
		os.Exit(1)
	}

	var query []float64
	if err := json.Unmarshal([]byte(*queryStr), &query); err != nil {
		fmt.Printf("Error parsing query vector: %v\n", err)
		os.Exit(1)
	}

	client, conn := connectToServer()
	defer conn.Close()

	req := &enginegrpc.KnnExactRequest{
		Namespace:   namespace,
		Query:       query,
		K:           int32(*k),
		Sorted:      *sorted,
		WorkerCount: int32(*workerCount),
		BlasThreads: int32(*blasThreads),
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.KnnExact(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	displayNeighbors(resp.Indices, resp.Distances, 1, int(*k))
}

func handleBatchKnnExact(args []string) {
	fs := flag.NewFlagSet("batch-knn", flag.ExitOnError)
	var (
		queriesStr = fs.String("queries", "", "row-major flattened queries as JSON array (required)")
		m          = fs.Int("m", 0, "number of queries in -queries (required)")
		k          = fs.Int("k", 10, "number of neighbors per query")
		sorted     = fs.Bool("sorted", true, "sort results by ascending distance")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.Parse(args)

	if *queriesStr == "" || *m <= 0 {
		fmt.Println("Error: -queries and -m are required")
		fs.Usage()
		os.Exit(1)
	}

	var queries []float64
	if err := json.Unmarshal([]byte(*queriesStr), &queries); err != nil {
		fmt.Printf("Error parsing queries: %v\n", err)
		os.Exit(1)
	}

	client, conn := connectToServer()
	defer conn.Close()

	req := &enginegrpc.BatchKnnExactRequest{
		Namespace: namespace,
		Queries:   queries,
		M:         int32(*m),
		K:         int32(*k),
		Sorted:    *sorted,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.BatchKnnExact(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	displayNeighbors(resp.Indices, resp.Distances, *m, int(*k))
}

func handleAnnAllToAll(args []string) {
	fs := flag.NewFlagSet("ann", flag.ExitOnError)
	var (
		k       = fs.Int("k", 10, "number of neighbors per point")
		kc      = fs.Int("kc", 1, "number of clusters (1 skips clustering)")
		backend = fs.String("backend", "", "native_threads | structured_loop | work_stealing (empty = server default)")
	)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.StringVar(&namespace, "namespace", namespace, "namespace")
	fs.Parse(args)

	client, conn := connectToServer()
	defer conn.Close()

	req := &enginegrpc.AnnAllToAllRequest{
		Namespace: namespace,
		K:         int32(*k),
		Kc:        int32(*kc),
		Backend:   *backend,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.AnnAllToAll(ctx, req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ann_all_to_all over %d points, k=%d\n\n", resp.N, resp.K)
	displayNeighbors(resp.Indices, resp.Distances, int(resp.N), int(resp.K))
}

func handleStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.Parse(args)

	client, conn := connectToServer()
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.GetStats(ctx, &enginegrpc.StatsRequest{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Engine Statistics ===")
	fmt.Printf("Uptime:     %.0fs\n", resp.UptimeSeconds)
	fmt.Printf("Namespaces: %d\n", resp.NamespaceCount)
	fmt.Println("\nPer-namespace:")
	for ns, stat := range resp.Namespaces {
		fmt.Printf("  %s:\n", ns)
		fmt.Printf("    Corpus size:    %d\n", stat.CorpusSize)
		fmt.Printf("    Dimensions:     %d\n", stat.Dimensions)
		fmt.Printf("    Cache hit rate: %.2f%% (%d hits, %d misses)\n",
			stat.CacheHitRate*100, stat.CacheHits, stat.CacheMisses)
	}
}

func handleHealth(args []string) {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	fs.StringVar(&serverAddr, "server", serverAddr, "gRPC server address")
	fs.Parse(args)

	client, conn := connectToServer()
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := client.Health(ctx, &enginegrpc.HealthCheckRequest{})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Status:  %s\n", resp.Status)
	fmt.Printf("Version: %s\n", resp.Version)
	fmt.Printf("Uptime:  %d seconds\n", resp.UptimeSeconds)
	if len(resp.Details) > 0 {
		fmt.Println("Details:")
		for k, v := range resp.Details {
			fmt.Printf("  %s: %s\n", k, v)
		}
	}

	if resp.Status != "healthy" {
		os.Exit(1)
	}
}

func connectToServer() (*enginegrpc.EngineClient, *grpc.ClientConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, serverAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype("json")),
	)
	if err != nil {
		fmt.Printf("Failed to connect to server at %s: %v\n", serverAddr, err)
		os.Exit(1)
	}

	return enginegrpc.NewEngineClient(conn), conn
}

// displayNeighbors prints a row-major indices/distances pair, m rows of k
// neighbors each.
func displayNeighbors(indices []int32, distances []float64, m, k int) {
	for row := 0; row < m; row++ {
		if m > 1 {
			fmt.Printf("Query %d:\n", row)
		}
		for col := 0; col < k; col++ {
			pos := row*k + col
			if pos >= len(indices) {
				break
			}
			fmt.Printf("  %2d. index=%-8d distance=%.6f\n", col+1, indices[pos], distances[pos])
		}
		fmt.Println()
	}
}

func showUsage() {
	fmt.Println(`annknn CLI - client for the kNN/ANN engine gRPC server

Usage:
  annknn-cli <command> [options]

Commands:
  add-vectors     Append vectors to a namespace's corpus
  knn             Exact K nearest neighbors of one query vector
  batch-knn       Exact K nearest neighbors of M query vectors
  ann             Approximate all-pairs K nearest neighbors (ann_all_to_all)
  stats           Get engine statistics
  health          Check server health
  version         Show version
  help            Show this help message

Global Options:
  -server ADDRESS   gRPC server address (default: localhost:50051)
  -namespace NAME   Namespace to use (default: default)
Requests time out after 30s; no command accepts a -timeout flag.

Examples:

  # Register a corpus
  annknn-cli add-vectors \
    -vectors '[0.1,0.2,0.1,0.9,0.8,0.7]' \
    -count 2 -dim 3

  # Exact kNN for one query
  annknn-cli knn -query '[0.15,0.25,0.1]' -k 5

  # Batch exact kNN
  annknn-cli batch-knn -queries '[0.1,0.2,0.1,0.9,0.8,0.7]' -m 2 -k 5

  # Approximate all-to-all
  annknn-cli ann -k 10 -kc 8 -backend work_stealing

  # Get engine statistics
  annknn-cli stats

  # Check server health
  annknn-cli health

  # Use a custom server and namespace
  annknn-cli knn \
    -server my-server:50051 \
    -namespace production \
    -query '[0.1,0.2]'

For more information, visit: https://github.com/therealutkarshpriyadarshi/annknn`)
}
