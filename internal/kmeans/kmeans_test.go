package kmeans

import (
	"math/rand"
	"testing"
)

func gridCorpus(clusters, perCluster, l int) []float64 {
	corpus := make([]float64, 0, clusters*perCluster*l)
	for c := 0; c < clusters; c++ {
		center := float64(c * 100)
		for p := 0; p < perCluster; p++ {
			row := make([]float64, l)
			for d := 0; d < l; d++ {
				row[d] = center + float64(p%3)*0.01
			}
			corpus = append(corpus, row...)
		}
	}
	return corpus
}

func TestRun_BasicPartition(t *testing.T) {
	const clusters, perCluster, l = 4, 20, 3
	corpus := gridCorpus(clusters, perCluster, l)
	n := clusters * perCluster

	res, err := Run[float64](corpus, n, l, Config{
		NumClusters:    clusters,
		MinClusterSize: 1,
		Rand:           rand.New(rand.NewSource(42)),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Assignment) != n {
		t.Fatalf("Assignment length = %d, want %d", len(res.Assignment), n)
	}

	total := 0
	for _, members := range res.Clusters {
		total += len(members)
	}
	if total != n {
		t.Errorf("cluster membership total = %d, want %d", total, n)
	}

	for i, c := range res.Assignment {
		found := false
		for _, m := range res.Clusters[c] {
			if int(m) == i {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("point %d assigned to cluster %d but not listed as a member", i, c)
		}
	}
}

func TestRun_MergeUntilViable(t *testing.T) {
	const l = 2
	// 10 points tightly grouped, requesting far more clusters than can hold
	// minSize members each; every surviving cluster must meet minSize.
	n := 10
	corpus := make([]float64, 0, n*l)
	for i := 0; i < n; i++ {
		corpus = append(corpus, float64(i), float64(i)*0.1)
	}

	const minSize = 4
	res, err := Run[float64](corpus, n, l, Config{
		NumClusters:    8,
		MinClusterSize: minSize,
		Rand:           rand.New(rand.NewSource(7)),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, members := range res.Clusters {
		if len(res.Clusters) > 1 && len(members) < minSize {
			t.Errorf("cluster %d has %d members, want >= %d", i, len(members), minSize)
		}
	}

	total := 0
	for _, members := range res.Clusters {
		total += len(members)
	}
	if total != n {
		t.Errorf("cluster membership total = %d, want %d", total, n)
	}
}

func TestRun_SingleCluster(t *testing.T) {
	const l = 2
	n := 5
	corpus := make([]float64, n*l)
	for i := range corpus {
		corpus[i] = float64(i)
	}

	res, err := Run[float64](corpus, n, l, Config{
		NumClusters:    1,
		MinClusterSize: 1,
		Rand:           rand.New(rand.NewSource(1)),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Clusters) != 1 {
		t.Fatalf("expected exactly 1 cluster, got %d", len(res.Clusters))
	}
	if len(res.Clusters[0]) != n {
		t.Errorf("single cluster size = %d, want %d", len(res.Clusters[0]), n)
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	_, err := Run[float64](nil, 0, 2, Config{NumClusters: 1, MinClusterSize: 1})
	if err == nil {
		t.Error("expected error for n=0")
	}

	_, err = Run[float64]([]float64{1, 2}, 1, 2, Config{NumClusters: 0, MinClusterSize: 1})
	if err == nil {
		t.Error("expected error for NumClusters=0")
	}
}
