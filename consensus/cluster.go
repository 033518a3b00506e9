// Package consensus groups peer responses into similarity clusters and
// aggregates them into a single answer with a confidence score.
package consensus

import (
	"context"

	"github.com/agentmesh/agentmesh/types"
)

// Scorer computes similarity between two response values.
// *similarity.Engine satisfies it.
type Scorer interface {
	Score(ctx context.Context, a, b types.Value) (float64, error)
}

// Cluster partitions values into similarity groups using single-link
// greedy clustering: a value joins a cluster when it scores at or above
// threshold against ANY already-accepted member, not just the founder.
// Every index 0..n-1 lands in exactly one cluster. n = 0 returns an
// empty list; callers short-circuit n = 1 before clustering.
//
// Similarity is evaluated for i < j only and cached symmetrically, so
// at most n(n-1)/2 scorer calls are made. Scorer errors (possible only
// with caller-supplied similarity functions) abort and propagate.
func Cluster(ctx context.Context, values []types.Value, scorer Scorer, threshold float64) ([][]int, error) {
	n := len(values)
	if n == 0 {
		return nil, nil
	}

	cache := make(map[[2]int]float64)
	score := func(i, j int) (float64, error) {
		if i > j {
			i, j = j, i
		}
		key := [2]int{i, j}
		if s, ok := cache[key]; ok {
			return s, nil
		}
		s, err := scorer.Score(ctx, values[i], values[j])
		if err != nil {
			return 0, err
		}
		cache[key] = s
		return s, nil
	}

	visited := make([]bool, n)
	var clusters [][]int

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		cluster := []int{i}
		visited[i] = true

		for j := i + 1; j < n; j++ {
			if visited[j] {
				continue
			}
			for _, member := range cluster {
				s, err := score(member, j)
				if err != nil {
					return nil, err
				}
				if s >= threshold {
					cluster = append(cluster, j)
					visited[j] = true
					break
				}
			}
		}
		clusters = append(clusters, cluster)
	}

	return clusters, nil
}

// largestCluster returns the index of the consensus cluster: largest by
// size, ties broken by earliest formation (lowest minimum index, which
// is the formation order of the greedy pass).
func largestCluster(clusters [][]int) int {
	best := 0
	for i, c := range clusters {
		if len(c) > len(clusters[best]) {
			best = i
		}
	}
	return best
}
