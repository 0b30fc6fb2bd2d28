package dedup

import (
	"fmt"
	"sort"

	"github.com/STRATINT/eventfeed/internal/models"
)

// ClusterStrategy selects how candidates are grouped into duplicate clusters.
type ClusterStrategy string

const (
	// StrategySeed compares every candidate only against the seed of the
	// cluster it may join. Results depend on input order.
	StrategySeed ClusterStrategy = "seed"
	// StrategyTransitive joins any pair at or above the threshold and takes
	// connected components.
	StrategyTransitive ClusterStrategy = "transitive"
)

// ParseClusterStrategy validates a strategy name. Empty means seed.
func ParseClusterStrategy(s string) (ClusterStrategy, error) {
	switch ClusterStrategy(s) {
	case "", StrategySeed:
		return StrategySeed, nil
	case StrategyTransitive:
		return StrategyTransitive, nil
	default:
		return "", fmt.Errorf("unknown cluster strategy %q", s)
	}
}

type similarityFunc func(a, b models.CandidateEvent) float64

// cluster partitions events into groups of indexes. Every index appears in
// exactly one group and groups are ordered by their smallest index.
func cluster(strategy ClusterStrategy, events []models.CandidateEvent, threshold float64, sim similarityFunc) [][]int {
	switch strategy {
	case StrategyTransitive:
		return clusterTransitive(events, threshold, sim)
	default:
		return clusterSeed(events, threshold, sim)
	}
}

func clusterSeed(events []models.CandidateEvent, threshold float64, sim similarityFunc) [][]int {
	assigned := make([]bool, len(events))
	var groups [][]int

	for i := range events {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []int{i}

		for j := i + 1; j < len(events); j++ {
			if assigned[j] {
				continue
			}
			if sim(events[i], events[j]) >= threshold {
				assigned[j] = true
				group = append(group, j)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// unionFind is a disjoint set forest with path halving.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root so roots are stable.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

func clusterTransitive(events []models.CandidateEvent, threshold float64, sim similarityFunc) [][]int {
	uf := newUnionFind(len(events))
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if sim(events[i], events[j]) >= threshold {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int][]int)
	for i := range events {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], i)
	}

	groups := make([][]int, 0, len(byRoot))
	for _, members := range byRoot {
		groups = append(groups, members)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a][0] < groups[b][0] })
	return groups
}
