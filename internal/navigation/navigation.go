// Package navigation implements BFS pathfinding over the sector graph
// with the tie-break policy from spec.md section 4.7. The walk itself
// has no teacher analogue; its map-keyed-by-int storage shape is
// grounded on the teacher's internal/conference room registry, which
// references rooms only by id rather than by pointer.
package navigation

import (
	"sort"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

// FindPath returns the shortest sequence of sector ids from start to
// target (inclusive of target, exclusive of start), or (nil, false) if
// unreachable. Among multiple shortest paths, ties at each BFS frontier
// are broken by (a) expired danger_cooldowns preferred, (b) previously
// scanned sectors preferred, (c) lowest numeric id (spec.md section 4.7).
func FindPath(graph *knowledge.Graph, cooldowns map[int]time.Time, start, target int) ([]int, bool) {
	if start == target {
		return nil, true
	}

	type node struct {
		sector int
		prev   int
	}

	visited := map[int]bool{start: true}
	prevOf := map[int]int{}
	frontier := []int{start}

	for len(frontier) > 0 {
		next := map[int]bool{}
		candidates := []int{}
		for _, s := range frontier {
			for _, n := range graph.Neighbors(s) {
				if visited[n] {
					continue
				}
				if !next[n] {
					next[n] = true
					candidates = append(candidates, n)
					prevOf[n] = s
				}
			}
		}
		if len(candidates) == 0 {
			break
		}
		orderCandidates(candidates, graph, cooldowns)
		for _, c := range candidates {
			visited[c] = true
			if c == target {
				return reconstruct(prevOf, start, target), true
			}
		}
		frontier = candidates
	}
	return nil, false
}

// orderCandidates sorts one BFS frontier layer by the tie-break policy.
// The ordering only affects which of several equally-short paths is
// reported; reachability itself is order-independent.
func orderCandidates(candidates []int, graph *knowledge.Graph, cooldowns map[int]time.Time) {
	now := time.Now()
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		aExpired, bExpired := cooldownExpired(cooldowns, a, now), cooldownExpired(cooldowns, b, now)
		if aExpired != bExpired {
			return aExpired
		}
		aScanned, bScanned := graph.Get(a) != nil, graph.Get(b) != nil
		if aScanned != bScanned {
			return aScanned
		}
		return a < b
	})
}

func cooldownExpired(cooldowns map[int]time.Time, sector int, now time.Time) bool {
	expiry, ok := cooldowns[sector]
	if !ok {
		return true
	}
	return now.After(expiry)
}

func reconstruct(prevOf map[int]int, start, target int) []int {
	var path []int
	for cur := target; cur != start; cur = prevOf[cur] {
		path = append([]int{cur}, path...)
	}
	return path
}
