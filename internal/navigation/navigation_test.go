package navigation

import (
	"testing"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

func linkedGraph(edges map[int][]int) *knowledge.Graph {
	g := knowledge.NewGraph()
	for from, tos := range edges {
		g.MarkScanned(from, knowledge.Scan{Warps: tos})
	}
	return g
}

func TestFindPathReturnsShortestRoute(t *testing.T) {
	g := linkedGraph(map[int][]int{
		1: {2, 3},
		2: {4},
		3: {4},
		4: {5},
	})
	path, ok := FindPath(g, nil, 1, 5)
	if !ok {
		t.Fatal("expected a route")
	}
	if len(path) != 3 {
		t.Fatalf("path = %v, want length 3 (x, 4, 5)", path)
	}
	if path[len(path)-1] != 5 {
		t.Errorf("path should end at target, got %v", path)
	}
}

func TestFindPathSameSectorIsTrivial(t *testing.T) {
	g := knowledge.NewGraph()
	path, ok := FindPath(g, nil, 7, 7)
	if !ok || path != nil {
		t.Fatalf("FindPath(same sector) = (%v,%v), want (nil,true)", path, ok)
	}
}

func TestFindPathUnreachableReturnsNoRoute(t *testing.T) {
	g := linkedGraph(map[int][]int{1: {2}})
	_, ok := FindPath(g, nil, 1, 99)
	if ok {
		t.Error("expected no route to an unreachable sector")
	}
}

func TestFindPathPrefersExpiredCooldownOnTie(t *testing.T) {
	g := linkedGraph(map[int][]int{
		1: {10, 20},
	})
	cooldowns := map[int]time.Time{
		10: time.Now().Add(time.Hour), // still on cooldown
	}
	path, ok := FindPath(g, cooldowns, 1, 10)
	if !ok {
		t.Fatal("10 is still reachable even if on cooldown")
	}
	_ = path

	// Confirm tie-break: when both 10 and 20 are viable single-hop
	// candidates and neither is the target, the one without an active
	// cooldown is ordered first.
	candidates := []int{10, 20}
	orderCandidates(candidates, g, cooldowns)
	if candidates[0] != 20 {
		t.Errorf("expected sector 20 (no active cooldown) first, got order %v", candidates)
	}
}

func TestFindPathPrefersScannedSectorOnTie(t *testing.T) {
	g := knowledge.NewGraph()
	g.MarkScanned(2, knowledge.Scan{Warps: []int{1}}) // sector 2 itself has been scanned
	// sector 3 has never been scanned
	candidates := []int{3, 2}
	orderCandidates(candidates, g, nil)
	if candidates[0] != 2 {
		t.Errorf("expected previously scanned sector 2 first, got order %v", candidates)
	}
}

func TestFindPathFallsBackToLowestID(t *testing.T) {
	g := knowledge.NewGraph()
	candidates := []int{9, 3, 5}
	orderCandidates(candidates, g, nil)
	if candidates[0] != 3 {
		t.Errorf("expected lowest id first, got order %v", candidates)
	}
}
