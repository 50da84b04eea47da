package llm

import (
	"testing"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

func TestBuildPromptIncludesAdjacentSectorsUpToRadius(t *testing.T) {
	g := knowledge.NewGraph()
	g.MarkScanned(1, knowledge.Scan{Warps: []int{2, 3, 4}})
	g.MarkScanned(2, knowledge.Scan{Warps: []int{1}, HasPort: true, PortClass: knowledge.PortClassBBS})
	g.MarkScanned(3, knowledge.Scan{Warps: []int{1}, HasPort: true, PortClass: knowledge.PortClassSSS})
	g.MarkScanned(4, knowledge.Scan{Warps: []int{1}, HasPort: true, PortClass: knowledge.PortClassBBB})

	gs := &knowledge.GameState{CurrentSector: 1, Credits: 1000}
	p := BuildPrompt("summary", gs, g, 2, 5, true)

	if len(p.Adjacent) != 2 {
		t.Fatalf("len(Adjacent) = %d, want 2 (bounded by radius)", len(p.Adjacent))
	}
	if p.CurrentSector != 1 || p.Credits != 1000 {
		t.Fatalf("prompt state not copied from GameState: %+v", p)
	}
}

func TestBuildPromptOmitsHistoryWhenDisabled(t *testing.T) {
	gs := &knowledge.GameState{CurrentSector: 1}
	gs.RecordOutcome("warp", "success")

	p := BuildPrompt("summary", gs, nil, 3, 5, false)
	if len(p.RecentActions) != 0 {
		t.Fatalf("expected no history when includeHistory is false, got %d", len(p.RecentActions))
	}
}

func TestBuildPromptBoundsHistoryToMaxItems(t *testing.T) {
	gs := &knowledge.GameState{CurrentSector: 1}
	for i := 0; i < 10; i++ {
		gs.RecordOutcome("scan", "ok")
	}
	p := BuildPrompt("full", gs, nil, 3, 4, true)
	if len(p.RecentActions) != 4 {
		t.Fatalf("len(RecentActions) = %d, want 4", len(p.RecentActions))
	}
}
