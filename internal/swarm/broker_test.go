package swarm

import (
	"sync"
	"testing"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

func TestKnowledgeBrokerMarkScannedIsVisibleThroughGet(t *testing.T) {
	b := NewKnowledgeBroker()
	b.MarkScanned(5, knowledge.Scan{Warps: []int{6, 7}, HasPort: true, PortClass: "BBS"})

	sk := b.Get(5)
	if sk == nil {
		t.Fatal("Get(5) = nil, want a record")
	}
	if len(sk.Warps) != 2 {
		t.Fatalf("Warps = %v, want 2 entries", sk.Warps)
	}
}

func TestKnowledgeBrokerClearDiscardsAllSectors(t *testing.T) {
	b := NewKnowledgeBroker()
	b.MarkVisited(1)
	b.MarkVisited(2)
	if b.SectorCount() != 2 {
		t.Fatalf("SectorCount = %d, want 2", b.SectorCount())
	}

	b.Clear()
	if b.SectorCount() != 0 {
		t.Fatalf("SectorCount after Clear = %d, want 0", b.SectorCount())
	}
}

func TestKnowledgeBrokerSerializesConcurrentWrites(t *testing.T) {
	b := NewKnowledgeBroker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			b.MarkScanned(1, knowledge.Scan{Warps: []int{n}})
		}(i)
	}
	wg.Wait()

	sk := b.Get(1)
	if sk == nil || len(sk.Warps) == 0 {
		t.Fatal("expected accumulated warps after concurrent MarkScanned calls")
	}
}

func TestKnowledgeBrokerViewReflectsWrites(t *testing.T) {
	b := NewKnowledgeBroker()
	b.MarkVisited(9)

	view := b.View()
	if view.Get(9) == nil {
		t.Fatal("View() does not reflect prior writes")
	}
}
