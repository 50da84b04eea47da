package swarm

import (
	"sync"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

// KnowledgeBroker is the single-writer shared sector knowledge store
// (spec.md section 4.11, section 5: "single-writer-at-a-time
// (manager-serialized) with readers observing a consistent snapshot").
// Writes (MarkScanned/MarkVisited) are serialized under the write lock
// so a reader never observes a partially applied Scan; this is the
// sync.RWMutex-guarded variant of the broker, chosen over a dedicated
// owning goroutine for the same reason the teacher's
// session/registry.go picks a lock over a channel for a read-mostly
// registry — one lock is simpler than a request/response channel
// protocol when there's no need to queue writers.
type KnowledgeBroker struct {
	mu    sync.RWMutex
	graph *knowledge.Graph
}

// NewKnowledgeBroker returns a broker wrapping an empty shared graph.
func NewKnowledgeBroker() *KnowledgeBroker {
	return &KnowledgeBroker{graph: knowledge.NewGraph()}
}

// MarkScanned serializes a scan-discovered write into the shared graph.
func (b *KnowledgeBroker) MarkScanned(sectorID int, scan knowledge.Scan) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graph.MarkScanned(sectorID, scan)
}

// MarkVisited serializes a visited-with-no-new-data write.
func (b *KnowledgeBroker) MarkVisited(sectorID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graph.MarkVisited(sectorID)
}

// Get returns the knowledge record for sectorID under a read lock.
func (b *KnowledgeBroker) Get(sectorID int) *knowledge.SectorKnowledge {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph.Get(sectorID)
}

// View returns the broker's backing graph for read-only use by a
// Strategy's SharedView (spec.md section 4.8). Callers must not mutate
// it directly; every mutation goes through MarkScanned/MarkVisited so
// it is serialized by this broker.
func (b *KnowledgeBroker) View() *knowledge.Graph {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.graph
}

// Clear discards all accumulated shared knowledge (spec.md section 6's
// `POST /swarm/clear` control-plane operation).
func (b *KnowledgeBroker) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.graph = knowledge.NewGraph()
}

// SectorCount reports how many sectors the shared graph has recorded,
// for status reporting.
func (b *KnowledgeBroker) SectorCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.graph.SectorIDs())
}
