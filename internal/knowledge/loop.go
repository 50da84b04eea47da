package knowledge

// LoopDetector tracks the last K detected prompt ids and the GameState
// deltas observed alongside them, raising disorientation when the same
// id recurs L times with no credits/sector/holds change between
// occurrences (spec.md section 4.6, section 8 P9).
type LoopDetector struct {
	ring      []promptObservation
	ringSize  int
	threshold int
}

type promptObservation struct {
	promptID string
	sector   int
	credits  int
	holds    int
}

// NewLoopDetector returns a detector with the spec's default ring size
// (5) and recurrence threshold (3).
func NewLoopDetector() *LoopDetector {
	return &LoopDetector{ringSize: 5, threshold: 3}
}

// Observe records one turn's detected prompt id and the GameState
// snapshot taken alongside it, returning true if the bot is now
// considered disoriented.
func (d *LoopDetector) Observe(promptID string, sector, credits, holds int) bool {
	d.ring = append(d.ring, promptObservation{promptID, sector, credits, holds})
	if len(d.ring) > d.ringSize {
		d.ring = d.ring[len(d.ring)-d.ringSize:]
	}
	return d.disoriented()
}

func (d *LoopDetector) disoriented() bool {
	if len(d.ring) < d.threshold {
		return false
	}
	tail := d.ring[len(d.ring)-d.threshold:]
	id := tail[0].promptID
	sector := tail[0].sector
	credits := tail[0].credits
	holds := tail[0].holds
	for _, obs := range tail[1:] {
		if obs.promptID != id || obs.sector != sector || obs.credits != credits || obs.holds != holds {
			return false
		}
	}
	return true
}

// Reset clears the ring, used once recovery succeeds and when a successor
// character takes over; it is not called between ordinary turn cycles.
func (d *LoopDetector) Reset() {
	d.ring = nil
}

// RecoveryStep is one attempt in the disorientation recovery protocol
// (spec.md section 4.6): send Enter, then q, then the rule file's
// configured safe-anchor key sequence.
type RecoveryStep struct {
	Keys string
}

// RecoverySequence returns the ordered recovery attempts, the last of
// which is the game-specific anchor sequence supplied by the caller
// (sourced from the prompt rule file's llm_hints or a dedicated config
// key, per spec.md section 4.6).
func RecoverySequence(anchorKeys string) []RecoveryStep {
	return []RecoveryStep{
		{Keys: "\r"},
		{Keys: "q"},
		{Keys: anchorKeys},
	}
}

const MaxRecoveryAttempts = 3
