package knowledge

import "testing"

// P9 (Loop recovery): if the last-5 prompt-id ring shows id X three
// times with no credits/sector/holds delta, disorientation is declared.
func TestLoopDetectorFlagsRepeatedStuckPrompt(t *testing.T) {
	d := NewLoopDetector()
	d.Observe("menu.command", 5, 100, 10)
	d.Observe("menu.command", 5, 100, 10)
	if d.Observe("menu.command", 5, 100, 10) != true {
		t.Fatal("three identical observations with no state delta should disorient")
	}
}

func TestLoopDetectorIgnoresProgressBetweenRepeats(t *testing.T) {
	d := NewLoopDetector()
	d.Observe("menu.command", 5, 100, 10)
	d.Observe("menu.command", 5, 150, 10) // credits changed
	if d.Observe("menu.command", 5, 150, 10) {
		t.Fatal("a credits delta should reset the disorientation window")
	}
}

func TestLoopDetectorRingIsBounded(t *testing.T) {
	d := NewLoopDetector()
	for i := 0; i < 20; i++ {
		d.Observe("a", 1, 1, 1)
	}
	if len(d.ring) != d.ringSize {
		t.Errorf("ring length = %d, want %d", len(d.ring), d.ringSize)
	}
}

func TestRecoverySequenceOrder(t *testing.T) {
	steps := RecoverySequence("s\r")
	if len(steps) != 3 {
		t.Fatalf("expected 3 recovery steps, got %d", len(steps))
	}
	if steps[0].Keys != "\r" || steps[1].Keys != "q" || steps[2].Keys != "s\r" {
		t.Errorf("recovery sequence = %+v, want Enter, q, anchor", steps)
	}
}
