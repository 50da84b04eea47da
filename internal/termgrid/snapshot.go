package termgrid

import "strings"

// Snapshot is the deterministic, content-addressed view of a Grid at one
// instant in time (spec.md section 3). It carries no timing information;
// is_idle and change_age_ms are derived by the Session, which is the
// component that actually knows when the grid last changed (spec.md
// section 4.3: the emulator is a pure function of bytes seen, the session
// owns wall-clock state).
type Snapshot struct {
	Rows        []string
	Text        string
	Hash        string
	CursorX     int
	CursorY     int
	CursorAtEnd bool
}

// Snapshot captures the grid's current visible state. Each row has its
// trailing spaces stripped before joining, matching the hash invariant
// in spec.md section 3.
func (g *Grid) Snapshot() Snapshot {
	rows := make([]string, Height)
	for y := 0; y < Height; y++ {
		rows[y] = strings.TrimRight(string(g.cells[y][:]), " ")
	}
	x, y := g.Cursor()
	return Snapshot{
		Rows:        rows,
		Text:        g.Text(),
		Hash:        g.Hash(),
		CursorX:     x,
		CursorY:     y,
		CursorAtEnd: g.CursorAtEnd(),
	}
}

// LastNRows returns the last n rows of the snapshot (or fewer if n
// exceeds the grid height), trailing-space-stripped, in top-to-bottom
// order — the window the Prompt Detector evaluates.
func (s Snapshot) LastNRows(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(s.Rows) {
		n = len(s.Rows)
	}
	return s.Rows[len(s.Rows)-n:]
}
