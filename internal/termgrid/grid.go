package termgrid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Width and Height are the fixed TW2002/BBS terminal dimensions. Emulating
// a resizable terminal is explicitly out of scope (spec.md section 1).
const (
	Width  = 80
	Height = 25
)

// Grid holds the emulator's 80x25 character buffer and cursor position. It
// is a pure data sink driven by Parser; it never blocks and holds no
// timing state (spec.md section 4.2: "the emulator never blocks; it is a
// pure function of its input byte history").
type Grid struct {
	cells [Height][Width]rune
	curX  int
	curY  int

	savedX int
	savedY int
}

// NewGrid returns a Grid filled with spaces, cursor at the origin.
func NewGrid() *Grid {
	g := &Grid{}
	g.clearAll()
	return g
}

func (g *Grid) clearAll() {
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			g.cells[y][x] = ' '
		}
	}
}

// Reset clears the grid and returns the cursor to the origin (RIS).
func (g *Grid) Reset() {
	g.clearAll()
	g.curX, g.curY = 0, 0
	g.savedX, g.savedY = 0, 0
}

// PutByte writes a decoded rune at the cursor and advances it, wrapping
// and scrolling as needed.
func (g *Grid) PutByte(r rune) {
	if g.curX >= Width {
		g.CarriageReturn()
		g.LineFeed()
	}
	g.cells[g.curY][g.curX] = r
	g.curX++
}

// CarriageReturn moves the cursor to column 0 of the current row.
func (g *Grid) CarriageReturn() {
	g.curX = 0
}

// LineFeed moves the cursor down one row, scrolling the grid up when it
// would move past the last row (spec.md section 4.2: "simple scroll on LF
// beyond row 25").
func (g *Grid) LineFeed() {
	if g.curY == Height-1 {
		g.scrollUp()
		return
	}
	g.curY++
}

func (g *Grid) scrollUp() {
	for y := 0; y < Height-1; y++ {
		g.cells[y] = g.cells[y+1]
	}
	for x := 0; x < Width; x++ {
		g.cells[Height-1][x] = ' '
	}
}

// ReverseIndex moves the cursor up one row, or leaves it in place at the
// top row (no reverse scroll: TW2002 sessions never rely on it).
func (g *Grid) ReverseIndex() {
	if g.curY > 0 {
		g.curY--
	}
}

func (g *Grid) Tab() {
	next := ((g.curX / 8) + 1) * 8
	if next >= Width {
		next = Width - 1
	}
	g.curX = next
}

func (g *Grid) CursorUp(n int) {
	g.curY = max(g.curY-n, 0)
}

func (g *Grid) CursorDown(n int) {
	g.curY = min(g.curY+n, Height-1)
}

func (g *Grid) CursorLeft(n int) {
	g.curX = max(g.curX-n, 0)
}

func (g *Grid) CursorRight(n int) {
	g.curX = min(g.curX+n, Width-1)
}

// MoveTo sets the cursor to an absolute (row, col), both 0-based and
// clamped to the grid bounds.
func (g *Grid) MoveTo(row, col int) {
	g.curY = clamp(row, 0, Height-1)
	g.curX = clamp(col, 0, Width-1)
}

func (g *Grid) SaveCursor() {
	g.savedX, g.savedY = g.curX, g.curY
}

func (g *Grid) RestoreCursor() {
	g.curX, g.curY = g.savedX, g.savedY
}

// EraseDisplay implements ED: 0 = cursor to end, 1 = start to cursor, 2 = all.
func (g *Grid) EraseDisplay(mode int) {
	switch mode {
	case 0:
		g.eraseRange(g.curY, g.curX, Height-1, Width-1)
	case 1:
		g.eraseRange(0, 0, g.curY, g.curX)
	case 2:
		g.clearAll()
	}
}

// EraseLine implements EL: 0 = cursor to end of line, 1 = start to cursor, 2 = entire line.
func (g *Grid) EraseLine(mode int) {
	switch mode {
	case 0:
		for x := g.curX; x < Width; x++ {
			g.cells[g.curY][x] = ' '
		}
	case 1:
		for x := 0; x <= g.curX && x < Width; x++ {
			g.cells[g.curY][x] = ' '
		}
	case 2:
		for x := 0; x < Width; x++ {
			g.cells[g.curY][x] = ' '
		}
	}
}

func (g *Grid) eraseRange(fromY, fromX, toY, toX int) {
	for y := fromY; y <= toY; y++ {
		startX, endX := 0, Width-1
		if y == fromY {
			startX = fromX
		}
		if y == toY {
			endX = toX
		}
		for x := startX; x <= endX; x++ {
			g.cells[y][x] = ' '
		}
	}
}

// Cursor returns the current 0-based cursor position.
func (g *Grid) Cursor() (x, y int) {
	return g.curX, g.curY
}

// Rows returns the grid's rows as strings with trailing spaces intact;
// callers that need the hashing/comparison semantics of spec.md should
// use Snapshot instead, which strips trailing spaces per row.
func (g *Grid) Rows() []string {
	rows := make([]string, Height)
	for y := 0; y < Height; y++ {
		rows[y] = string(g.cells[y][:])
	}
	return rows
}

// Text renders the full grid as newline-joined rows, each with trailing
// spaces stripped (the invariant ScreenSnapshot's hash depends on).
func (g *Grid) Text() string {
	rows := make([]string, Height)
	for y := 0; y < Height; y++ {
		rows[y] = strings.TrimRight(string(g.cells[y][:]), " ")
	}
	return strings.Join(rows, "\n")
}

// LastNRowsText returns the last n rows (or fewer, if n > Height), each
// trailing-space-stripped and newline-joined — the slice the Prompt
// Detector evaluates (spec.md section 4.4).
func (g *Grid) LastNRowsText(n int) string {
	if n <= 0 {
		return ""
	}
	if n > Height {
		n = Height
	}
	rows := make([]string, n)
	for i := 0; i < n; i++ {
		y := Height - n + i
		rows[i] = strings.TrimRight(string(g.cells[y][:]), " ")
	}
	return strings.Join(rows, "\n")
}

// Hash returns a stable content hash of Text(), used to detect whether the
// visible screen changed (spec.md section 3 invariant: "the hash depends
// only on the visible text after stripping trailing spaces").
func (g *Grid) Hash() string {
	sum := sha256.Sum256([]byte(g.Text()))
	return hex.EncodeToString(sum[:])
}

// CursorAtEnd reports whether the cursor sits immediately after the last
// non-space character of its row, and that row is the last non-blank row
// of the grid (spec.md section 4.2).
func (g *Grid) CursorAtEnd() bool {
	row := string(g.cells[g.curY][:])
	trimmed := strings.TrimRight(row, " ")
	if g.curX != len(trimmed) {
		return false
	}
	for y := g.curY + 1; y < Height; y++ {
		if strings.TrimRight(string(g.cells[y][:]), " ") != "" {
			return false
		}
	}
	return true
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
