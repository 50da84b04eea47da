// Package termgrid implements the terminal emulator (spec.md section 4.2):
// CP437-to-Unicode decoding and a defined subset of ANSI (CSI cursor
// movement, erase in display/line, SGR stripping, simple scroll) applied
// to an 80x25 character grid, exposed as a deterministic snapshot.
//
// The parsing state machine is grounded on the teacher's
// internal/terminal.ANSIParser, generalized from a position/graphics
// tracker that drives output-side rendering callbacks into a grid writer
// that reconstructs the actual visible text of an inbound byte stream.
package termgrid

import (
	"strconv"
	"strings"
)

type parserState int

const (
	stateGround parserState = iota
	stateEscape
	stateCSI
	stateOSC
	stateDCS
)

// Parser is a stateful ANSI/CP437 decoder that feeds a Grid. It is not
// safe for concurrent use; a Session owns exactly one Parser per spec.md
// section 3 ("the screen grid is never shared across tasks").
type Parser struct {
	state parserState

	paramBuf strings.Builder
	private  bool

	grid *Grid
}

// NewParser creates a Parser that writes into grid.
func NewParser(grid *Grid) *Parser {
	return &Parser{grid: grid}
}

// Feed decodes CP437 bytes and interprets the ANSI subset, applying all
// effects to the underlying Grid. It never blocks and never returns an
// error: any byte sequence it does not recognize is either consumed
// silently (unknown escape) or treated as printable text, so the
// emulator stays a pure function of its input history (spec.md 4.2).
func (p *Parser) Feed(data []byte) {
	for _, b := range data {
		p.feedByte(b)
	}
}

func (p *Parser) feedByte(b byte) {
	switch p.state {
	case stateGround:
		p.ground(b)
	case stateEscape:
		p.escape(b)
	case stateCSI:
		p.csi(b)
	case stateOSC:
		if b == 0x07 || b == 0x1B {
			p.state = stateGround
		}
	case stateDCS:
		if b == 0x1B {
			p.state = stateGround
		}
	}
}

func (p *Parser) ground(b byte) {
	switch b {
	case 0x1B:
		p.state = stateEscape
		p.resetParams()
	case 0x08:
		p.grid.CursorLeft(1)
	case 0x09:
		p.grid.Tab()
	case 0x0A:
		p.grid.LineFeed()
	case 0x0D:
		p.grid.CarriageReturn()
	case 0x07:
		// bell: no visible effect on the grid
	default:
		p.grid.PutByte(decodeCP437(b))
	}
}

func (p *Parser) escape(b byte) {
	switch b {
	case '[':
		p.state = stateCSI
	case ']':
		p.state = stateOSC
	case 'P':
		p.state = stateDCS
	case 'D': // IND
		p.grid.LineFeed()
		p.state = stateGround
	case 'E': // NEL
		p.grid.CarriageReturn()
		p.grid.LineFeed()
		p.state = stateGround
	case 'M': // RI
		p.grid.ReverseIndex()
		p.state = stateGround
	case 'c': // RIS
		p.grid.Reset()
		p.state = stateGround
	default:
		p.state = stateGround
	}
}

func (p *Parser) csi(b byte) {
	switch {
	case b >= 0x30 && b <= 0x3F:
		if b == '?' || b == '>' || b == '=' || b == '<' {
			p.private = true
		} else {
			p.paramBuf.WriteByte(b)
		}
	case b >= 0x20 && b <= 0x2F:
		// intermediate bytes: ignored (not used by the supported subset)
	case b >= 0x40 && b <= 0x7E:
		p.execCSI(b, p.parseParams())
		p.state = stateGround
		p.resetParams()
	}
}

func (p *Parser) parseParams() []int {
	s := p.paramBuf.String()
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			out = append(out, 0)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

func (p *Parser) resetParams() {
	p.paramBuf.Reset()
	p.private = false
}

func param(params []int, idx, def int) int {
	if idx < len(params) && params[idx] > 0 {
		return params[idx]
	}
	return def
}

func (p *Parser) execCSI(final byte, params []int) {
	switch final {
	case 'A': // CUU
		p.grid.CursorUp(param(params, 0, 1))
	case 'B': // CUD
		p.grid.CursorDown(param(params, 0, 1))
	case 'C': // CUF
		p.grid.CursorRight(param(params, 0, 1))
	case 'D': // CUB
		p.grid.CursorLeft(param(params, 0, 1))
	case 'H', 'f': // CUP/HVP
		row := param(params, 0, 1)
		col := param(params, 1, 1)
		p.grid.MoveTo(row-1, col-1)
	case 'J': // ED
		p.grid.EraseDisplay(param(params, 0, 0))
	case 'K': // EL
		p.grid.EraseLine(param(params, 0, 0))
	case 'm': // SGR: parsed for correctness but visually ignored, stripped
		// from the text grid per spec.md section 4.2.
	case 's':
		p.grid.SaveCursor()
	case 'u':
		p.grid.RestoreCursor()
	case 'r': // DECSTBM: scrolling region not modeled; grid always scrolls
		// its full height, matching the "simple scroll on LF beyond row
		// 25" behavior spec.md calls for.
	}
}
