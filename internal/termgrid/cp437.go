package termgrid

import (
	"golang.org/x/text/encoding/charmap"
)

// cp437Decoder converts single DOS code page 437 bytes to their Unicode
// code points. The teacher's internal/terminal package carries its own
// 256-entry translation table; golang.org/x/text/encoding/charmap ships
// the same mapping as a maintained decoder, so this module depends on it
// directly rather than re-copying the table (see DESIGN.md).
var cp437Decoder = charmap.CodePage437.NewDecoder()

// decodeCP437 converts a single CP437 byte to its Unicode rune. The
// parser's ground state handles BEL, BS, HT, LF, CR and ESC before this is
// called; every other byte, including the remaining control bytes below
// 0x20, is decoded here and written to the grid.
func decodeCP437(b byte) rune {
	out, err := cp437Decoder.Bytes([]byte{b})
	if err != nil || len(out) == 0 {
		return rune(b)
	}
	r := []rune(string(out))
	if len(r) == 0 {
		return rune(b)
	}
	return r[0]
}
