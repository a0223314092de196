// Package pattern models a single KH-940 knitting pattern: its number,
// dimensions, stitch grid and memo bytes, and the header/data byte
// layout it serializes itself into.
package pattern

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/mhallin/knitty-gritty/bcdutil"
)

// HeaderSize is the fixed length in bytes of a serialized pattern
// header slot.
const HeaderSize = 7

// Pattern is one knitting pattern: a number, a rectangular grid of
// stitches, and opaque per-row memo bytes.
type Pattern struct {
	Number int
	Width  int
	Height int
	Rows   [][]bool
	Memo   []byte
}

// MemoSize returns the number of memo bytes required for a pattern of
// the given height: ceil(height/2).
func MemoSize(height int) int {
	return int(math.Ceil(float64(height) / 2.0))
}

// New constructs a Pattern from its number and rows, validating the
// shape invariants. If memo is nil, a zero-filled memo of the correct
// size is used.
func New(number int, rows [][]bool, memo []byte) (*Pattern, error) {
	height := len(rows)
	if height == 0 {
		return nil, fmt.Errorf("pattern: height must be >= 1")
	}

	width := len(rows[0])
	if width == 0 {
		return nil, fmt.Errorf("pattern: width must be >= 1")
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("pattern: row %d has length %d, want %d", i, len(row), width)
		}
	}

	if number < 1 || number > 999 {
		return nil, fmt.Errorf("pattern: number %d out of range [1,999]", number)
	}

	wantMemo := MemoSize(height)
	if memo == nil {
		memo = make([]byte, wantMemo)
	}
	if len(memo) != wantMemo {
		return nil, fmt.Errorf("pattern: memo length %d, want %d", len(memo), wantMemo)
	}

	return &Pattern{
		Number: number,
		Width:  width,
		Height: height,
		Rows:   rows,
		Memo:   append([]byte(nil), memo...),
	}, nil
}

func (p *Pattern) String() string {
	return fmt.Sprintf("<Pattern #%d (%dx%d)>", p.Number, p.Width, p.Height)
}

// rowLayout returns the per-row nibble count, the zero-bit padding
// appended before each row, and the zero-nibble padding prepended
// before the first row, as described in the memory image codec's
// pattern data placement.
func rowLayout(width, height int) (rowNibbles, rowPadBits, initialPadding int) {
	rowNibbles = int(math.Ceil(float64(width) / 4.0))
	rowPadBits = bcdutil.Padding(width, 4)
	initialPadding = bcdutil.Padding(rowNibbles*height, 2)
	return
}

// DataSize returns the serialized data-block size for a pattern of the
// given width and height, in bytes, excluding the memo.
func DataSize(width, height int) int {
	rowNibbles, _, _ := rowLayout(width, height)
	return int(math.Ceil(float64(rowNibbles) * float64(height) / 2.0))
}

// SerializeHeader encodes the 7-byte header slot for this pattern at
// the given data offset: offset (big-endian u16) followed by the
// packed BCD height/width/number nibbles.
func (p *Pattern) SerializeHeader(offset uint16) ([]byte, error) {
	var offsetBytes [2]byte
	binary.BigEndian.PutUint16(offsetBytes[:], offset)

	nibbles := make([]byte, 0, 10)
	nibbles = append(nibbles, bcdutil.ToBCD(p.Height, 3)...)
	nibbles = append(nibbles, bcdutil.ToBCD(p.Width, 3)...)
	nibbles = append(nibbles, bcdutil.ToBCD(p.Number, 4)...)

	packed, err := bcdutil.FromNibbles(nibbles)
	if err != nil {
		return nil, fmt.Errorf("pattern: serializing header for #%d: %w", p.Number, err)
	}

	return append(offsetBytes[:], packed...), nil
}

// SerializeData packs the stitch rows (each row reversed, per the
// reference layout) into bytes and appends the memo.
func (p *Pattern) SerializeData() ([]byte, error) {
	_, rowPadBits, initialPadding := rowLayout(p.Width, p.Height)

	bits := make([]byte, initialPadding*4)

	for _, row := range p.Rows {
		bits = append(bits, make([]byte, rowPadBits)...)

		for i := len(row) - 1; i >= 0; i-- {
			if row[i] {
				bits = append(bits, 1)
			} else {
				bits = append(bits, 0)
			}
		}
	}

	data, err := bcdutil.BitsToBytes(bits)
	if err != nil {
		return nil, fmt.Errorf("pattern: serializing data for #%d: %w", p.Number, err)
	}

	return append(data, p.Memo...), nil
}

// ParseRows reconstructs a pattern's rows from its raw packed data
// bytes, given the pattern's width and height.
func ParseRows(width, height int, data []byte) [][]bool {
	rowNibbles, rowPadBits, initialPadding := rowLayout(width, height)

	nibbles := bcdutil.ToNibbles(data)

	rows := make([][]bool, 0, height)
	for row := 0; row < height; row++ {
		start := initialPadding + rowNibbles*row
		end := start + rowNibbles

		bits := bcdutil.NibbleBits(nibbles[start:end])
		bits = bits[rowPadBits:]

		r := make([]bool, len(bits))
		for i, b := range bits {
			r[len(bits)-1-i] = b != 0
		}
		rows = append(rows, r)
	}

	return rows
}

// Render draws the pattern as ASCII art, '█' for foreground stitches
// and '░' for background ones, one line per row.
func (p *Pattern) Render() string {
	var b strings.Builder
	for _, row := range p.Rows {
		for _, v := range row {
			if v {
				b.WriteRune('█')
			} else {
				b.WriteRune('░')
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
}
