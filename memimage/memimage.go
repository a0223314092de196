// Package memimage parses and serializes the exact 32 KiB KH-940 RAM
// image: the pattern header table, the pattern data blobs packed from
// the top of memory downward, the control block, the opaque regions,
// and the loaded-pattern field.
//
// This is the load-bearing component of the emulator: the byte layout
// must round-trip exactly the way the machine expects, while the
// variable-length pattern table and pattern data region stay mutually
// consistent as patterns are added or removed.
package memimage

import (
	"encoding/binary"
	"fmt"

	"github.com/mhallin/knitty-gritty/bcdutil"
	"github.com/mhallin/knitty-gritty/pattern"
)

// ImageSize is the fixed size in bytes of a KH-940 memory dump.
const ImageSize = 32768

// PatternCount is the maximum number of patterns the header table can
// hold.
const PatternCount = 98

const (
	headerTableStart = 0x0000
	headerTableSize  = 686
	headerSlotSize   = pattern.HeaderSize
	patternDataStart = 0x0120
	patternDataEnd   = 0x7EE0

	data0Start = 0x7EE0
	data0Size  = 32

	controlStart = 0x7F00
	controlSize  = 23

	data1Start = 0x7F17
	data1Size  = 211

	loadedPatternStart = 0x7FEA
	loadedPatternSize  = 2

	data2Start = 0x7FEC
	data2Size  = 20
)

// ControlBlock mirrors the 23-byte fixed control record. The four
// Unknown* fields are opaque and preserved verbatim on round-trip; the
// pointer fields are recomputed on serialize.
type ControlBlock struct {
	NextPatternPtr1     uint16
	Unknown1            uint16
	NextPatternPtr2     uint16
	LastPatternEndPtr   uint16
	Unknown2            uint16
	LastPatternStartPtr uint16
	Unknown3            uint32
	HeaderEndPtr        uint16
	UnknownPtr          uint16
	Unknown4_1          uint16
	Unknown4_2          uint8
}

func parseControlBlock(b []byte) (ControlBlock, error) {
	if len(b) != controlSize {
		return ControlBlock{}, fmt.Errorf("memimage: control block length %d, want %d", len(b), controlSize)
	}

	return ControlBlock{
		NextPatternPtr1:     binary.BigEndian.Uint16(b[0:2]),
		Unknown1:            binary.BigEndian.Uint16(b[2:4]),
		NextPatternPtr2:     binary.BigEndian.Uint16(b[4:6]),
		LastPatternEndPtr:   binary.BigEndian.Uint16(b[6:8]),
		Unknown2:            binary.BigEndian.Uint16(b[8:10]),
		LastPatternStartPtr: binary.BigEndian.Uint16(b[10:12]),
		Unknown3:            binary.BigEndian.Uint32(b[12:16]),
		HeaderEndPtr:        binary.BigEndian.Uint16(b[16:18]),
		UnknownPtr:          binary.BigEndian.Uint16(b[18:20]),
		Unknown4_1:          binary.BigEndian.Uint16(b[20:22]),
		Unknown4_2:          b[22],
	}, nil
}

func (c ControlBlock) serialize() []byte {
	b := make([]byte, controlSize)
	binary.BigEndian.PutUint16(b[0:2], c.NextPatternPtr1)
	binary.BigEndian.PutUint16(b[2:4], c.Unknown1)
	binary.BigEndian.PutUint16(b[4:6], c.NextPatternPtr2)
	binary.BigEndian.PutUint16(b[6:8], c.LastPatternEndPtr)
	binary.BigEndian.PutUint16(b[8:10], c.Unknown2)
	binary.BigEndian.PutUint16(b[10:12], c.LastPatternStartPtr)
	binary.BigEndian.PutUint32(b[12:16], c.Unknown3)
	binary.BigEndian.PutUint16(b[16:18], c.HeaderEndPtr)
	binary.BigEndian.PutUint16(b[18:20], c.UnknownPtr)
	binary.BigEndian.PutUint16(b[20:22], c.Unknown4_1)
	b[22] = c.Unknown4_2
	return b
}

// MachineState is the logical content of a 32 KiB memory dump.
type MachineState struct {
	Patterns      []*pattern.Pattern
	Data0         []byte // 32 opaque bytes
	Control       ControlBlock
	Data1         []byte // 211 opaque bytes
	LoadedPattern int
	Data2         []byte // 20 opaque bytes
}

// Empty returns a MachineState with no patterns and all opaque regions
// zero-filled.
func Empty() *MachineState {
	return &MachineState{
		Patterns:      nil,
		Data0:         make([]byte, data0Size),
		Control:       ControlBlock{},
		Data1:         make([]byte, data1Size),
		LoadedPattern: 0,
		Data2:         make([]byte, data2Size),
	}
}

// WithPatterns returns a MachineState holding the given patterns, with
// the first pattern (if any) selected as the loaded pattern.
func WithPatterns(patterns []*pattern.Pattern) *MachineState {
	s := Empty()
	s.Patterns = patterns
	if len(patterns) > 0 {
		s.LoadedPattern = patterns[0].Number
	}
	return s
}

func (s *MachineState) validate() error {
	if len(s.Data0) != data0Size {
		return fmt.Errorf("memimage: data0 length %d, want %d", len(s.Data0), data0Size)
	}
	if len(s.Data1) != data1Size {
		return fmt.Errorf("memimage: data1 length %d, want %d", len(s.Data1), data1Size)
	}
	if len(s.Data2) != data2Size {
		return fmt.Errorf("memimage: data2 length %d, want %d", len(s.Data2), data2Size)
	}
	if len(s.Patterns) > PatternCount {
		return fmt.Errorf("memimage: %d patterns exceeds maximum of %d", len(s.Patterns), PatternCount)
	}
	seen := make(map[int]bool, len(s.Patterns))
	for _, p := range s.Patterns {
		if seen[p.Number] {
			return fmt.Errorf("memimage: duplicate pattern number %d", p.Number)
		}
		seen[p.Number] = true
	}
	return nil
}

// patternLayout associates each pattern, in insertion order, with its
// logical data offset: patterns are laid out starting at
// patternDataStart and growing upward for the purposes of computing
// each header's offset field.
type patternLayout struct {
	pat    *pattern.Pattern
	offset uint16
	data   []byte // cached SerializeData() result
}

func (s *MachineState) layoutPatternMemory() ([]patternLayout, error) {
	offset := uint32(patternDataStart)
	layout := make([]patternLayout, 0, len(s.Patterns))

	for _, p := range s.Patterns {
		data, err := p.SerializeData()
		if err != nil {
			return nil, err
		}
		if offset > 0xFFFF {
			return nil, fmt.Errorf("memimage: pattern #%d offset overflows 16 bits", p.Number)
		}
		layout = append(layout, patternLayout{pat: p, offset: uint16(offset), data: data})
		offset += uint32(len(data))
	}

	return layout, nil
}

func (s *MachineState) serializeHeaderTable(layout []patternLayout) ([]byte, error) {
	data := make([]byte, 0, headerTableSize)

	for _, l := range layout {
		h, err := l.pat.SerializeHeader(l.offset)
		if err != nil {
			return nil, err
		}
		data = append(data, h...)
	}

	var maxNumber int
	if len(layout) > 0 && len(layout) < PatternCount {
		maxNumber = 0
		for _, p := range s.Patterns {
			if p.Number > maxNumber {
				maxNumber = p.Number
			}
		}
	} else {
		maxNumber = 900
	}

	nextFree, err := bcdutil.FromNibbles(bcdutil.ToBCD(maxNumber+1, 4))
	if err != nil {
		return nil, fmt.Errorf("memimage: encoding next-free-number trailer: %w", err)
	}

	data = append(data, 0, 0, 0, 0, 0)
	data = append(data, nextFree...)

	padSlots := (PatternCount - 1) - len(layout)
	data = append(data, make([]byte, padSlots*headerSlotSize)...)

	if len(data) != headerTableSize {
		return nil, fmt.Errorf("memimage: header table length %d, want %d", len(data), headerTableSize)
	}

	return data, nil
}

func (s *MachineState) serializeControlBlock(layout []patternLayout) []byte {
	var nextPtr, lastEnd, lastStart uint32

	if len(layout) > 0 {
		last := layout[len(layout)-1]
		lastEnd = uint32(last.offset)
		lastStart = lastEnd + uint32(len(last.data))
		nextPtr = lastStart + 1
	} else {
		nextPtr = patternDataStart
	}

	c := s.Control
	c.NextPatternPtr1 = uint16(nextPtr)
	if len(layout) > 0 {
		c.NextPatternPtr2 = uint16(nextPtr)
	} else {
		c.NextPatternPtr2 = 0
	}
	c.LastPatternEndPtr = uint16(lastEnd)
	c.LastPatternStartPtr = uint16(lastStart)
	c.HeaderEndPtr = uint16(0x8000 - 7*len(layout) - 7)

	return c.serialize()
}

func (s *MachineState) serializeLoadedPattern() ([]byte, error) {
	nibbles := append([]byte{1}, bcdutil.ToBCD(s.LoadedPattern, 3)...)
	b, err := bcdutil.FromNibbles(nibbles)
	if err != nil {
		return nil, fmt.Errorf("memimage: encoding loaded pattern: %w", err)
	}
	return b, nil
}

// Serialize produces the exact 32768-byte KH-940 memory image for this
// state.
func (s *MachineState) Serialize() ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	layout, err := s.layoutPatternMemory()
	if err != nil {
		return nil, err
	}

	headerTable, err := s.serializeHeaderTable(layout)
	if err != nil {
		return nil, err
	}

	var lastEnd uint32 = patternDataStart
	if len(layout) > 0 {
		last := layout[len(layout)-1]
		lastEnd = uint32(last.offset) + uint32(len(last.data))
	}
	padLen := ImageSize - headerTableSize - int(lastEnd)
	if padLen < 0 {
		return nil, fmt.Errorf("memimage: pattern data overflows available space by %d bytes", -padLen)
	}

	out := make([]byte, 0, ImageSize)
	out = append(out, headerTable...)
	out = append(out, make([]byte, padLen)...)

	// Pattern blobs are written in reverse insertion order into the
	// data region, even though their header offsets were computed as
	// if they grew forward from patternDataStart. See DESIGN.md /
	// spec.md §4.C.3 and §9 for why this asymmetry is preserved.
	for i := len(layout) - 1; i >= 0; i-- {
		out = append(out, layout[i].data...)
	}

	out = append(out, s.Data0...)
	out = append(out, s.serializeControlBlock(layout)...)
	out = append(out, s.Data1...)

	loadedPattern, err := s.serializeLoadedPattern()
	if err != nil {
		return nil, err
	}
	out = append(out, loadedPattern...)
	out = append(out, s.Data2...)

	if len(out) != ImageSize {
		return nil, fmt.Errorf("memimage: serialized image length %d, want %d", len(out), ImageSize)
	}

	return out, nil
}

// Parse decodes a 32768-byte KH-940 memory image into a MachineState.
func Parse(data []byte) (*MachineState, error) {
	if len(data) != ImageSize {
		return nil, fmt.Errorf("memimage: image length %d, want %d", len(data), ImageSize)
	}

	var patterns []*pattern.Pattern
	for i := 0; i < PatternCount; i++ {
		p, err := readPattern(data, i)
		if err != nil {
			return nil, fmt.Errorf("memimage: header slot %d: %w", i, err)
		}
		if p != nil {
			patterns = append(patterns, p)
		}
	}

	control, err := parseControlBlock(data[controlStart : controlStart+controlSize])
	if err != nil {
		return nil, err
	}

	loadedPattern, err := readLoadedPattern(data)
	if err != nil {
		return nil, err
	}

	return &MachineState{
		Patterns:      patterns,
		Data0:         append([]byte(nil), data[data0Start:data0Start+data0Size]...),
		Control:       control,
		Data1:         append([]byte(nil), data[data1Start:data1Start+data1Size]...),
		LoadedPattern: loadedPattern,
		Data2:         append([]byte(nil), data[data2Start:data2Start+data2Size]...),
	}, nil
}

func readPattern(data []byte, headerIdx int) (*pattern.Pattern, error) {
	header := data[headerIdx*headerSlotSize : (headerIdx+1)*headerSlotSize]

	endOffset := binary.BigEndian.Uint16(header[0:2])
	if endOffset == 0 {
		return nil, nil
	}

	nibbles := bcdutil.ToNibbles(header[2:])
	height := bcdutil.FromBCD(nibbles[0:3])
	width := bcdutil.FromBCD(nibbles[3:6])
	number := bcdutil.FromBCD(nibbles[6:10])

	memoSize := pattern.MemoSize(height)
	memoEndPos := int(0x7FFF) - int(endOffset)
	memoStartPos := memoEndPos - memoSize

	if memoStartPos < 0 || memoEndPos+1 > len(data) {
		return nil, fmt.Errorf("pattern #%d: memo region out of bounds", number)
	}
	memo := append([]byte(nil), data[memoStartPos+1:memoEndPos+1]...)

	dataSize := pattern.DataSize(width, height)
	patternEndPos := memoStartPos
	patternStartPos := patternEndPos - dataSize

	if patternStartPos < 0 || patternEndPos+1 > len(data) {
		return nil, fmt.Errorf("pattern #%d: data region out of bounds", number)
	}
	body := data[patternStartPos+1 : patternEndPos+1]

	rows := pattern.ParseRows(width, height, body)

	return pattern.New(number, rows, memo)
}

func readLoadedPattern(data []byte) (int, error) {
	b := data[loadedPatternStart : loadedPatternStart+loadedPatternSize]
	nibbles := bcdutil.ToNibbles(b)
	if len(nibbles) != 4 {
		return 0, fmt.Errorf("memimage: loaded pattern field has %d nibbles, want 4", len(nibbles))
	}
	return bcdutil.FromBCD(nibbles[1:]), nil
}

// PatternWithNumber returns the pattern with the given number, or nil
// if none is present.
func (s *MachineState) PatternWithNumber(number int) *pattern.Pattern {
	for _, p := range s.Patterns {
		if p.Number == number {
			return p
		}
	}
	return nil
}
