package memimage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhallin/knitty-gritty/bcdutil"
	"github.com/mhallin/knitty-gritty/pattern"
)

func TestEmptyStateSerializeSize(t *testing.T) {
	data, err := Empty().Serialize()
	require.NoError(t, err)
	assert.Len(t, data, ImageSize)
}

func TestEmptyStateSerializeLayout(t *testing.T) {
	data, err := Empty().Serialize()
	require.NoError(t, err)

	// 5 zero bytes then BCD(901,4) immediately after the (absent)
	// last live header, at the very start of the table since there
	// are no patterns.
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, data[0:5])

	nextFree, err := bcdutil.FromNibbles(bcdutil.ToBCD(901, 4))
	require.NoError(t, err)
	assert.Equal(t, nextFree, data[5:7])

	control, err := parseControlBlock(data[controlStart : controlStart+controlSize])
	require.NoError(t, err)
	assert.EqualValues(t, 0x0120, control.NextPatternPtr1)
	assert.EqualValues(t, 0, control.NextPatternPtr2)
	assert.EqualValues(t, 0x7FF9, control.HeaderEndPtr)
}

func mustAllZero(t *testing.T, data []byte, except func(i int) bool) {
	t.Helper()
	for i, b := range data {
		if b != 0 && !except(i) {
			t.Fatalf("byte %d = 0x%02X, want 0", i, b)
		}
	}
}

func TestEmptyStateIsAllZeroExceptStatedFields(t *testing.T) {
	data, err := Empty().Serialize()
	require.NoError(t, err)

	mustAllZero(t, data, func(i int) bool {
		return (i >= 5 && i < 7) ||
			(i >= controlStart && i < controlStart+controlSize) ||
			(i >= loadedPatternStart && i < loadedPatternStart+loadedPatternSize)
	})
}

func TestParseEmptySerialize(t *testing.T) {
	data, err := Empty().Serialize()
	require.NoError(t, err)

	state, err := Parse(data)
	require.NoError(t, err)

	assert.Empty(t, state.Patterns)
	assert.Equal(t, make([]byte, data0Size), state.Data0)
	assert.Equal(t, make([]byte, data1Size), state.Data1)
	assert.Equal(t, make([]byte, data2Size), state.Data2)
	assert.Equal(t, 0, state.LoadedPattern)
}

func newTestPattern(t *testing.T, number int) *pattern.Pattern {
	t.Helper()
	p, err := pattern.New(number, [][]bool{
		{true, false, true, false},
		{false, true, false, true},
	}, nil)
	require.NoError(t, err)
	return p
}

func TestSingleSerializeParseRoundTrip(t *testing.T) {
	p := newTestPattern(t, 500)
	state := WithPatterns([]*pattern.Pattern{p})

	data, err := state.Serialize()
	require.NoError(t, err)
	assert.Len(t, data, ImageSize)

	got, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, got.Patterns, 1)
	assert.Equal(t, p.Number, got.Patterns[0].Number)
	assert.Equal(t, p.Width, got.Patterns[0].Width)
	assert.Equal(t, p.Height, got.Patterns[0].Height)
	assert.Equal(t, p.Rows, got.Patterns[0].Rows)
	assert.Equal(t, p.Memo, got.Patterns[0].Memo)
	assert.Equal(t, 500, got.LoadedPattern)
}

func TestSingleSerializeHeaderOffset(t *testing.T) {
	p := newTestPattern(t, 500)
	state := WithPatterns([]*pattern.Pattern{p})

	data, err := state.Serialize()
	require.NoError(t, err)

	// A single pattern is laid out starting at 0x0120, so its header's
	// offset field must be 0x0120.
	header := data[0:7]
	want, err := p.SerializeHeader(0x0120)
	require.NoError(t, err)
	assert.Equal(t, want, header)
}

func TestMultiPatternRoundTrip(t *testing.T) {
	p1 := newTestPattern(t, 1)
	p2, err := pattern.New(2, [][]bool{
		{true, true, true, true, true, true, true, true, true},
		{false, false, false, false, false, false, false, false, false},
		{true, false, true, false, true, false, true, false, true},
	}, nil)
	require.NoError(t, err)
	p3, err := pattern.New(999, [][]bool{{true}}, nil)
	require.NoError(t, err)

	state := WithPatterns([]*pattern.Pattern{p1, p2, p3})
	state.Data0[0] = 0xAB
	state.Data1[5] = 0xCD
	state.Data2[1] = 0xEF
	state.Control.Unknown1 = 0x1234
	state.Control.Unknown3 = 0x89ABCDEF
	state.LoadedPattern = 2

	data, err := state.Serialize()
	require.NoError(t, err)
	require.Len(t, data, ImageSize)

	got, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, got.Patterns, 3)
	byNumber := map[int]*pattern.Pattern{}
	for _, p := range got.Patterns {
		byNumber[p.Number] = p
	}
	for _, want := range []*pattern.Pattern{p1, p2, p3} {
		got := byNumber[want.Number]
		require.NotNil(t, got)
		assert.Equal(t, want.Rows, got.Rows)
		assert.Equal(t, want.Memo, got.Memo)
	}

	assert.Equal(t, byte(0xAB), got.Data0[0])
	assert.Equal(t, byte(0xCD), got.Data1[5])
	assert.Equal(t, byte(0xEF), got.Data2[1])
	assert.EqualValues(t, 0x1234, got.Control.Unknown1)
	assert.EqualValues(t, 0x89ABCDEF, got.Control.Unknown3)
	assert.Equal(t, 2, got.LoadedPattern)

	// Re-serializing the parsed state reproduces the same bytes,
	// modulo the documented pattern-layout reversal (which does not
	// change the logical pattern set, only physical placement order),
	// so a second round-trip must still agree logically.
	data2, err := got.Serialize()
	require.NoError(t, err)
	got2, err := Parse(data2)
	require.NoError(t, err)
	assert.ElementsMatch(t, patternNumbers(got.Patterns), patternNumbers(got2.Patterns))
}

func patternNumbers(ps []*pattern.Pattern) []int {
	ns := make([]int, len(ps))
	for i, p := range ps {
		ns[i] = p.Number
	}
	return ns
}

func TestSerializeRejectsTooManyPatterns(t *testing.T) {
	state := Empty()
	for i := 1; i <= PatternCount+1; i++ {
		p, err := pattern.New(i, [][]bool{{true}}, nil)
		require.NoError(t, err)
		state.Patterns = append(state.Patterns, p)
	}

	_, err := state.Serialize()
	assert.Error(t, err)
}

func TestSerializeRejectsBadOpaqueLengths(t *testing.T) {
	state := Empty()
	state.Data0 = state.Data0[:10]

	_, err := state.Serialize()
	assert.Error(t, err)
}

func TestParseRejectsWrongSize(t *testing.T) {
	_, err := Parse(make([]byte, 100))
	assert.Error(t, err)
}

func TestPatternWithNumber(t *testing.T) {
	p := newTestPattern(t, 42)
	state := WithPatterns([]*pattern.Pattern{p})

	assert.Equal(t, p, state.PatternWithNumber(42))
	assert.Nil(t, state.PatternWithNumber(43))
}
