package orchestrator

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhallin/knitty-gritty/disk"
	"github.com/mhallin/knitty-gritty/memimage"
	"github.com/mhallin/knitty-gritty/pattern"
)

func TestStateToDiskThenDiskToStateRoundTrip(t *testing.T) {
	p, err := pattern.New(1, [][]bool{
		{true, false, true, false, true, false, true, false, true, false, true, false},
		{false, true, false, true, false, true, false, true, false, true, false, true},
	}, nil)
	require.NoError(t, err)

	state := memimage.WithPatterns([]*pattern.Pattern{p})
	d := disk.New()

	require.NoError(t, StateToDisk(state, d))

	for i := 0; i < patternSectorCount; i++ {
		assert.NotEqual(t, [disk.SectorIDLength]byte{}, d.Sectors[i].ID)
	}
	for i := patternSectorCount; i < disk.SectorCount; i++ {
		assert.Equal(t, [disk.SectorIDLength]byte{}, d.Sectors[i].ID)
	}

	got, err := DiskToState(d)
	require.NoError(t, err)

	// Serialize recomputes the control block's pointer fields, so the
	// parsed state carries them: one 4-byte blob (3 data bytes + 1 memo
	// byte) laid out at 0x0120, one live header slot.
	want := *state
	want.Control.NextPatternPtr1 = 0x0125
	want.Control.NextPatternPtr2 = 0x0125
	want.Control.LastPatternEndPtr = 0x0120
	want.Control.LastPatternStartPtr = 0x0124
	want.Control.HeaderEndPtr = 0x7FF2
	assert.Equal(t, &want, got)
}

func TestStateToDiskEmptyState(t *testing.T) {
	d := disk.New()
	require.NoError(t, StateToDisk(memimage.Empty(), d))

	got, err := DiskToState(d)
	require.NoError(t, err)
	assert.Empty(t, got.Patterns)
}

func TestWriteRawDumpProducesParsableImage(t *testing.T) {
	d := disk.New()
	require.NoError(t, StateToDisk(memimage.Empty(), d))

	var buf bytes.Buffer
	require.NoError(t, WriteRawDump(&buf, d))

	assert.Equal(t, memimage.ImageSize, buf.Len())

	parsed, err := memimage.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, parsed.Patterns)
}
