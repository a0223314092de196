package disk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsAllZero(t *testing.T) {
	d := New()
	assert.Len(t, d.Sectors, SectorCount)
	for _, s := range d.Sectors {
		assert.Equal(t, [SectorIDLength]byte{}, s.ID)
		assert.Equal(t, [SectorDataLength]byte{}, s.Data)
	}
}

func TestIndexOfID(t *testing.T) {
	d := New()
	var id [SectorIDLength]byte
	copy(id[:], "HELLO_WORLD!")
	d.Sectors[3].ID = id

	assert.Equal(t, 3, d.IndexOfID(id))

	var missing [SectorIDLength]byte
	copy(missing[:], "????????????")
	assert.Equal(t, NotFound, d.IndexOfID(missing))
}

func TestScatterConcatInverse(t *testing.T) {
	d := New()

	buf := make([]byte, 32*SectorDataLength)
	for i := range buf {
		buf[i] = byte(i)
	}

	require.NoError(t, d.Scatter(buf))

	got := d.ConcatSectors(32)
	assert.Equal(t, buf, got)

	for i := 0; i < 32; i++ {
		assert.Equal(t, scatteredID, d.Sectors[i].ID)
	}
	for i := 32; i < SectorCount; i++ {
		assert.Equal(t, [SectorIDLength]byte{}, d.Sectors[i].ID)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	d := New()
	copy(d.Sectors[0].ID[:], "ABCDEFGHIJKL")
	d.Sectors[0].Data[0] = 0xFF
	d.Sectors[79].Data[1023] = 0x42

	dir := t.TempDir()
	path := filepath.Join(dir, "disk.json")
	require.NoError(t, d.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, d, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  ")
}

func TestLoadRejectsWrongSectorCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sectors":[]}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestScatterRejectsOversizedData(t *testing.T) {
	d := New()
	buf := make([]byte, (SectorCount+1)*SectorDataLength)
	err := d.Scatter(buf)
	assert.Error(t, err)
}
