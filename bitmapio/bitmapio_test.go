package bitmapio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhallin/knitty-gritty/pattern"
)

func samplePattern(t *testing.T, number int) *pattern.Pattern {
	t.Helper()
	p, err := pattern.New(number, [][]bool{
		{true, false, true},
		{false, true, false},
	}, nil)
	require.NoError(t, err)
	return p
}

func TestWriteReadPatternPNGRoundTrip(t *testing.T) {
	p := samplePattern(t, 42)
	dir := t.TempDir()
	path := filepath.Join(dir, "42.png")

	require.NoError(t, WritePattern(p, path))

	got, err := ReadPattern(path)
	require.NoError(t, err)
	assert.Equal(t, p.Number, got.Number)
	assert.Equal(t, p.Rows, got.Rows)
}

func TestWriteReadPatternBMPRoundTrip(t *testing.T) {
	p := samplePattern(t, 7)
	dir := t.TempDir()
	path := filepath.Join(dir, "7.bmp")

	require.NoError(t, WritePattern(p, path))

	got, err := ReadPattern(path)
	require.NoError(t, err)
	assert.Equal(t, p.Number, got.Number)
	assert.Equal(t, p.Rows, got.Rows)
}

func TestReadPatternRejectsMissingNumberPrefix(t *testing.T) {
	p := samplePattern(t, 3)
	dir := t.TempDir()
	path := filepath.Join(dir, "3.png")
	require.NoError(t, WritePattern(p, path))

	badPath := filepath.Join(dir, "not-a-number.png")
	require.NoError(t, os.Rename(path, badPath))

	_, err := ReadPattern(badPath)
	assert.Error(t, err)
}

func TestWritePatternRejectsUnknownExtension(t *testing.T) {
	p := samplePattern(t, 1)
	dir := t.TempDir()
	path := filepath.Join(dir, "1.gif")

	err := WritePattern(p, path)
	assert.Error(t, err)
}

func TestWriteThumbnailScalesDownToMaxEdge(t *testing.T) {
	rows := make([][]bool, 40)
	for y := range rows {
		rows[y] = make([]bool, 40)
	}
	p, err := pattern.New(99, rows, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "99.png")
	require.NoError(t, WriteThumbnail(p, path, 10))

	got, err := ReadPattern(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, got.Width, 10)
	assert.LessOrEqual(t, got.Height, 10)
}

func TestThumbnailSizeLeavesSmallPatternsUnscaled(t *testing.T) {
	w, h := thumbnailSize(5, 3, 64)
	assert.Equal(t, uint(5), w)
	assert.Equal(t, uint(3), h)
}

func TestThumbnailSizePreservesAspectRatio(t *testing.T) {
	w, h := thumbnailSize(100, 50, 20)
	assert.Equal(t, uint(20), w)
	assert.Equal(t, uint(10), h)
}
