// Package bitmapio bridges a pattern's stitch grid and an on-host
// image file: black pixels are stitches, white pixels are plain rows,
// same convention as the original bitmap folder format. The pattern
// number is carried in the filename prefix, "<number>.<ext>".
package bitmapio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jsummers/gobmp"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"

	"github.com/mhallin/knitty-gritty/pattern"
)

var white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
var black = color.RGBA{A: 0xff}

// renderImage draws p's stitch grid as a black-and-white RGBA image at
// its native resolution, one pixel per stitch.
func renderImage(p *pattern.Pattern) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y, row := range p.Rows {
		for x, stitch := range row {
			c := white
			if stitch {
				c = black
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodeImage(img image.Image, path string) error {
	f, err := os.Create(path) // #nosec G304 -- caller-supplied output path
	if err != nil {
		return fmt.Errorf("bitmapio: creating %s: %w", path, err)
	}
	defer f.Close()

	var err2 error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err2 = png.Encode(f, img)
	case ".bmp":
		err2 = gobmp.Encode(f, img)
	default:
		err2 = fmt.Errorf("bitmapio: unsupported image extension %q", filepath.Ext(path))
	}
	if err2 != nil {
		return fmt.Errorf("bitmapio: encoding %s: %w", path, err2)
	}

	return nil
}

// WritePattern renders p's stitch grid as a black-and-white image at
// path, choosing PNG or BMP by the path's extension.
func WritePattern(p *pattern.Pattern, path string) error {
	return encodeImage(renderImage(p), path)
}

// WriteThumbnail renders p's stitch grid scaled to fit within a
// maxEdge x maxEdge box, preserving aspect ratio, as a preview image
// (the CLI's show -thumbnail flag). Patterns are nearest-neighbor
// scaled so stitch edges stay crisp rather than blurring into gray.
func WriteThumbnail(p *pattern.Pattern, path string, maxEdge uint) error {
	width, height := thumbnailSize(p.Width, p.Height, maxEdge)
	scaled := resize.Resize(width, height, renderImage(p), resize.NearestNeighbor)
	return encodeImage(scaled, path)
}

// thumbnailSize scales (w, h) down to fit within maxEdge on its
// longer side, preserving aspect ratio. Patterns already smaller than
// maxEdge are left at their native size rather than upscaled.
func thumbnailSize(w, h int, maxEdge uint) (uint, uint) {
	longEdge := w
	if h > longEdge {
		longEdge = h
	}
	if uint(longEdge) <= maxEdge || longEdge == 0 {
		return uint(w), uint(h)
	}

	scale := float64(maxEdge) / float64(longEdge)
	scaledW := uint(float64(w) * scale)
	scaledH := uint(float64(h) * scale)
	if scaledW == 0 {
		scaledW = 1
	}
	if scaledH == 0 {
		scaledH = 1
	}
	return scaledW, scaledH
}

// ReadPattern loads the black-and-white image at path and builds a
// Pattern from it, taking the pattern number from the filename prefix
// before the first '.', exactly as the original bitmap folder format
// does.
func ReadPattern(path string) (*pattern.Pattern, error) {
	number, err := patternNumberFromFilename(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 -- caller-supplied input path
	if err != nil {
		return nil, fmt.Errorf("bitmapio: opening %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	case ".bmp":
		img, err = bmp.Decode(f)
	default:
		err = fmt.Errorf("bitmapio: unsupported image extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("bitmapio: decoding %s: %w", path, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	rows := make([][]bool, height)
	for y := 0; y < height; y++ {
		row := make([]bool, width)
		for x := 0; x < width; x++ {
			stitch, err := isStitch(img.At(bounds.Min.X+x, bounds.Min.Y+y))
			if err != nil {
				return nil, fmt.Errorf("bitmapio: %s pixel (%d,%d): %w", path, x, y, err)
			}
			row[x] = stitch
		}
		rows[y] = row
	}

	return pattern.New(number, rows, nil)
}

func patternNumberFromFilename(path string) (int, error) {
	base := filepath.Base(path)
	dot := strings.Index(base, ".")
	if dot < 0 {
		return 0, fmt.Errorf("bitmapio: filename %q has no extension to separate the pattern number", base)
	}

	number, err := strconv.Atoi(base[:dot])
	if err != nil {
		return 0, fmt.Errorf("bitmapio: filename %q does not start with a pattern number: %w", base, err)
	}
	return number, nil
}

// isStitch classifies a pixel as black (stitch) or white (plain),
// rejecting anything else the same way the original's strict
// {white, black} lookup table does.
func isStitch(c color.Color) (bool, error) {
	r, g, b, _ := c.RGBA()
	switch {
	case r == 0xffff && g == 0xffff && b == 0xffff:
		return false, nil
	case r == 0 && g == 0 && b == 0:
		return true, nil
	default:
		return false, fmt.Errorf("color %v is neither black nor white", c)
	}
}
