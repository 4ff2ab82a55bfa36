// Package glyph synthesizes the 16x16 proximity glyph shown in the status
// slot: a line arrow rotated toward the pointer and coloured by distance band.
package glyph

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/pkg/geom"
	"github.com/cursorbeacon/cursorbeacon/pkg/raster"
)

const (
	// Size is the glyph edge length in pixels
	Size = 16

	strokeWidth        = 3.0
	defaultStrokeWidth = 2.0
)

// center of the glyph, the rotation origin
var center = raster.Pt{X: Size / 2, Y: Size / 2}

// arrow strokes before rotation, relative to the centre, pointing along +X
var arrow = [3][2]raster.Pt{
	{{X: -5, Y: 0}, {X: 5, Y: 0}},
	{{X: 2, Y: -3}, {X: 5, Y: 0}},
	{{X: 2, Y: 3}, {X: 5, Y: 0}},
}

// idleColor is DeepSkyBlue
var idleColor = color.NRGBA{R: 0x00, G: 0xBF, B: 0xFF, A: 0xFF}

// Glyph is one synthesized frame
type Glyph struct {
	Bearing  float64
	Distance float64
	Band     geom.Band
	Image    *image.RGBA
}

// Render draws the arrow for a bearing (degrees) and distance (pixels). The
// output depends only on its inputs.
func Render(bearing, distance float64) *Glyph {
	band := geom.Classify(distance)
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	c := raster.NewCanvas(img)

	m := raster.Translate(center.X, center.Y).Multiply(raster.Rotate(bearing))
	col := band.Color()
	for _, s := range arrow {
		c.Line(m, s[0], s[1], strokeWidth, col)
	}

	return &Glyph{
		Bearing:  bearing,
		Distance: distance,
		Band:     band,
		Image:    img,
	}
}

// Default returns the idle glyph shown while proximity tracking is off: an
// upward arrow in DeepSkyBlue.
func Default() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Size, Size))
	c := raster.NewCanvas(img)
	m := raster.Identity()

	c.Line(m, raster.Pt{X: 8, Y: 2}, raster.Pt{X: 8, Y: 14}, defaultStrokeWidth, idleColor)
	c.Line(m, raster.Pt{X: 8, Y: 2}, raster.Pt{X: 3, Y: 7}, defaultStrokeWidth, idleColor)
	c.Line(m, raster.Pt{X: 8, Y: 2}, raster.Pt{X: 13, Y: 7}, defaultStrokeWidth, idleColor)
	return img
}

// EncodePNG encodes a glyph image
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "failed to encode glyph")
	}
	return buf.Bytes(), nil
}
