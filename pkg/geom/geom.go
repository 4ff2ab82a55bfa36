// Package geom holds the bearing/distance primitive shared by the proximity
// ticker and the converge animator, plus the distance band palette.
package geom

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// BandStep is the width in pixels of every distance band but the last.
const BandStep = 400.0

// BandCount is the number of distance bands.
const BandCount = 10

// Band is one of BandCount contiguous distance intervals. Band 0 covers
// [0, 400), band 9 covers [3600, +inf).
type Band int

// palette runs from red (pointer close to the anchor) to green (far away).
var palette = [BandCount]string{
	"#FF0000",
	"#FF2D00",
	"#FF5A00",
	"#FF8700",
	"#FFB400",
	"#FFE100",
	"#D4F000",
	"#A0FF00",
	"#6CFF00",
	"#48FF00",
}

var bandColors [BandCount]color.NRGBA

func init() {
	for i, hex := range palette {
		bandColors[i] = ToNRGBA(mustHex(hex), 0xFF)
	}
}

func mustHex(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// ToNRGBA converts a colorful colour to a non-premultiplied image colour.
func ToNRGBA(c colorful.Color, alpha uint8) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}

// Bearing returns the angle in degrees from a to b, atan2(dy, dx), in the
// range (-180, 180]. 0 points along +X; screen Y grows downward so -90 is
// straight up.
func Bearing(a, b image.Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	deg := math.Atan2(dy, dx) * 180 / math.Pi
	if deg <= -180 {
		deg += 360
	}
	return deg
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b image.Point) float64 {
	return math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
}

// Classify maps a distance to its band. Boundaries belong to the higher band
// (a distance of exactly 400 is band 1). Negative and NaN distances are
// treated as zero.
func Classify(distance float64) Band {
	if !(distance > 0) {
		return 0
	}
	for b := Band(0); b < BandCount-1; b++ {
		if distance < BandStep*float64(b+1) {
			return b
		}
	}
	return BandCount - 1
}

// Color returns the fixed colour of the band.
func (b Band) Color() color.NRGBA {
	if b < 0 {
		b = 0
	}
	if b >= BandCount {
		b = BandCount - 1
	}
	return bandColors[b]
}

// Range returns the half-open distance interval covered by the band. The
// upper bound of the last band is +Inf.
func (b Band) Range() (lo, hi float64) {
	lo = BandStep * float64(b)
	if b >= BandCount-1 {
		return lo, math.Inf(1)
	}
	return lo, lo + BandStep
}

// Hex returns the band colour as #RRGGBB.
func (b Band) Hex() string {
	c := b.Color()
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
}

// Corners returns the four corners of r in the order top-left, top-right,
// bottom-left, bottom-right. Right and bottom use the exclusive Max edge.
func Corners(r image.Rectangle) [4]image.Point {
	return [4]image.Point{
		{X: r.Min.X, Y: r.Min.Y},
		{X: r.Max.X, Y: r.Min.Y},
		{X: r.Min.X, Y: r.Max.Y},
		{X: r.Max.X, Y: r.Max.Y},
	}
}

// Union returns the smallest rectangle containing all of rs.
func Union(rs ...image.Rectangle) image.Rectangle {
	var u image.Rectangle
	for _, r := range rs {
		u = u.Union(r)
	}
	return u
}
