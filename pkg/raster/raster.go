// Package raster draws anti-aliased strokes and fills onto RGBA images. Shapes
// are flattened to polygons and rasterized with golang.org/x/image/vector,
// one shape per pass so overlapping strokes composite instead of cancelling.
package raster

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// arcSteps is the number of segments used for a half circle.
const arcSteps = 10

// Pt is a point in floating pixel coordinates.
type Pt struct {
	X, Y float64
}

// Canvas draws shapes onto an RGBA image. The zero value is not usable; call
// NewCanvas.
type Canvas struct {
	dst *image.RGBA
	z   *vector.Rasterizer
}

// NewCanvas wraps dst.
func NewCanvas(dst *image.RGBA) *Canvas {
	return &Canvas{dst: dst, z: vector.NewRasterizer(1, 1)}
}

// Image returns the destination image.
func (c *Canvas) Image() *image.RGBA {
	return c.dst
}

// Line strokes a segment with round caps, transformed by m.
func (c *Canvas) Line(m Matrix, a, b Pt, width float64, col color.Color) {
	c.fill([][]Pt{capsule(m.Apply(a), m.Apply(b), width/2)}, col)
}

// Polygon fills a closed polygon, transformed by m.
func (c *Canvas) Polygon(m Matrix, pts []Pt, col color.Color) {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		out[i] = m.Apply(p)
	}
	c.fill([][]Pt{out}, col)
}

// Outline strokes the edges of a closed polygon, transformed by m.
func (c *Canvas) Outline(m Matrix, pts []Pt, width float64, col color.Color) {
	for i := range pts {
		c.Line(m, pts[i], pts[(i+1)%len(pts)], width, col)
	}
}

// Ring strokes a circle of the given diameter centred on center. The stroke
// lies inside the diameter, like a bordered ellipse.
func (c *Canvas) Ring(center Pt, diameter, width float64, col color.Color) {
	outer := diameter / 2
	inner := outer - width
	if outer <= 0 {
		return
	}
	paths := [][]Pt{circle(center, outer, false)}
	if inner > 0 {
		paths = append(paths, circle(center, inner, true))
	}
	c.fill(paths, col)
}

// fill rasterizes the given closed paths as one shape. The rasterizer is
// sized to the clipped bounding box; its origin maps onto box.Min.
func (c *Canvas) fill(paths [][]Pt, col color.Color) {
	box := boundsOf(paths).Intersect(c.dst.Bounds())
	if box.Empty() {
		return
	}

	c.z.Reset(box.Dx(), box.Dy())
	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	for _, path := range paths {
		if len(path) < 3 {
			continue
		}
		c.z.MoveTo(float32(path[0].X-ox), float32(path[0].Y-oy))
		for _, p := range path[1:] {
			c.z.LineTo(float32(p.X-ox), float32(p.Y-oy))
		}
		c.z.ClosePath()
	}
	c.z.Draw(c.dst, box, image.NewUniform(col), image.Point{})
}

func boundsOf(paths [][]Pt) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if minX > maxX {
		return image.Rectangle{}
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// capsule returns the outline of a segment thickened by r with round ends.
func capsule(a, b Pt, r float64) []Pt {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		dx, dy, length = 1, 0, 1
	}
	base := math.Atan2(dy, dx)

	pts := make([]Pt, 0, 2*(arcSteps+1))
	// Cap around b sweeps from -90 to +90 relative to the direction.
	for i := 0; i <= arcSteps; i++ {
		t := base - math.Pi/2 + math.Pi*float64(i)/arcSteps
		pts = append(pts, Pt{b.X + r*math.Cos(t), b.Y + r*math.Sin(t)})
	}
	for i := 0; i <= arcSteps; i++ {
		t := base + math.Pi/2 + math.Pi*float64(i)/arcSteps
		pts = append(pts, Pt{a.X + r*math.Cos(t), a.Y + r*math.Sin(t)})
	}
	return pts
}

// circle approximates a circle; reverse flips the winding to cut holes.
func circle(center Pt, r float64, reverse bool) []Pt {
	steps := int(math.Max(16, math.Min(128, r*2)))
	pts := make([]Pt, steps)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / float64(steps)
		if reverse {
			t = -t
		}
		pts[i] = Pt{center.X + r*math.Cos(t), center.Y + r*math.Sin(t)}
	}
	return pts
}
