package animator

import (
	"image"
	"image/color"
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/geom"
	"github.com/cursorbeacon/cursorbeacon/pkg/raster"
)

// element is an overlay element with its own timeline
type element interface {
	desktop.Element

	// step advances to elapsed (time since the session started) and reports
	// whether the element's timeline is over
	step(elapsed time.Duration) bool

	// end is the elapsed time at which the element finishes
	end() time.Duration
}

// Marker timings and geometry
const (
	MarkerMove   = 300 * time.Millisecond
	MarkerFade   = 200 * time.Millisecond
	markerWidth  = 30.0
	markerHeight = 40.0
	markerStroke = 2.0
)

// markerShape is a 30x40 arrowhead pointing up with a notched tail
var markerShape = []raster.Pt{{X: 15, Y: 0}, {X: 30, Y: 40}, {X: 15, Y: 30}, {X: 0, Y: 40}}

// markerReach bounds the rotated shape around its centre, stroke and
// anti-aliasing included
var markerReach = int(math.Ceil(math.Hypot(markerWidth/2, markerHeight/2)+markerStroke)) + 1

var markerOutline = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Marker flies from a corner of the overlay to the target, then fades out.
// It is rotated once so its tip faces the target.
type Marker struct {
	Corner image.Point
	Target image.Point
	Angle  float64

	fill    color.NRGBA
	x, y    *gween.Tween
	fade    *gween.Tween
	pos     raster.Pt
	opacity float64
}

// NewMarker creates a marker at corner heading for target
func NewMarker(corner, target image.Point, fill color.NRGBA) *Marker {
	ms := float32(MarkerMove.Milliseconds())
	return &Marker{
		Corner:  corner,
		Target:  target,
		Angle:   geom.Bearing(corner, target) + 90,
		fill:    fill,
		x:       gween.New(float32(corner.X), float32(target.X), ms, ease.OutQuad),
		y:       gween.New(float32(corner.Y), float32(target.Y), ms, ease.OutQuad),
		fade:    gween.New(1, 0, float32(MarkerFade.Milliseconds()), ease.Linear),
		pos:     raster.Pt{X: float64(corner.X), Y: float64(corner.Y)},
		opacity: 1,
	}
}

func (m *Marker) step(elapsed time.Duration) bool {
	t := float32(elapsed.Milliseconds())
	x, _ := m.x.Set(t)
	y, _ := m.y.Set(t)
	o, done := m.fade.Set(t - float32(MarkerMove.Milliseconds()))
	m.pos = raster.Pt{X: float64(x), Y: float64(y)}
	m.opacity = float64(o)
	return done
}

func (m *Marker) end() time.Duration {
	return MarkerMove + MarkerFade
}

// Position returns the marker centre
func (m *Marker) Position() raster.Pt {
	return m.pos
}

// Opacity returns the current opacity in [0, 1]
func (m *Marker) Opacity() float64 {
	return m.opacity
}

func (m *Marker) Bounds() image.Rectangle {
	cx, cy := int(math.Round(m.pos.X)), int(math.Round(m.pos.Y))
	return image.Rect(cx-markerReach, cy-markerReach, cx+markerReach, cy+markerReach)
}

func (m *Marker) Draw(dst *image.RGBA) {
	if m.opacity <= 0 {
		return
	}
	c := raster.NewCanvas(dst)
	xf := raster.Translate(m.pos.X, m.pos.Y).
		Multiply(raster.Rotate(m.Angle)).
		Multiply(raster.Translate(-markerWidth/2, -markerHeight/2))
	c.Polygon(xf, markerShape, fade(m.fill, m.opacity))
	c.Outline(xf, markerShape, markerStroke, fade(markerOutline, m.opacity))
}

// Ring timings and geometry
const (
	RingStagger  = 200 * time.Millisecond
	RingGrow     = 800 * time.Millisecond
	ringFrom     = 20.0
	ringTo       = 200.0
	ringStroke   = 4.0
	ringAAMargin = 1
)

// Ring expands from the target while fading out. Until its delay has passed
// it sits at its initial size and opacity.
type Ring struct {
	Center image.Point
	Delay  time.Duration

	col      color.NRGBA
	size     *gween.Tween
	alpha    *gween.Tween
	diameter float64
	opacity  float64
}

// NewRing creates a ring centred on center starting after delay
func NewRing(center image.Point, delay time.Duration, col color.NRGBA) *Ring {
	ms := float32(RingGrow.Milliseconds())
	return &Ring{
		Center:   center,
		Delay:    delay,
		col:      col,
		size:     gween.New(ringFrom, ringTo, ms, ease.OutQuad),
		alpha:    gween.New(1, 0, ms, ease.Linear),
		diameter: ringFrom,
		opacity:  1,
	}
}

func (r *Ring) step(elapsed time.Duration) bool {
	t := float32((elapsed - r.Delay).Milliseconds())
	d, _ := r.size.Set(t)
	o, done := r.alpha.Set(t)
	r.diameter = float64(d)
	r.opacity = float64(o)
	return done
}

func (r *Ring) end() time.Duration {
	return r.Delay + RingGrow
}

// Diameter returns the current outer diameter
func (r *Ring) Diameter() float64 {
	return r.diameter
}

// Opacity returns the current opacity in [0, 1]
func (r *Ring) Opacity() float64 {
	return r.opacity
}

func (r *Ring) Bounds() image.Rectangle {
	rad := int(math.Ceil(r.diameter/2)) + ringAAMargin
	return image.Rect(r.Center.X-rad, r.Center.Y-rad, r.Center.X+rad, r.Center.Y+rad)
}

func (r *Ring) Draw(dst *image.RGBA) {
	if r.opacity <= 0 {
		return
	}
	center := raster.Pt{X: float64(r.Center.X), Y: float64(r.Center.Y)}
	raster.NewCanvas(dst).Ring(center, r.diameter, ringStroke, fade(r.col, r.opacity))
}

func fade(c color.NRGBA, opacity float64) color.NRGBA {
	c.A = uint8(math.Round(float64(c.A) * math.Max(0, math.Min(1, opacity))))
	return c
}
