// Package anchor estimates where the status slot sits on screen. The slot's
// real position is rarely queryable, so the estimate is derived from the
// reserved panel strip on the primary display plus an operator offset.
// Consumers must tolerate a constant bias.
package anchor

import (
	"image"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// Offset shifts the estimated anchor. X counts leftward from the display's
// right edge for horizontal strips; Y counts from the strip centre line.
type Offset struct {
	X int `json:"offset_x"`
	Y int `json:"offset_y"`
}

// Edge is the display edge hosting the reserved panel strip
type Edge int

const (
	EdgeNone Edge = iota
	EdgeBottom
	EdgeTop
	EdgeRight
	EdgeLeft
)

func (e Edge) String() string {
	switch e {
	case EdgeBottom:
		return "bottom"
	case EdgeTop:
		return "top"
	case EdgeRight:
		return "right"
	case EdgeLeft:
		return "left"
	default:
		return "none"
	}
}

// Fallback is assumed when the display probe fails
var Fallback = desktop.Monitor{
	Bounds:   image.Rect(0, 0, 1920, 1080),
	WorkArea: image.Rect(0, 0, 1920, 1080),
}

// cornerInset is the distance from the bottom edge used when no strip exists
const cornerInset = 20

// Detect infers which edge hosts the panel by comparing bounds and work
// area, checking bottom, top, right, left in that order.
func Detect(m desktop.Monitor) Edge {
	b, w := m.Bounds, m.WorkArea
	switch {
	case w.Max.Y < b.Max.Y:
		return EdgeBottom
	case w.Min.Y > b.Min.Y:
		return EdgeTop
	case w.Max.X < b.Max.X:
		return EdgeRight
	case w.Min.X > b.Min.X:
		return EdgeLeft
	}
	return EdgeNone
}

// Estimate applies the strip heuristic to one monitor
func Estimate(m desktop.Monitor, off Offset) image.Point {
	b, w := m.Bounds, m.WorkArea
	switch Detect(m) {
	case EdgeBottom:
		h := b.Max.Y - w.Max.Y
		return image.Pt(b.Max.X-off.X, w.Max.Y+h/2+off.Y)
	case EdgeTop:
		h := w.Min.Y - b.Min.Y
		return image.Pt(b.Max.X-off.X, b.Min.Y+h/2+off.Y)
	case EdgeRight:
		width := b.Max.X - w.Max.X
		return image.Pt(w.Max.X+width/2+off.X, b.Max.Y-off.Y)
	case EdgeLeft:
		width := w.Min.X - b.Min.X
		return image.Pt(b.Min.X+width/2-off.X, b.Max.Y-off.Y)
	}
	return image.Pt(b.Max.X-off.X, b.Max.Y-cornerInset+off.Y)
}

// Resolve returns the anchor point. A location reported by the sink wins;
// otherwise the primary monitor is estimated, and if it cannot be read the
// Fallback monitor is.
func Resolve(sink desktop.StatusIcon, probe desktop.DisplayProbe, off Offset) image.Point {
	if sink != nil {
		if p, ok := sink.Location(); ok {
			return p
		}
	}
	if probe != nil {
		if m, err := probe.PrimaryMonitor(); err == nil && !m.Bounds.Empty() {
			return Estimate(m, off)
		}
	}
	return Estimate(Fallback, off)
}
