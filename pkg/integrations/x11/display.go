package x11

import (
	"encoding/binary"
	"image"

	"github.com/jezek/xgb/xinerama"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// Pointer returns the pointer position in root-window pixels
func (b *Backend) Pointer() (image.Point, error) {
	reply, err := xproto.QueryPointer(b.c.x, b.c.root).Reply()
	if err != nil {
		return image.Point{}, errors.Wrap(err, "failed to query pointer")
	}
	if !reply.SameScreen {
		return image.Point{}, errors.Wrap(desktop.ErrUnavailable, "pointer is on another screen")
	}
	return image.Pt(int(reply.RootX), int(reply.RootY)), nil
}

// PrimaryMonitor returns the monitor holding the root origin, with the
// EWMH work area of the current desktop clipped to it
func (b *Backend) PrimaryMonitor() (desktop.Monitor, error) {
	monitors := b.monitors()
	primary := pickPrimary(monitors)

	area, ok := b.workArea()
	if !ok {
		return desktop.Monitor{Bounds: primary, WorkArea: primary}, nil
	}
	wa := area.Intersect(primary)
	if wa.Empty() {
		wa = primary
	}
	return desktop.Monitor{Bounds: primary, WorkArea: wa}, nil
}

// VirtualBounds returns the union of all monitors
func (b *Backend) VirtualBounds() (image.Rectangle, error) {
	var u image.Rectangle
	for _, m := range b.monitors() {
		u = u.Union(m)
	}
	if u.Empty() {
		return u, errors.Wrap(desktop.ErrUnavailable, "no monitors")
	}
	return u, nil
}

func (b *Backend) rootBounds() image.Rectangle {
	return image.Rect(0, 0, int(b.c.screen.WidthInPixels), int(b.c.screen.HeightInPixels))
}

// monitors lists Xinerama heads, or the whole root window when Xinerama is
// unavailable or inactive
func (b *Backend) monitors() []image.Rectangle {
	if !b.xinerama {
		return []image.Rectangle{b.rootBounds()}
	}
	reply, err := xinerama.QueryScreens(b.c.x).Reply()
	if err != nil || len(reply.ScreenInfo) == 0 {
		return []image.Rectangle{b.rootBounds()}
	}

	out := make([]image.Rectangle, 0, len(reply.ScreenInfo))
	for _, s := range reply.ScreenInfo {
		out = append(out, image.Rect(int(s.XOrg), int(s.YOrg), int(s.XOrg)+int(s.Width), int(s.YOrg)+int(s.Height)))
	}
	return out
}

// workArea reads _NET_WORKAREA for _NET_CURRENT_DESKTOP
func (b *Backend) workArea() (image.Rectangle, bool) {
	cur := uint32(0)
	if data, err := b.c.getProperty(b.c.root, "_NET_CURRENT_DESKTOP", xproto.AtomCardinal, 1); err == nil && len(data) >= 4 {
		cur = binary.LittleEndian.Uint32(data)
	}

	data, err := b.c.getProperty(b.c.root, "_NET_WORKAREA", xproto.AtomCardinal, 4*64)
	if err != nil {
		return image.Rectangle{}, false
	}
	return parseWorkArea(data, cur)
}

// parseWorkArea decodes the x, y, width, height quadruple of desktop idx
func parseWorkArea(data []byte, idx uint32) (image.Rectangle, bool) {
	off := int(idx) * 16
	if off+16 > len(data) {
		if len(data) < 16 {
			return image.Rectangle{}, false
		}
		off = 0
	}
	v := func(i int) int {
		return int(int32(binary.LittleEndian.Uint32(data[off+i*4:])))
	}
	r := image.Rect(v(0), v(1), v(0)+v(2), v(1)+v(3))
	if r.Empty() {
		return image.Rectangle{}, false
	}
	return r, true
}

// pickPrimary returns the monitor containing the origin, else the first one
func pickPrimary(monitors []image.Rectangle) image.Rectangle {
	if len(monitors) == 0 {
		return image.Rectangle{}
	}
	for _, m := range monitors {
		if image.Pt(0, 0).In(m) {
			return m
		}
	}
	return monitors[0]
}
