package x11

import (
	"image"

	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/overlay"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// surface is a click-through, override-redirect ARGB window. Elements are
// composited client side and only damaged areas are uploaded.
type surface struct {
	c      *conn
	win    xproto.Window
	gc     xproto.Gcontext
	cmap   xproto.Colormap
	comp   *overlay.Compositor
	closed bool
}

// Acquire creates an overlay window covering bounds. It needs a running
// compositing manager, a 32-bit visual and the SHAPE extension for input
// pass-through.
func (b *Backend) Acquire(bounds image.Rectangle) (desktop.Overlay, error) {
	if bounds.Empty() {
		return nil, errors.New("empty overlay bounds")
	}
	if !b.shape {
		return nil, errors.Wrap(desktop.ErrUnavailable, "SHAPE extension missing")
	}
	owner, err := b.c.selectionOwner("_NET_WM_CM_S")
	if err != nil {
		return nil, err
	}
	if owner == 0 {
		return nil, errors.Wrap(desktop.ErrUnavailable, "no compositing manager")
	}
	visual, ok := b.c.argbVisual()
	if !ok {
		return nil, errors.Wrap(desktop.ErrUnavailable, "no 32-bit visual")
	}

	c := b.c
	s := &surface{c: c, comp: overlay.New(bounds.Size())}

	if s.cmap, err = xproto.NewColormapId(c.x); err != nil {
		return nil, errors.Wrap(err, "failed to allocate colormap id")
	}
	if err := xproto.CreateColormapChecked(c.x, xproto.ColormapAllocNone, s.cmap, c.root, visual).Check(); err != nil {
		return nil, errors.Wrap(err, "failed to create colormap")
	}
	if s.win, err = xproto.NewWindowId(c.x); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to allocate window id")
	}

	mask := uint32(xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwOverrideRedirect | xproto.CwColormap)
	values := []uint32{0, 0, 1, uint32(s.cmap)}
	err = xproto.CreateWindowChecked(c.x, 32, s.win, c.root,
		int16(bounds.Min.X), int16(bounds.Min.Y), uint16(bounds.Dx()), uint16(bounds.Dy()), 0,
		xproto.WindowClassInputOutput, visual, mask, values).Check()
	if err != nil {
		s.win = 0
		s.Close()
		return nil, errors.Wrap(err, "failed to create overlay window")
	}

	// an empty input region lets every click through
	err = shape.RectanglesChecked(c.x, shape.SoSet, shape.SkInput, xproto.ClipOrderingUnsorted, s.win, 0, 0, nil).Check()
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to clear input shape")
	}

	if typ, err := c.atom("_NET_WM_WINDOW_TYPE_NOTIFICATION"); err == nil {
		c.setProperty32(s.win, "_NET_WM_WINDOW_TYPE", xproto.AtomAtom, uint32(typ))
	}

	if s.gc, err = xproto.NewGcontextId(c.x); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to allocate gc id")
	}
	if err := xproto.CreateGCChecked(c.x, s.gc, xproto.Drawable(s.win), 0, nil).Check(); err != nil {
		s.gc = 0
		s.Close()
		return nil, errors.Wrap(err, "failed to create gc")
	}

	if err := xproto.MapWindowChecked(c.x, s.win).Check(); err != nil {
		s.Close()
		return nil, errors.Wrap(err, "failed to map overlay")
	}
	xproto.ConfigureWindow(c.x, s.win, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove})

	return s, nil
}

func (s *surface) Add(e desktop.Element)    { s.comp.Add(e) }
func (s *surface) Remove(e desktop.Element) { s.comp.Remove(e) }

func (s *surface) Present() error {
	if s.closed {
		return errors.New("overlay is closed")
	}
	dmg := s.comp.Compose()
	if dmg.Empty() {
		return nil
	}
	data := zpixmap(s.comp.Image(), dmg)
	return errors.Wrap(putImage(s.c, xproto.Drawable(s.win), s.gc, 32, dmg, data), "failed to present overlay")
}

func (s *surface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.gc != 0 {
		xproto.FreeGC(s.c.x, s.gc)
	}
	if s.win != 0 {
		err = xproto.DestroyWindowChecked(s.c.x, s.win).Check()
	}
	if s.cmap != 0 {
		xproto.FreeColormap(s.c.x, s.cmap)
	}
	return errors.Wrap(err, "failed to destroy overlay")
}
