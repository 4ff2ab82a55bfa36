package x11

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"

	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// System tray protocol opcodes
const (
	trayRequestDock = 0
	xembedMapped    = 1
)

// Tray is a status icon docked into the freedesktop system tray via XEmbed.
// Handles are server-side pixmaps; the window shows one as its background.
type Tray struct {
	c      *conn
	win    xproto.Window
	gc     xproto.Gcontext
	cmap   xproto.Colormap
	depth  byte
	argb   bool
	bg     color.NRGBA
	closed bool
}

type pixmapHandle struct {
	c        *conn
	owner    *Tray
	pix      xproto.Pixmap
	released bool
}

func (h *pixmapHandle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	return xproto.FreePixmapChecked(h.c.x, h.pix).Check()
}

func newTray(c *conn, bg color.NRGBA) (*Tray, error) {
	manager, err := c.selectionOwner("_NET_SYSTEM_TRAY_S")
	if err != nil {
		return nil, err
	}
	if manager == 0 {
		return nil, errors.Wrap(desktop.ErrUnavailable, "no system tray manager")
	}

	t := &Tray{c: c, bg: bg, depth: c.screen.RootDepth}
	visual := c.screen.RootVisual

	// trays that composite icons advertise an ARGB visual
	if data, err := c.getProperty(manager, "_NET_SYSTEM_TRAY_VISUAL", xproto.AtomVisualid, 1); err == nil && len(data) >= 4 {
		v := xproto.Visualid(binary.LittleEndian.Uint32(data))
		if c.depthOf(v) == 32 {
			visual, t.depth, t.argb = v, 32, true
		}
	}

	t.win, err = xproto.NewWindowId(c.x)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate window id")
	}

	var mask uint32
	var values []uint32
	if t.argb {
		t.cmap, err = xproto.NewColormapId(c.x)
		if err != nil {
			return nil, errors.Wrap(err, "failed to allocate colormap id")
		}
		if err := xproto.CreateColormapChecked(c.x, xproto.ColormapAllocNone, t.cmap, c.root, visual).Check(); err != nil {
			return nil, errors.Wrap(err, "failed to create colormap")
		}
		mask = xproto.CwBackPixel | xproto.CwBorderPixel | xproto.CwColormap
		values = []uint32{0, 0, uint32(t.cmap)}
	} else {
		mask = xproto.CwBackPixel
		values = []uint32{uint32(bg.R)<<16 | uint32(bg.G)<<8 | uint32(bg.B)}
	}

	err = xproto.CreateWindowChecked(c.x, t.depth, t.win, c.root, 0, 0, 16, 16, 0,
		xproto.WindowClassInputOutput, visual, mask, values).Check()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create tray window")
	}

	t.gc, err = xproto.NewGcontextId(c.x)
	if err != nil {
		t.Close()
		return nil, errors.Wrap(err, "failed to allocate gc id")
	}
	if err := xproto.CreateGCChecked(c.x, t.gc, xproto.Drawable(t.win), 0, nil).Check(); err != nil {
		t.Close()
		return nil, errors.Wrap(err, "failed to create gc")
	}

	infoType, err := c.atom("_XEMBED_INFO")
	if err != nil {
		t.Close()
		return nil, err
	}
	if err := c.setProperty32(t.win, "_XEMBED_INFO", infoType, 0, xembedMapped); err != nil {
		t.Close()
		return nil, errors.Wrap(err, "failed to set _XEMBED_INFO")
	}

	if err := t.dock(manager); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tray) dock(manager xproto.Window) error {
	opcode, err := t.c.atom("_NET_SYSTEM_TRAY_OPCODE")
	if err != nil {
		return err
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: manager,
		Type:   opcode,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{xproto.TimeCurrentTime, trayRequestDock, uint32(t.win), 0, 0}),
	}
	err = xproto.SendEventChecked(t.c.x, false, manager, xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	return errors.Wrap(err, "failed to dock into system tray")
}

// size is the window size the tray has given the icon
func (t *Tray) size() image.Point {
	g, err := xproto.GetGeometry(t.c.x, xproto.Drawable(t.win)).Reply()
	if err != nil || g.Width == 0 || g.Height == 0 {
		return image.Pt(16, 16)
	}
	return image.Pt(int(g.Width), int(g.Height))
}

// NewHandle uploads img, centered in the icon window, into a new pixmap
func (t *Tray) NewHandle(img *image.RGBA) (desktop.IconHandle, error) {
	if t.closed {
		return nil, errors.New("tray is closed")
	}

	sz := t.size()
	if b := img.Bounds().Size(); b.X > sz.X || b.Y > sz.Y {
		sz = image.Pt(max(sz.X, b.X), max(sz.Y, b.Y))
	}

	canvas := image.NewRGBA(image.Rectangle{Max: sz})
	draw.Draw(canvas, centered(sz, img.Bounds().Size()), img, img.Bounds().Min, draw.Src)

	var data []byte
	if t.argb {
		data = zpixmap(canvas, canvas.Bounds())
	} else {
		data = zpixmapOver(canvas, canvas.Bounds(), t.bg)
	}

	pix, err := xproto.NewPixmapId(t.c.x)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate pixmap id")
	}
	if err := xproto.CreatePixmapChecked(t.c.x, t.depth, pix, xproto.Drawable(t.win), uint16(sz.X), uint16(sz.Y)).Check(); err != nil {
		return nil, errors.Wrap(err, "failed to create pixmap")
	}

	h := &pixmapHandle{c: t.c, owner: t, pix: pix}
	if err := putImage(t.c, xproto.Drawable(pix), t.gc, t.depth, canvas.Bounds(), data); err != nil {
		h.Release()
		return nil, errors.Wrap(err, "failed to upload glyph")
	}
	return h, nil
}

// SetImage makes h the window background and repaints. The server keeps its
// own reference, so the previous pixmap may be freed right after.
func (t *Tray) SetImage(h desktop.IconHandle) error {
	ph, ok := h.(*pixmapHandle)
	if !ok || ph.owner != t {
		return errors.New("handle was not created by this tray")
	}
	if ph.released {
		return errors.New("handle already released")
	}

	err := xproto.ChangeWindowAttributesChecked(t.c.x, t.win, xproto.CwBackPixmap, []uint32{uint32(ph.pix)}).Check()
	if err != nil {
		return errors.Wrap(err, "failed to set icon pixmap")
	}
	return xproto.ClearAreaChecked(t.c.x, false, t.win, 0, 0, 0, 0).Check()
}

// Location returns the icon center once the tray has embedded and mapped it
func (t *Tray) Location() (image.Point, bool) {
	attrs, err := xproto.GetWindowAttributes(t.c.x, t.win).Reply()
	if err != nil || attrs.MapState != xproto.MapStateViewable {
		return image.Point{}, false
	}
	tr, err := xproto.TranslateCoordinates(t.c.x, t.win, t.c.root, 0, 0).Reply()
	if err != nil || !tr.SameScreen {
		return image.Point{}, false
	}
	sz := t.size()
	return image.Pt(int(tr.DstX)+sz.X/2, int(tr.DstY)+sz.Y/2), true
}

func (t *Tray) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	if t.gc != 0 {
		xproto.FreeGC(t.c.x, t.gc)
	}
	err := xproto.DestroyWindowChecked(t.c.x, t.win).Check()
	if t.cmap != 0 {
		xproto.FreeColormap(t.c.x, t.cmap)
	}
	return errors.Wrap(err, "failed to destroy tray window")
}
