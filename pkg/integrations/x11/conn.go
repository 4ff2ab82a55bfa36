// Package x11 implements the desktop collaborators on an X11 session through
// the X protocol directly: pointer queries, monitor and work-area geometry,
// an XEmbed system tray icon and an ARGB click-through overlay.
package x11

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/logger"
)

// conn is a shared X connection with an atom cache
type conn struct {
	x      *xgb.Conn
	screen *xproto.ScreenInfo
	num    int
	root   xproto.Window
	log    logger.Logger

	mu    sync.Mutex
	atoms map[string]xproto.Atom

	done chan struct{}
}

func dial(display string, log logger.Logger) (*conn, error) {
	var (
		x   *xgb.Conn
		err error
	)
	if display == "" {
		x, err = xgb.NewConn()
	} else {
		x, err = xgb.NewConnDisplay(display)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	setup := xproto.Setup(x)
	screen := setup.DefaultScreen(x)

	c := &conn{
		x:      x,
		screen: screen,
		num:    x.DefaultScreen,
		root:   screen.Root,
		log:    log,
		atoms:  make(map[string]xproto.Atom),
		done:   make(chan struct{}),
	}
	go c.drain()
	return c, nil
}

// drain consumes events and asynchronous errors so they do not pile up in
// the connection's queue
func (c *conn) drain() {
	defer close(c.done)
	for {
		ev, err := c.x.WaitForEvent()
		if ev == nil && err == nil {
			return
		}
		if err != nil {
			c.log.Debug("X error: %v", err)
		}
	}
}

func (c *conn) atom(name string) (xproto.Atom, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(c.x, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to intern atom %s", name)
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

func (c *conn) getProperty(window xproto.Window, name string, atomType xproto.Atom, length uint32) ([]byte, error) {
	prop, err := c.atom(name)
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(c.x, false, window, prop, atomType, 0, length).Reply()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", name)
	}
	return reply.Value, nil
}

func (c *conn) setProperty32(window xproto.Window, name string, atomType xproto.Atom, values ...uint32) error {
	prop, err := c.atom(name)
	if err != nil {
		return err
	}
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return xproto.ChangePropertyChecked(c.x, xproto.PropModeReplace, window, prop, atomType, 32, uint32(len(values)), data).Check()
}

// selectionOwner returns the owner of the per-screen selection prefix+screen
func (c *conn) selectionOwner(prefix string) (xproto.Window, error) {
	sel, err := c.atom(fmt.Sprintf("%s%d", prefix, c.num))
	if err != nil {
		return 0, err
	}
	reply, err := xproto.GetSelectionOwner(c.x, sel).Reply()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to query %s owner", prefix)
	}
	return reply.Owner, nil
}

// argbVisual finds a 32-bit TrueColor visual
func (c *conn) argbVisual() (xproto.Visualid, bool) {
	for _, d := range c.screen.AllowedDepths {
		if d.Depth != 32 {
			continue
		}
		for _, v := range d.Visuals {
			if v.Class == xproto.VisualClassTrueColor {
				return v.VisualId, true
			}
		}
	}
	return 0, false
}

// depthOf returns the depth of visual, or 0 if the screen has no such visual
func (c *conn) depthOf(visual xproto.Visualid) byte {
	for _, d := range c.screen.AllowedDepths {
		for _, v := range d.Visuals {
			if v.VisualId == visual {
				return d.Depth
			}
		}
	}
	return 0
}

func (c *conn) close() {
	c.x.Close()
	<-c.done
}
