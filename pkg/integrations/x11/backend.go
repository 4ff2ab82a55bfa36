package x11

import (
	"image/color"
	"sync"

	"github.com/jezek/xgb/shape"
	"github.com/jezek/xgb/xinerama"

	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// Options configure a Backend
type Options struct {
	// Display is the X display name; empty means $DISPLAY
	Display string

	// Background is painted behind the glyph when the tray has no ARGB visual
	Background color.NRGBA

	Log logger.Logger
}

// Backend implements desktop.Backend for X11
type Backend struct {
	c        *conn
	bg       color.NRGBA
	xinerama bool
	shape    bool

	mu   sync.Mutex
	tray *Tray
}

// New connects to the X server and probes the extensions the backend uses
func New(opts Options) (*Backend, error) {
	log := opts.Log
	if log == nil {
		log = logger.Noop()
	}

	c, err := dial(opts.Display, log)
	if err != nil {
		return nil, err
	}

	b := &Backend{c: c, bg: opts.Background}

	if err := xinerama.Init(c.x); err == nil {
		if reply, err := xinerama.IsActive(c.x).Reply(); err == nil && reply.State != 0 {
			b.xinerama = true
		}
	} else {
		log.Debug("Xinerama unavailable: %v", err)
	}

	if err := shape.Init(c.x); err == nil {
		b.shape = true
	} else {
		log.Warn("SHAPE extension unavailable, overlays disabled: %v", err)
	}

	return b, nil
}

// StatusIcon docks an icon into the system tray on first use
func (b *Backend) StatusIcon() (desktop.StatusIcon, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tray != nil {
		return b.tray, nil
	}
	t, err := newTray(b.c, b.bg)
	if err != nil {
		return nil, err
	}
	b.tray = t
	return t, nil
}

// GetDisplayServer returns "x11"
func (b *Backend) GetDisplayServer() string {
	return "x11"
}

// Close undocks the tray icon and closes the connection
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.tray != nil {
		err = b.tray.Close()
		b.tray = nil
	}
	b.c.close()
	return err
}
