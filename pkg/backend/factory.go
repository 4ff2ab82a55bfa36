// Package backend picks the desktop backend for the current session.
package backend

import (
	"image/color"
	"os"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/integrations/x11"
)

// Options configure the backend
type Options struct {
	// Display overrides $DISPLAY
	Display string

	// Background is used by sinks that cannot show transparency
	Background color.NRGBA

	Log logger.Logger
}

// New connects to the session's display server. Wayland sessions are served
// through XWayland when an X display is reachable.
func New(opts Options) (desktop.Backend, error) {
	log := opts.Log
	if log == nil {
		log = logger.Noop()
	}

	xopts := x11.Options{Display: opts.Display, Background: opts.Background, Log: log}

	switch server := DetectDisplayServer(); server {
	case "x11":
		return newX11(xopts)

	case "wayland":
		if opts.Display == "" && os.Getenv("DISPLAY") == "" {
			return nil, errors.Wrap(desktop.ErrUnavailable, "wayland session without XWayland")
		}
		log.Warn("Wayland session: using XWayland, the pointer is only visible over X clients")
		return newX11(xopts)

	default:
		if opts.Display != "" {
			return newX11(xopts)
		}
		return nil, errors.Wrapf(desktop.ErrUnavailable, "no display server detected (%s)", server)
	}
}

func newX11(opts x11.Options) (desktop.Backend, error) {
	b, err := x11.New(opts)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
