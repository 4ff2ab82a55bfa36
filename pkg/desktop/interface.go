package desktop

import (
	"image"

	"github.com/pkg/errors"
)

// ErrUnavailable is returned by collaborators that cannot serve the request on
// the current session (no tray manager, no compositor, pointer on another
// screen).
var ErrUnavailable = errors.New("desktop: unavailable")

// Monitor describes one physical display in root-window pixels
type Monitor struct {
	Bounds   image.Rectangle
	WorkArea image.Rectangle // Bounds minus reserved panel strips
}

// PointerSource yields the current pointer position in native pixels
type PointerSource interface {
	// Pointer returns the pointer position; it must not block indefinitely
	Pointer() (image.Point, error)
}

// DisplayProbe answers geometry questions about the attached displays
type DisplayProbe interface {
	// PrimaryMonitor returns the primary display with its usable work area
	PrimaryMonitor() (Monitor, error)

	// VirtualBounds returns the union of all display bounds
	VirtualBounds() (image.Rectangle, error)
}

// IconHandle is a native image resource owned by whoever created it. It must
// be released explicitly; sinks never free handles they are given.
type IconHandle interface {
	Release() error
}

// StatusIcon is the persistent status slot showing the proximity glyph
type StatusIcon interface {
	// NewHandle uploads img into a native resource the sink can display
	NewHandle(img *image.RGBA) (IconHandle, error)

	// SetImage makes h the displayed image. The previously displayed handle
	// stays alive until its owner releases it.
	SetImage(h IconHandle) error

	// Location reports where the slot is on screen, if the sink knows
	Location() (image.Point, bool)
}

// Element is anything drawn on an overlay
type Element interface {
	// Bounds is the area Draw may touch, in overlay-local pixels
	Bounds() image.Rectangle
	Draw(dst *image.RGBA)
}

// Overlay is a transparent, input-transparent, topmost surface
type Overlay interface {
	Add(e Element)
	Remove(e Element)

	// Present pushes the current element state to the screen
	Present() error

	Close() error
}

// OverlayProvider acquires overlay surfaces
type OverlayProvider interface {
	// Acquire creates a surface covering bounds (root-window pixels). Element
	// coordinates on the returned surface are relative to bounds.Min.
	Acquire(bounds image.Rectangle) (Overlay, error)
}

// Backend bundles the collaborators one display server provides
type Backend interface {
	PointerSource
	DisplayProbe
	OverlayProvider

	// StatusIcon returns the backend's own status slot (nil if it has none)
	StatusIcon() (StatusIcon, error)

	// GetDisplayServer returns the display server type ("x11")
	GetDisplayServer() string

	// Close cleans up any resources used by the backend
	Close() error
}
