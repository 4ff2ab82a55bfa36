// Package desktoptest provides in-memory desktop collaborators for tests.
package desktoptest

import (
	"image"
	"sync"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// Pointer is a scripted pointer source
type Pointer struct {
	mu    sync.Mutex
	Pos   image.Point
	Err   error
	Reads int
}

func (p *Pointer) Pointer() (image.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Reads++
	if p.Err != nil {
		return image.Point{}, p.Err
	}
	return p.Pos, nil
}

// Set moves the pointer
func (p *Pointer) Set(x, y int) {
	p.mu.Lock()
	p.Pos = image.Pt(x, y)
	p.mu.Unlock()
}

// Display is a static display probe
type Display struct {
	Primary  desktop.Monitor
	Monitors []image.Rectangle
	Err      error
}

// SingleDisplay returns a probe for one w x h monitor whose bottom strip of
// height panel is reserved.
func SingleDisplay(w, h, panel int) *Display {
	bounds := image.Rect(0, 0, w, h)
	return &Display{
		Primary:  desktop.Monitor{Bounds: bounds, WorkArea: image.Rect(0, 0, w, h-panel)},
		Monitors: []image.Rectangle{bounds},
	}
}

func (d *Display) PrimaryMonitor() (desktop.Monitor, error) {
	if d.Err != nil {
		return desktop.Monitor{}, d.Err
	}
	return d.Primary, nil
}

func (d *Display) VirtualBounds() (image.Rectangle, error) {
	if d.Err != nil {
		return image.Rectangle{}, d.Err
	}
	var u image.Rectangle
	for _, m := range d.Monitors {
		u = u.Union(m)
	}
	if u.Empty() {
		u = d.Primary.Bounds
	}
	return u, nil
}

// Handle is an icon handle tracked by StatusIcon
type Handle struct {
	ID       int
	Image    *image.RGBA
	released bool
	owner    *StatusIcon
}

func (h *Handle) Release() error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if h.released {
		return errors.Errorf("handle %d released twice", h.ID)
	}
	h.released = true
	h.owner.live--
	return nil
}

// Released reports whether Release was called
func (h *Handle) Released() bool {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	return h.released
}

// StatusIcon records handles and the currently displayed one
type StatusIcon struct {
	mu        sync.Mutex
	nextID    int
	live      int
	current   *Handle
	Published []*Handle

	Loc      image.Point
	HasLoc   bool
	NewErr   error
	SetErr   error
	Uploaded int
}

func (s *StatusIcon) NewHandle(img *image.RGBA) (desktop.IconHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NewErr != nil {
		return nil, s.NewErr
	}
	s.nextID++
	s.live++
	s.Uploaded++
	return &Handle{ID: s.nextID, Image: img, owner: s}, nil
}

func (s *StatusIcon) SetImage(h desktop.IconHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SetErr != nil {
		return s.SetErr
	}
	handle, ok := h.(*Handle)
	if !ok {
		return errors.New("foreign handle")
	}
	if handle.released {
		return errors.Errorf("handle %d already released", handle.ID)
	}
	s.current = handle
	s.Published = append(s.Published, handle)
	return nil
}

func (s *StatusIcon) Location() (image.Point, bool) {
	return s.Loc, s.HasLoc
}

// Live returns the number of handles created and not yet released
func (s *StatusIcon) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Current returns the displayed handle
func (s *StatusIcon) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Overlay records element traffic on one acquired surface
type Overlay struct {
	Bounds   image.Rectangle
	Elements map[desktop.Element]bool
	Added    int
	Removed  int
	Presents int
	Closed   bool
	ClosedAt int // number of Remove calls seen when Close ran
	Canvas   *image.RGBA
}

func (o *Overlay) Add(e desktop.Element) {
	o.Elements[e] = true
	o.Added++
}

func (o *Overlay) Remove(e desktop.Element) {
	if o.Elements[e] {
		delete(o.Elements, e)
		o.Removed++
	}
}

func (o *Overlay) Present() error {
	o.Presents++
	if o.Canvas != nil {
		for i := range o.Canvas.Pix {
			o.Canvas.Pix[i] = 0
		}
		for e := range o.Elements {
			e.Draw(o.Canvas)
		}
	}
	return nil
}

func (o *Overlay) Close() error {
	if o.Closed {
		return errors.New("overlay closed twice")
	}
	o.Closed = true
	o.ClosedAt = o.Removed
	return nil
}

// Overlays hands out recording overlays
type Overlays struct {
	Err      error
	Draw     bool
	Acquired []*Overlay
}

func (p *Overlays) Acquire(bounds image.Rectangle) (desktop.Overlay, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	o := &Overlay{Bounds: bounds, Elements: make(map[desktop.Element]bool)}
	if p.Draw {
		o.Canvas = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	}
	p.Acquired = append(p.Acquired, o)
	return o, nil
}
