// Package animator implements the converge animation that reveals the
// pointer: four markers fly in from the overlay corners while three rings
// expand around the pointer. Each activation is an independent session that
// owns one overlay surface and closes it when its last element finishes.
package animator

import (
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/internal/scheduler"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/geom"
)

// RingCount is the number of staggered rings per activation
const RingCount = 3

// Session outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// Config tunes the effect
type Config struct {
	FrameInterval time.Duration
	MarkerColor   color.NRGBA
	RingColor     color.NRGBA
}

// DefaultConfig returns a 16ms frame, tomato markers and deep sky blue rings
func DefaultConfig() Config {
	return Config{
		FrameInterval: 16 * time.Millisecond,
		MarkerColor:   color.NRGBA{R: 0xFF, G: 0x63, B: 0x47, A: 0xFF},
		RingColor:     color.NRGBA{R: 0x00, G: 0xBF, B: 0xFF, A: 0xFF},
	}
}

// Report summarises a finished session
type Report struct {
	ID       string
	Target   image.Point // root-window pixels
	Bounds   image.Rectangle
	Elements int
	Started  time.Time
	Duration time.Duration
	Outcome  string
	Err      error
}

// Animator starts converge sessions. Methods other than Active must be
// called on the scheduler goroutine.
type Animator struct {
	sched    *scheduler.Scheduler
	pointer  desktop.PointerSource
	probe    desktop.DisplayProbe
	overlays desktop.OverlayProvider
	cfg      Config
	log      logger.Logger

	sessions map[string]*Session
	finish   []func(Report)
	active   atomic.Int32
}

// New creates an animator
func New(sched *scheduler.Scheduler, pointer desktop.PointerSource, probe desktop.DisplayProbe, overlays desktop.OverlayProvider, cfg Config, log logger.Logger) *Animator {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Animator{
		sched:    sched,
		pointer:  pointer,
		probe:    probe,
		overlays: overlays,
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*Session),
	}
}

// OnFinish registers fn to receive a report when a session ends
func (a *Animator) OnFinish(fn func(Report)) {
	a.finish = append(a.finish, fn)
}

// Active returns the number of running sessions. Safe from any goroutine.
func (a *Animator) Active() int {
	return int(a.active.Load())
}

// Activate reads the pointer, acquires an overlay over the whole virtual
// screen and starts the effect. The first frame is drawn before Activate
// returns. On error nothing is left on screen.
func (a *Animator) Activate() (*Session, error) {
	bounds, err := a.probe.VirtualBounds()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read screen bounds")
	}
	if bounds.Empty() {
		return nil, errors.Wrap(desktop.ErrUnavailable, "empty screen bounds")
	}

	ptr, err := a.pointer.Pointer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pointer")
	}

	ov, err := a.overlays.Acquire(bounds)
	if err != nil {
		return nil, errors.Wrap(err, "failed to acquire overlay")
	}

	s := &Session{
		ID:      uuid.NewString(),
		Target:  ptr,
		Bounds:  bounds,
		Started: a.sched.Now(),
		a:       a,
		overlay: ov,
	}

	// overlay-local coordinates from here on
	local := ptr.Sub(bounds.Min)
	size := image.Rect(0, 0, bounds.Dx(), bounds.Dy())
	for _, corner := range geom.Corners(size) {
		s.elements = append(s.elements, NewMarker(corner, local, a.cfg.MarkerColor))
	}
	for i := 0; i < RingCount; i++ {
		s.elements = append(s.elements, NewRing(local, time.Duration(i)*RingStagger, a.cfg.RingColor))
	}
	s.live = len(s.elements)
	s.finished = make([]bool, len(s.elements))
	for _, e := range s.elements {
		ov.Add(e)
	}

	a.sessions[s.ID] = s
	a.active.Add(1)
	a.log.Debug("session %s started at %v on %v", s.ID, ptr, bounds)

	s.frame()
	return s, nil
}

// Abort ends every running session immediately
func (a *Animator) Abort() {
	for _, s := range a.sessions {
		s.end(OutcomeAborted, nil)
	}
}

// Session is one activation
type Session struct {
	ID      string
	Target  image.Point
	Bounds  image.Rectangle
	Started time.Time

	a        *Animator
	overlay  desktop.Overlay
	elements []element
	finished []bool
	live     int
	timer    *scheduler.Timer
	done     bool
}

// Live returns the number of elements still animating
func (s *Session) Live() int {
	return s.live
}

// Done reports whether the session has ended
func (s *Session) Done() bool {
	return s.done
}

// Markers returns the session's corner markers
func (s *Session) Markers() []*Marker {
	var out []*Marker
	for _, e := range s.elements {
		if m, ok := e.(*Marker); ok {
			out = append(out, m)
		}
	}
	return out
}

// Rings returns the session's rings
func (s *Session) Rings() []*Ring {
	var out []*Ring
	for _, e := range s.elements {
		if r, ok := e.(*Ring); ok {
			out = append(out, r)
		}
	}
	return out
}

// frame advances every live element, retires finished ones and schedules
// the next frame no later than the next element deadline.
func (s *Session) frame() {
	s.timer = nil
	if s.done {
		return
	}
	elapsed := s.a.sched.Now().Sub(s.Started)

	next := s.a.cfg.FrameInterval
	for i, e := range s.elements {
		if s.finished[i] {
			continue
		}
		if e.step(elapsed) {
			s.finished[i] = true
			s.overlay.Remove(e)
			s.live--
			continue
		}
		if d := e.end() - elapsed; d < next {
			next = d
		}
	}

	if s.live == 0 {
		s.end(OutcomeCompleted, nil)
		return
	}

	if err := s.overlay.Present(); err != nil {
		s.end(OutcomeAborted, errors.Wrap(err, "failed to present frame"))
		return
	}
	s.timer = s.a.sched.After(next, s.frame)
}

func (s *Session) end(outcome string, err error) {
	if s.done {
		return
	}
	s.done = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if cerr := s.overlay.Close(); cerr != nil {
		s.a.log.Debug("session %s: failed to close overlay: %v", s.ID, cerr)
	}

	a := s.a
	delete(a.sessions, s.ID)
	a.active.Add(-1)

	r := Report{
		ID:       s.ID,
		Target:   s.Target,
		Bounds:   s.Bounds,
		Elements: len(s.elements),
		Started:  s.Started,
		Duration: a.sched.Now().Sub(s.Started),
		Outcome:  outcome,
		Err:      err,
	}
	if err != nil {
		a.log.Warn("session %s %s: %v", s.ID, outcome, err)
	} else {
		a.log.Debug("session %s %s after %v", s.ID, outcome, r.Duration)
	}
	for _, fn := range a.finish {
		fn(r)
	}
}
