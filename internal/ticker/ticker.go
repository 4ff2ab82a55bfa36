// Package ticker implements the proximity ticker: on a fixed cadence it reads
// the pointer, estimates the status slot anchor, renders a glyph pointing
// from the anchor to the pointer and swaps it into the status icon sink.
//
// A Ticker is not safe for concurrent use. All methods except Snapshot,
// Stats, Running and Interval must be called on the scheduler goroutine.
package ticker

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/anchor"
	"github.com/cursorbeacon/cursorbeacon/internal/glyph"
	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/internal/scheduler"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/geom"
)

// ErrInvalidInterval is returned by Configure for non-positive intervals
var ErrInvalidInterval = errors.New("ticker: interval must be positive")

const (
	DefaultInterval = 100 * time.Millisecond
	DefaultOffsetX  = 100
)

// Sample is the outcome of one successful tick
type Sample struct {
	At       time.Time   `json:"at"`
	Pointer  image.Point `json:"pointer"`
	Anchor   image.Point `json:"anchor"`
	Bearing  float64     `json:"bearing"`
	Distance float64     `json:"distance"`
	Band     geom.Band   `json:"band"`
	Color    string      `json:"color"`
}

// Stats counts ticker activity since construction
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Published uint64 `json:"published"`
	Skipped   uint64 `json:"skipped"`
	Live      int32  `json:"live_handles"`
}

// Ticker is the proximity ticker
type Ticker struct {
	sched   *scheduler.Scheduler
	pointer desktop.PointerSource
	sink    desktop.StatusIcon
	probe   desktop.DisplayProbe
	log     logger.Logger

	interval  time.Duration
	offset    anchor.Offset
	timer     *scheduler.Timer
	current   desktop.IconHandle
	pending   desktop.IconHandle // uploaded, not yet shown or retired
	observers []func(Sample)

	last      atomic.Pointer[Sample]
	running   atomic.Bool
	period    atomic.Int64
	ticks     atomic.Uint64
	published atomic.Uint64
	skipped   atomic.Uint64
	live      atomic.Int32
}

// New creates a stopped ticker with the default cadence and offset
func New(sched *scheduler.Scheduler, pointer desktop.PointerSource, sink desktop.StatusIcon, probe desktop.DisplayProbe, log logger.Logger) *Ticker {
	if log == nil {
		log = logger.Noop()
	}
	t := &Ticker{
		sched:    sched,
		pointer:  pointer,
		sink:     sink,
		probe:    probe,
		log:      log,
		interval: DefaultInterval,
		offset:   anchor.Offset{X: DefaultOffsetX},
	}
	t.period.Store(int64(DefaultInterval))
	return t
}

// Configure sets the cadence and anchor offset. A running ticker keeps its
// already scheduled tick; the new interval applies from the one after.
func (t *Ticker) Configure(interval time.Duration, offset anchor.Offset) error {
	if interval <= 0 {
		return errors.Wrapf(ErrInvalidInterval, "got %v", interval)
	}
	t.interval = interval
	t.offset = offset
	t.period.Store(int64(interval))
	if t.timer != nil && t.timer.Active() {
		t.timer.SetInterval(interval)
	}
	return nil
}

// Start begins periodic ticking. Starting a running ticker is a no-op and
// does not reset its phase.
func (t *Ticker) Start() {
	if t.timer != nil && t.timer.Active() {
		return
	}
	t.timer = t.sched.Every(t.interval, t.Tick)
	t.running.Store(true)
	t.log.Debug("started with %v interval", t.interval)
}

// Stop halts ticking. The displayed glyph stays on screen and remains owned
// by the ticker until it is replaced or Close is called.
func (t *Ticker) Stop() {
	if t.timer == nil {
		return
	}
	t.timer.Stop()
	t.timer = nil
	t.running.Store(false)
	t.log.Debug("stopped")
}

// Idle stops ticking and shows img (typically glyph.Default) in place of the
// proximity glyph. The previous glyph is retired.
func (t *Ticker) Idle(img *image.RGBA) error {
	t.Stop()
	h, err := t.sink.NewHandle(img)
	if err != nil {
		return errors.Wrap(err, "failed to upload idle glyph")
	}
	t.live.Add(1)
	if err := t.publish(h); err != nil {
		return err
	}
	t.last.Store(nil)
	return nil
}

// Close stops ticking and retires the displayed glyph
func (t *Ticker) Close() error {
	t.Stop()
	if t.current == nil {
		return nil
	}
	err := t.retire(t.current)
	t.current = nil
	return err
}

// Tick runs one sample/render/publish cycle. Failures abandon the cycle and
// are only logged at debug level; the next scheduled tick is the retry.
func (t *Ticker) Tick() {
	t.ticks.Add(1)
	defer func() {
		if r := recover(); r != nil {
			t.abandon()
			t.skipped.Add(1)
			t.log.Debug("tick skipped: panic: %v", r)
		}
	}()

	s, err := t.tick()
	if err != nil {
		t.skipped.Add(1)
		t.log.Debug("tick skipped: %v", err)
		return
	}

	t.published.Add(1)
	t.last.Store(s)
	for _, fn := range t.observers {
		fn(*s)
	}
}

func (t *Ticker) tick() (*Sample, error) {
	ptr, err := t.pointer.Pointer()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read pointer")
	}

	anc := anchor.Resolve(t.sink, t.probe, t.offset)
	bearing := geom.Bearing(anc, ptr)
	distance := geom.Distance(anc, ptr)

	g := glyph.Render(bearing, distance)

	h, err := t.sink.NewHandle(g.Image)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upload glyph")
	}
	t.live.Add(1)
	t.pending = h

	if err := t.publish(h); err != nil {
		return nil, err
	}

	return &Sample{
		At:       t.sched.Now(),
		Pointer:  ptr,
		Anchor:   anc,
		Bearing:  bearing,
		Distance: distance,
		Band:     g.Band,
		Color:    g.Band.Hex(),
	}, nil
}

// publish shows h and retires the handle it replaces. If the sink rejects
// h, h is retired instead and the previous handle stays current.
func (t *Ticker) publish(h desktop.IconHandle) error {
	if err := t.sink.SetImage(h); err != nil {
		t.pending = nil
		if rerr := t.retire(h); rerr != nil {
			t.log.Debug("failed to release rejected glyph: %v", rerr)
		}
		return errors.Wrap(err, "failed to publish glyph")
	}

	t.pending = nil
	prev := t.current
	t.current = h
	if prev != nil {
		if err := t.retire(prev); err != nil {
			t.log.Debug("failed to release previous glyph: %v", err)
		}
	}
	return nil
}

// abandon retires a handle whose cycle was cut short before it was shown
func (t *Ticker) abandon() {
	h := t.pending
	if h == nil {
		return
	}
	t.pending = nil
	if err := t.retire(h); err != nil {
		t.log.Debug("failed to release abandoned glyph: %v", err)
	}
}

// retire releases a handle. It is never referenced again, so it counts as
// retired even when the release itself reports an error.
func (t *Ticker) retire(h desktop.IconHandle) error {
	t.live.Add(-1)
	return h.Release()
}

// Subscribe registers fn to receive every published sample. fn runs on the
// scheduler goroutine and must not block.
func (t *Ticker) Subscribe(fn func(Sample)) {
	t.observers = append(t.observers, fn)
}

// Snapshot returns the last published sample. Safe from any goroutine.
func (t *Ticker) Snapshot() (Sample, bool) {
	s := t.last.Load()
	if s == nil {
		return Sample{}, false
	}
	return *s, true
}

// Stats returns activity counters. Safe from any goroutine.
func (t *Ticker) Stats() Stats {
	return Stats{
		Ticks:     t.ticks.Load(),
		Published: t.published.Load(),
		Skipped:   t.skipped.Load(),
		Live:      t.live.Load(),
	}
}

// Running reports whether ticking is scheduled. Safe from any goroutine.
func (t *Ticker) Running() bool {
	return t.running.Load()
}

// Interval returns the configured cadence. Safe from any goroutine.
func (t *Ticker) Interval() time.Duration {
	return time.Duration(t.period.Load())
}

func (s Sample) String() string {
	return fmt.Sprintf("pointer=%v anchor=%v bearing=%.1f° distance=%.0fpx band=%d",
		s.Pointer, s.Anchor, s.Bearing, s.Distance, s.Band)
}
