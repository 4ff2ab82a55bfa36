// Package app wires the proximity ticker and the converge animator to a
// desktop backend and runs them on one scheduler goroutine.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/animator"
	"github.com/cursorbeacon/cursorbeacon/internal/config"
	"github.com/cursorbeacon/cursorbeacon/internal/glyph"
	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
	"github.com/cursorbeacon/cursorbeacon/internal/scheduler"
	"github.com/cursorbeacon/cursorbeacon/internal/settings"
	"github.com/cursorbeacon/cursorbeacon/internal/ticker"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
)

// ErrAlreadyRunning is returned by Start on a running service
var ErrAlreadyRunning = errors.New("service is already running")

// Desktop is the set of collaborators the engine drives
type Desktop struct {
	Pointer  desktop.PointerSource
	Display  desktop.DisplayProbe
	Overlays desktop.OverlayProvider
	Sink     desktop.StatusIcon
	Server   string
}

// Recorder receives finished sessions and failures
type Recorder interface {
	RecordActivation(rep animator.Report, trigger string)
	RecordError(source string, err error, at time.Time)
}

// SettingsStore loads operator settings
type SettingsStore interface {
	Load() (settings.Settings, error)
}

type Service struct {
	config   *config.Config
	sched    *scheduler.Scheduler
	desk     Desktop
	ticker   *ticker.Ticker
	animator *animator.Animator
	settings SettingsStore
	recorder Recorder
	log      logger.Logger

	running atomic.Bool

	// scheduler goroutine only
	triggers   map[string]string
	activating string
}

func NewService(cfg *config.Config, sched *scheduler.Scheduler, desk Desktop, store SettingsStore, rec Recorder, log logger.Logger) *Service {
	if log == nil {
		log = logger.Noop()
	}
	if desk.Server == "" {
		desk.Server = "unknown"
	}

	s := &Service{
		config:   cfg,
		sched:    sched,
		desk:     desk,
		settings: store,
		recorder: rec,
		log:      log,
		triggers: make(map[string]string),
	}

	s.ticker = ticker.New(sched, desk.Pointer, desk.Sink, desk.Display, log)

	acfg := animator.Config{
		FrameInterval: cfg.Animator.FrameInterval,
		MarkerColor:   cfg.MarkerColor(),
		RingColor:     cfg.RingColor(),
	}
	s.animator = animator.New(sched, desk.Pointer, desk.Display, desk.Overlays, acfg, log)
	s.animator.OnFinish(s.finished)

	return s
}

// Subscribe forwards every published proximity sample to fn. Call before
// Start; fn runs on the scheduler goroutine and must not block.
func (s *Service) Subscribe(fn func(ticker.Sample)) {
	s.ticker.Subscribe(fn)
}

// Start shows the idle glyph, applies the stored settings and runs the
// scheduler until ctx is done. The displayed glyph is retired and running
// animations are aborted before Start returns.
func (s *Service) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.sched.Post(s.boot)
	err := s.sched.Run(ctx)
	s.shutdown()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) boot() {
	if err := s.ticker.Idle(glyph.Default()); err != nil {
		s.log.Warn("Failed to show idle glyph: %v", err)
	}
	s.applySettings()
}

func (s *Service) shutdown() {
	s.animator.Abort()
	if err := s.ticker.Close(); err != nil {
		s.log.Debug("failed to retire glyph: %v", err)
	}
}

// Reload re-reads the operator settings. Safe from any goroutine.
func (s *Service) Reload() {
	s.sched.Post(s.applySettings)
}

// Locate starts a converge animation. Safe from any goroutine.
func (s *Service) Locate(trigger string) {
	s.sched.Post(func() { s.activate(trigger) })
}

func (s *Service) applySettings() {
	st, err := s.settings.Load()
	if err != nil {
		s.log.Warn("Failed to load settings, using defaults: %v", err)
		s.record(models.SourceSettings, err)
	}

	interval, err := st.Interval()
	if err != nil {
		s.log.Warn("Ignoring settings: %v", err)
		s.record(models.SourceSettings, err)
		st = settings.Default()
		interval, _ = st.Interval()
	}

	if err := s.ticker.Configure(interval, st.Offset()); err != nil {
		s.log.Warn("Failed to configure ticker: %v", err)
		return
	}

	switch {
	case st.Enabled && !s.ticker.Running():
		s.ticker.Start()
		s.log.Info("Proximity glyph enabled (%v, offset %d,%d)", interval, st.OffsetX, st.OffsetY)
	case !st.Enabled && s.ticker.Running():
		if err := s.ticker.Idle(glyph.Default()); err != nil {
			s.log.Warn("Failed to show idle glyph: %v", err)
		}
		s.log.Info("Proximity glyph disabled")
	default:
		s.log.Debug("settings applied: %s", st)
	}
}

func (s *Service) activate(trigger string) {
	s.activating = trigger
	sess, err := s.animator.Activate()
	s.activating = ""

	if err != nil {
		s.log.Warn("Locate failed: %v", err)
		s.record(models.SourceActivate, err)
		return
	}
	if !sess.Done() {
		s.triggers[sess.ID] = trigger
	}
}

func (s *Service) finished(rep animator.Report) {
	trigger, ok := s.triggers[rep.ID]
	if ok {
		delete(s.triggers, rep.ID)
	} else {
		// ended inside Activate
		trigger = s.activating
	}
	if s.recorder != nil {
		s.recorder.RecordActivation(rep, trigger)
	}
}

func (s *Service) record(source string, err error) {
	if s.recorder != nil {
		s.recorder.RecordError(source, err, s.sched.Now())
	}
}

// Snapshot returns the last proximity sample
func (s *Service) Snapshot() (ticker.Sample, bool) { return s.ticker.Snapshot() }

// Stats returns ticker counters
func (s *Service) Stats() ticker.Stats { return s.ticker.Stats() }

// Running reports whether the proximity glyph is live
func (s *Service) Running() bool { return s.ticker.Running() }

func (s *Service) Interval() time.Duration { return s.ticker.Interval() }

func (s *Service) ActiveSessions() int { return s.animator.Active() }

func (s *Service) DisplayServer() string { return s.desk.Server }
