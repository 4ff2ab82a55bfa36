package app

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorbeacon/cursorbeacon/internal/animator"
	"github.com/cursorbeacon/cursorbeacon/internal/config"
	"github.com/cursorbeacon/cursorbeacon/internal/glyph"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
	"github.com/cursorbeacon/cursorbeacon/internal/scheduler"
	"github.com/cursorbeacon/cursorbeacon/internal/settings"
	"github.com/cursorbeacon/cursorbeacon/internal/ticker"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop"
	"github.com/cursorbeacon/cursorbeacon/pkg/desktop/desktoptest"
)

type fakeRecorder struct {
	mu          sync.Mutex
	activations []animator.Report
	triggers    []string
	errors      map[string][]error
}

func (r *fakeRecorder) RecordActivation(rep animator.Report, trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activations = append(r.activations, rep)
	r.triggers = append(r.triggers, trigger)
}

func (r *fakeRecorder) RecordError(source string, err error, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors == nil {
		r.errors = make(map[string][]error)
	}
	r.errors[source] = append(r.errors[source], err)
}

type fakeSettings struct {
	st  settings.Settings
	err error
}

func (f *fakeSettings) Load() (settings.Settings, error) {
	if f.err != nil {
		return settings.Default(), f.err
	}
	return f.st, nil
}

type fixture struct {
	svc      *Service
	sched    *scheduler.Scheduler
	pointer  *desktoptest.Pointer
	sink     *desktoptest.StatusIcon
	overlays *desktoptest.Overlays
	settings *fakeSettings
	rec      *fakeRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sched:    scheduler.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		pointer:  &desktoptest.Pointer{Pos: image.Pt(1900, 660)},
		sink:     &desktoptest.StatusIcon{},
		overlays: &desktoptest.Overlays{},
		settings: &fakeSettings{st: settings.Default()},
		rec:      &fakeRecorder{},
	}
	desk := Desktop{
		Pointer:  f.pointer,
		Display:  desktoptest.SingleDisplay(1920, 1080, 40),
		Overlays: f.overlays,
		Sink:     f.sink,
		Server:   "x11",
	}
	f.svc = NewService(config.Default(), f.sched, desk, f.settings, f.rec, nil)
	return f
}

func (f *fixture) boot() {
	f.sched.Post(f.svc.boot)
	f.sched.Advance(0)
}

func TestBootShowsIdleGlyphThenTicks(t *testing.T) {
	f := newFixture(t)
	f.boot()

	require.Len(t, f.sink.Published, 1)
	assert.Equal(t, glyph.Default().Pix, f.sink.Published[0].Image.Pix)
	assert.True(t, f.svc.Running())
	assert.Equal(t, 100*time.Millisecond, f.svc.Interval())

	_, ok := f.svc.Snapshot()
	assert.False(t, ok)

	f.sched.Advance(100 * time.Millisecond)
	s, ok := f.svc.Snapshot()
	require.True(t, ok)
	assert.Equal(t, image.Pt(1900, 660), s.Pointer)
	assert.Equal(t, 1, f.sink.Live())
	assert.Equal(t, "x11", f.svc.DisplayServer())
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	var got []ticker.Sample
	f.svc.Subscribe(func(s ticker.Sample) { got = append(got, s) })
	f.boot()

	f.sched.Advance(300 * time.Millisecond)
	assert.Len(t, got, 3)
}

func TestLocateRecordsActivation(t *testing.T) {
	f := newFixture(t)
	f.boot()

	f.svc.Locate(models.TriggerSignal)
	f.sched.Advance(0)
	assert.Equal(t, 1, f.svc.ActiveSessions())
	require.Len(t, f.overlays.Acquired, 1)

	f.sched.Advance(1200 * time.Millisecond)
	assert.Equal(t, 0, f.svc.ActiveSessions())
	assert.True(t, f.overlays.Acquired[0].Closed)

	require.Len(t, f.rec.activations, 1)
	assert.Equal(t, animator.OutcomeCompleted, f.rec.activations[0].Outcome)
	assert.Equal(t, image.Pt(1900, 660), f.rec.activations[0].Target)
	assert.Equal(t, []string{models.TriggerSignal}, f.rec.triggers)
}

func TestOverlappingLocatesKeepTheirTriggers(t *testing.T) {
	f := newFixture(t)
	f.boot()

	f.svc.Locate(models.TriggerSignal)
	f.sched.Advance(300 * time.Millisecond)
	f.svc.Locate(models.TriggerHTTP)
	f.sched.Advance(2 * time.Second)

	assert.Equal(t, []string{models.TriggerSignal, models.TriggerHTTP}, f.rec.triggers)
	assert.Empty(t, f.svc.triggers)
}

func TestLocateFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.boot()
	f.overlays.Err = errors.Wrap(desktop.ErrUnavailable, "no compositing manager")

	f.svc.Locate(models.TriggerHTTP)
	f.sched.Advance(0)

	assert.Empty(t, f.rec.activations)
	require.Len(t, f.rec.errors[models.SourceActivate], 1)
	assert.ErrorIs(t, f.rec.errors[models.SourceActivate][0], desktop.ErrUnavailable)
	assert.True(t, f.svc.Running(), "ticker unaffected")
}

type failingOverlay struct{ desktoptest.Overlay }

func (o *failingOverlay) Present() error { return errors.New("connection lost") }

type failingOverlays struct{}

func (failingOverlays) Acquire(bounds image.Rectangle) (desktop.Overlay, error) {
	return &failingOverlay{desktoptest.Overlay{Bounds: bounds, Elements: make(map[desktop.Element]bool)}}, nil
}

func TestSessionEndingInsideActivateKeepsTrigger(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(config.Default(), f.sched, Desktop{
		Pointer:  f.pointer,
		Display:  desktoptest.SingleDisplay(1920, 1080, 40),
		Overlays: failingOverlays{},
		Sink:     f.sink,
	}, f.settings, f.rec, nil)
	f.boot()

	f.svc.Locate(models.TriggerHTTP)
	f.sched.Advance(0)

	require.Len(t, f.rec.activations, 1)
	assert.Equal(t, animator.OutcomeAborted, f.rec.activations[0].Outcome)
	assert.Equal(t, []string{models.TriggerHTTP}, f.rec.triggers)
	assert.Equal(t, "unknown", f.svc.DisplayServer())
}

func TestReloadDisablesAndEnables(t *testing.T) {
	f := newFixture(t)
	f.boot()
	f.sched.Advance(200 * time.Millisecond)
	require.True(t, f.svc.Running())

	f.settings.st.Enabled = false
	f.svc.Reload()
	f.sched.Advance(0)

	assert.False(t, f.svc.Running())
	assert.Equal(t, glyph.Default().Pix, f.sink.Current().Image.Pix)
	_, ok := f.svc.Snapshot()
	assert.False(t, ok)

	published := len(f.sink.Published)
	f.sched.Advance(time.Second)
	assert.Len(t, f.sink.Published, published, "no ticks while disabled")

	f.settings.st = settings.Settings{Enabled: true, Frequency: settings.FrequencyLow, OffsetX: 50}
	f.svc.Reload()
	f.sched.Advance(0)
	assert.True(t, f.svc.Running())
	assert.Equal(t, 500*time.Millisecond, f.svc.Interval())

	f.sched.Advance(500 * time.Millisecond)
	assert.Len(t, f.sink.Published, published+1)
	assert.Equal(t, 1, f.sink.Live())
}

func TestSettingsFailureFallsBackToDefaults(t *testing.T) {
	f := newFixture(t)
	f.settings.err = errors.New("corrupt settings")
	f.boot()

	assert.True(t, f.svc.Running())
	assert.Equal(t, 100*time.Millisecond, f.svc.Interval())
	assert.Len(t, f.rec.errors[models.SourceSettings], 1)
}

func TestShutdownRetiresEverything(t *testing.T) {
	f := newFixture(t)
	f.boot()
	f.sched.Advance(100 * time.Millisecond)
	f.svc.Locate(models.TriggerSignal)
	f.sched.Advance(0)

	f.svc.shutdown()

	assert.Equal(t, 0, f.sink.Live())
	assert.Equal(t, 0, f.svc.ActiveSessions())
	assert.True(t, f.overlays.Acquired[0].Closed)
	require.Len(t, f.rec.activations, 1)
	assert.Equal(t, animator.OutcomeAborted, f.rec.activations[0].Outcome)
}

func TestStartRequiresWallClock(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Start(t.Context())
	assert.ErrorIs(t, err, scheduler.ErrManualClock)
}
