package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorbeacon/cursorbeacon/internal/config"
	"github.com/cursorbeacon/cursorbeacon/internal/glyph"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
	"github.com/cursorbeacon/cursorbeacon/internal/settings"
	"github.com/cursorbeacon/cursorbeacon/internal/ticker"
)

type fakeEngine struct {
	mu       sync.Mutex
	sample   ticker.Sample
	hasShot  bool
	locates  []string
	sessions int
}

func (e *fakeEngine) Snapshot() (ticker.Sample, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sample, e.hasShot
}

func (e *fakeEngine) Stats() ticker.Stats {
	return ticker.Stats{Ticks: 12, Published: 10, Skipped: 2, Live: 1}
}

func (e *fakeEngine) Running() bool { return true }
func (e *fakeEngine) Interval() time.Duration { return 100 * time.Millisecond }
func (e *fakeEngine) ActiveSessions() int { return e.sessions }
func (e *fakeEngine) DisplayServer() string { return "x11" }

func (e *fakeEngine) Locate(trigger string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locates = append(e.locates, trigger)
}

type fakeHistory struct {
	activations []*models.Activation
	err         error
	since       time.Time
	limit       int
}

func (f *fakeHistory) GetActivationsSince(since time.Time, limit int) ([]*models.Activation, error) {
	f.since, f.limit = since, limit
	return f.activations, f.err
}

func (f *fakeHistory) GetLatest() (*models.Activation, error) {
	if f.err != nil || len(f.activations) == 0 {
		return nil, f.err
	}
	return f.activations[0], nil
}

func (f *fakeHistory) GetOutcomeSummarySince(time.Time) ([]models.OutcomeSummary, error) {
	return []models.OutcomeSummary{{Outcome: "completed", Count: 3, AvgDurationMs: 1200}}, f.err
}

func (f *fakeHistory) GetHourSummarySince(time.Time) ([]models.HourSummary, error) {
	return nil, f.err
}

func (f *fakeHistory) CountErrorsSince(time.Time, string) (int64, error) {
	return 1, f.err
}

type fakeSettings struct {
	st  settings.Settings
	err error
}

func (f fakeSettings) Load() (settings.Settings, error) { return f.st, f.err }

func sampleAt() ticker.Sample {
	return ticker.Sample{
		At:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Pointer:  image.Pt(1900, 660),
		Anchor:   image.Pt(1900, 1060),
		Bearing:  -90,
		Distance: 400,
		Band:     1,
		Color:    "#ff2d00",
	}
}

func newTestServer(t *testing.T, engine *fakeEngine, repo *fakeHistory, st SettingsSource) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(nil)
	h := NewHandler(config.Default(), engine, repo, st, hub)
	r := mux.NewRouter()
	h.SetupRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv, hub
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeHistory{}, fakeSettings{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestStatus(t *testing.T) {
	engine := &fakeEngine{sample: sampleAt(), hasShot: true, sessions: 2}
	srv, _ := newTestServer(t, engine, &fakeHistory{}, fakeSettings{})

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Running        bool          `json:"running"`
		Interval       string        `json:"interval"`
		ActiveSessions int           `json:"active_sessions"`
		DisplayServer  string        `json:"display_server"`
		Stats          ticker.Stats  `json:"stats"`
		Sample         ticker.Sample `json:"sample"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Running)
	assert.Equal(t, "100ms", body.Interval)
	assert.Equal(t, 2, body.ActiveSessions)
	assert.Equal(t, "x11", body.DisplayServer)
	assert.Equal(t, uint64(2), body.Stats.Skipped)
	assert.Equal(t, 400.0, body.Sample.Distance)
}

func TestGlyph(t *testing.T) {
	t.Run("idle", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeEngine{}, &fakeHistory{}, fakeSettings{})
		resp, err := http.Get(srv.URL + "/api/glyph.png")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		img, err := png.Decode(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, glyph.Size, img.Bounds().Dx())
	})

	t.Run("matches snapshot", func(t *testing.T) {
		s := sampleAt()
		srv, _ := newTestServer(t, &fakeEngine{sample: s, hasShot: true}, &fakeHistory{}, fakeSettings{})
		resp, err := http.Get(srv.URL + "/api/glyph.png")
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)

		want, err := glyph.EncodePNG(glyph.Render(s.Bearing, s.Distance).Image)
		require.NoError(t, err)
		assert.Equal(t, want, buf.Bytes())
	})
}

func TestLocate(t *testing.T) {
	engine := &fakeEngine{}
	srv, _ := newTestServer(t, engine, &fakeHistory{}, fakeSettings{})

	resp, err := http.Post(srv.URL+"/api/locate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, []string{models.TriggerHTTP}, engine.locates)

	resp, err = http.Get(srv.URL + "/api/locate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	assert.Len(t, engine.locates, 1, "rejected methods do not trigger")
}

func TestActivations(t *testing.T) {
	repo := &fakeHistory{activations: []*models.Activation{
		{SessionID: "b", Outcome: "completed", DurationMs: 1200},
		{SessionID: "a", Outcome: "aborted", DurationMs: 300},
	}}
	srv, _ := newTestServer(t, &fakeEngine{}, repo, fakeSettings{})

	resp, err := http.Get(srv.URL + "/api/activations?limit=5&period=week")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []models.Activation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].SessionID)
	assert.Equal(t, 5, repo.limit)

	resp, err = http.Get(srv.URL + "/api/activations?period=decade")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActivationsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeHistory{}, fakeSettings{})

	resp, err := http.Get(srv.URL + "/api/activations")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))

	resp, err = http.Get(srv.URL + "/api/activations/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRepositoryFailure(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeHistory{err: errors.New("disk gone")}, fakeSettings{})

	for _, path := range []string{"/api/activations", "/api/activations/latest", "/api/report"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, path)
	}
}

func TestReport(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeHistory{}, fakeSettings{})

	resp, err := http.Get(srv.URL + "/api/report?period=week")
	require.NoError(t, err)
	defer resp.Body.Close()

	var rep models.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rep))
	assert.Equal(t, "week", rep.Period.Type)
	assert.Equal(t, 3, rep.Activations)
	assert.Equal(t, 1, rep.Failures)
}

func TestSettingsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{}, &fakeHistory{}, fakeSettings{st: settings.Default()})

	resp, err := http.Get(srv.URL + "/api/settings")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Settings settings.Settings `json:"settings"`
		Interval string            `json:"interval"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, settings.FrequencyMedium, body.Settings.Frequency)
	assert.Equal(t, "100ms", body.Interval)

	srv, _ = newTestServer(t, &fakeEngine{}, &fakeHistory{}, fakeSettings{err: errors.New("locked")})
	resp, err = http.Get(srv.URL + "/api/settings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestStream(t *testing.T) {
	first := sampleAt()
	srv, hub := newTestServer(t, &fakeEngine{sample: first, hasShot: true}, &fakeHistory{}, fakeSettings{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var got ticker.Sample
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, first.Distance, got.Distance)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	next := first
	next.Bearing = 45
	next.Distance = 20
	hub.Publish(next)

	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, 45.0, got.Bearing)
	assert.Equal(t, 20.0, got.Distance)

	hub.Close()
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
