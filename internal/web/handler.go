package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/cursorbeacon/cursorbeacon/internal/config"
	"github.com/cursorbeacon/cursorbeacon/internal/glyph"
	"github.com/cursorbeacon/cursorbeacon/internal/models"
	"github.com/cursorbeacon/cursorbeacon/internal/reporter"
	"github.com/cursorbeacon/cursorbeacon/internal/settings"
	"github.com/cursorbeacon/cursorbeacon/internal/ticker"
)

// Engine is the running proximity engine as seen from HTTP handlers. All
// methods must be safe to call from any goroutine.
type Engine interface {
	Snapshot() (ticker.Sample, bool)
	Stats() ticker.Stats
	Running() bool
	Interval() time.Duration
	ActiveSessions() int
	DisplayServer() string

	// Locate queues a converge animation and returns immediately
	Locate(trigger string)
}

// History is the activation history the API exposes
type History interface {
	reporter.Source
	GetActivationsSince(since time.Time, limit int) ([]*models.Activation, error)
	GetLatest() (*models.Activation, error)
}

// SettingsSource reads the persisted operator settings
type SettingsSource interface {
	Load() (settings.Settings, error)
}

type Handler struct {
	config   *config.Config
	engine   Engine
	repo     History
	settings SettingsSource
	reporter *reporter.Reporter
	hub      *Hub
}

func NewHandler(cfg *config.Config, engine Engine, repo History, store SettingsSource, hub *Hub) *Handler {
	return &Handler{
		config:   cfg,
		engine:   engine,
		repo:     repo,
		settings: store,
		reporter: reporter.New(repo),
		hub:      hub,
	}
}

func (h *Handler) SetupRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/glyph.png", h.handleGlyph).Methods(http.MethodGet)
	// method checked in the handler: mux reports a later path miss as 404
	api.HandleFunc("/locate", h.handleLocate)
	api.HandleFunc("/activations", h.handleActivations).Methods(http.MethodGet)
	api.HandleFunc("/activations/latest", h.handleLatestActivation).Methods(http.MethodGet)
	api.HandleFunc("/report", h.handleReport).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.handleSettings).Methods(http.MethodGet)
	api.HandleFunc("/stream", h.handleStream).Methods(http.MethodGet)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/", h.handleIndex).Methods(http.MethodGet)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"running":         h.engine.Running(),
		"interval":        h.engine.Interval().String(),
		"active_sessions": h.engine.ActiveSessions(),
		"display_server":  h.engine.DisplayServer(),
		"sink":            h.config.Sink.Kind,
		"stats":           h.engine.Stats(),
	}
	if s, ok := h.engine.Snapshot(); ok {
		status["sample"] = s
	}
	if h.hub != nil {
		status["stream_clients"] = h.hub.Clients()
	}
	respondJSON(w, status)
}

func (h *Handler) handleGlyph(w http.ResponseWriter, r *http.Request) {
	img := glyph.Default()
	if s, ok := h.engine.Snapshot(); ok {
		img = glyph.Render(s.Bearing, s.Distance).Image
	}

	data, err := glyph.EncodePNG(img)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode glyph: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

func (h *Handler) handleLocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.engine.Locate(models.TriggerHTTP)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func (h *Handler) handleActivations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 100 // default
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		limit = l
	}

	since := time.Now().Add(-24 * time.Hour)
	if periodType := query.Get("period"); periodType != "" {
		period, err := reporter.GetPeriod(periodType, time.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		since = period.Start
	}

	activations, err := h.repo.GetActivationsSince(since, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch activations: %v", err), http.StatusInternalServerError)
		return
	}
	if activations == nil {
		activations = []*models.Activation{}
	}
	respondJSON(w, activations)
}

func (h *Handler) handleLatestActivation(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetLatest()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch latest activation: %v", err), http.StatusInternalServerError)
		return
	}
	if a == nil {
		http.Error(w, "No activations found", http.StatusNotFound)
		return
	}
	respondJSON(w, a)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	if _, err := reporter.GetPeriod(periodType, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusInternalServerError)
		return
	}
	respondJSON(w, report)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Load()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to load settings: %v", err), http.StatusInternalServerError)
		return
	}
	interval, _ := st.Interval()
	respondJSON(w, map[string]interface{}{
		"settings": st,
		"interval": interval.String(),
	})
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "Stream disabled", http.StatusServiceUnavailable)
		return
	}
	var initial *ticker.Sample
	if s, ok := h.engine.Snapshot(); ok {
		initial = &s
	}
	h.hub.Serve(w, r, initial)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>cursorbeacon</title>
    <style>
        :root {
            --bg-primary: #1a1a1a;
            --bg-secondary: #2d2d2d;
            --text-primary: #e0e0e0;
            --text-muted: #a0a0a0;
            --accent-color: #00bfff;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            padding: 20px;
        }
        .box {
            background: var(--bg-secondary);
            border-radius: 8px;
            padding: 24px;
            margin-bottom: 20px;
            max-width: 480px;
        }
        h1 { font-size: 1.6rem; margin: 0 0 20px; }
        #glyph { width: 64px; height: 64px; image-rendering: pixelated; }
        .muted { color: var(--text-muted); }
        button {
            background: var(--accent-color);
            border: none;
            border-radius: 50px;
            padding: 8px 20px;
            font-size: 1rem;
            cursor: pointer;
        }
    </style>
</head>
<body>
    <h1>cursorbeacon</h1>
    <div class="box">
        <img id="glyph" src="/api/glyph.png" alt="glyph">
        <p id="sample" class="muted">waiting for samples...</p>
        <button onclick="fetch('/api/locate', {method: 'POST'})">Locate pointer</button>
    </div>
    <script>
        const proto = location.protocol === 'https:' ? 'wss:' : 'ws:';
        const ws = new WebSocket(proto + '//' + location.host + '/api/stream');
        ws.onmessage = (ev) => {
            const s = JSON.parse(ev.data);
            document.getElementById('sample').textContent =
                'bearing ' + s.bearing.toFixed(1) + '°, distance ' + Math.round(s.distance) + 'px, band ' + s.band;
            document.getElementById('glyph').src = '/api/glyph.png?t=' + Date.now();
        };
    </script>
</body>
</html>`
