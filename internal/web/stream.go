package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/cursorbeacon/cursorbeacon/internal/logger"
	"github.com/cursorbeacon/cursorbeacon/internal/ticker"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

type streamClient struct {
	send chan ticker.Sample
}

// Hub fans proximity samples out to websocket clients. Publish never
// blocks; a client that falls behind loses samples.
type Hub struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
	closed  bool
	log     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Noop()
	}
	return &Hub{
		clients: make(map[*streamClient]struct{}),
		log:     log,
	}
}

// Publish delivers s to every connected client
func (h *Hub) Publish(s ticker.Sample) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- s:
		default:
		}
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register() (*streamClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &streamClient{send: make(chan ticker.Sample, sendBuffer)}
	h.clients[c] = struct{}{}
	return c, true
}

func (h *Hub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Serve upgrades the request and streams samples until either side goes
// away. initial, if set, is sent first.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial *ticker.Sample) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Debug("websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	c, ok := h.register()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.unregister(c)

	// clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer closes
	ctx := conn.CloseRead(r.Context())

	if initial != nil {
		if err := writeSample(ctx, conn, *initial); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case s, ok := <-c.send:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			if err := writeSample(ctx, conn, s); err != nil {
				h.log.Debug("stream write failed: %v", err)
				return
			}

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func writeSample(ctx context.Context, conn *websocket.Conn, s ticker.Sample) error {
	wctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(wctx, conn, s)
}
