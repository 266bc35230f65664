package devserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"github.com/wolfeidau/pagepack/internal/telemetry"
)

const (
	LiveReloadPath       = "/__pagepack/livereload"
	LiveReloadScriptPath = "/__pagepack/livereload.js"

	// LiveReloadSnippet is injected into every page built for the dev server.
	LiveReloadSnippet = `<script src="` + LiveReloadScriptPath + `"></script>`

	ReloadMessage = "reload"
)

const liveReloadScript = `(function () {
  var scheme = location.protocol === "https:" ? "wss://" : "ws://";
  function connect() {
    var ws = new WebSocket(scheme + location.host + "` + LiveReloadPath + `");
    ws.onmessage = function (ev) {
      if (ev.data === "` + ReloadMessage + `") {
        location.reload();
      }
    };
    ws.onclose = function () {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
`

// Hub tracks connected browsers and tells them to reload.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	logger  zerolog.Logger
	server  websocket.Server
}

func NewHub(logger zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		logger:  logger,
	}
	// no origin check, pages may be opened via any local host name
	h.server = websocket.Server{Handler: h.handle}
	return h
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.server.ServeHTTP(w, r)
}

func (h *Hub) handle(ws *websocket.Conn) {
	_ = ws.SetDeadline(time.Time{})

	h.add(ws)
	defer h.remove(ws)

	// reads only detect the client going away
	var msg string
	for {
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			return
		}
	}
}

func (h *Hub) add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	telemetry.GetMetrics().ReloadClients.Add(context.Background(), 1)
	h.logger.Debug().Int("clients", n).Msg("Live reload client connected")
}

func (h *Hub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[ws]
	delete(h.clients, ws)
	h.mu.Unlock()

	if ok {
		telemetry.GetMetrics().ReloadClients.Add(context.Background(), -1)
		_ = ws.Close()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for ws := range h.clients {
		conns = append(conns, ws)
	}
	h.mu.Unlock()

	for _, ws := range conns {
		h.remove(ws)
	}
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends msg to every client and returns how many received it.
// Clients that fail to receive are dropped.
func (h *Hub) Broadcast(msg string) int {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for ws := range h.clients {
		conns = append(conns, ws)
	}
	h.mu.Unlock()

	sent := 0
	for _, ws := range conns {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := websocket.Message.Send(ws, msg); err != nil {
			h.logger.Debug().Err(err).Msg("Dropping live reload client")
			h.remove(ws)
			continue
		}
		sent++
	}
	return sent
}

func serveLiveReloadScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(liveReloadScript))
}
