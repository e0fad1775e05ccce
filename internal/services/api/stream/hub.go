// Package stream fans out newly built timeline rows to websocket
// subscribers, one subscription set per check.
package stream

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pulsekeep/pulsekeep/internal/timeline"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Browsers send an Origin header; non-browser clients usually don't and
// are let through. Browser connects must come from the host we serve.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(r.Host), strings.TrimSpace(u.Host))
	},
}

type Hub struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]map[*websocket.Conn]bool
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:  log.Named("stream"),
		subs: make(map[uuid.UUID]map[*websocket.Conn]bool),
	}
}

type envelope struct {
	Type  string        `json:"type"`
	Check uuid.UUID     `json:"check"`
	Row   *timeline.Row `json:"row,omitempty"`
}

// Broadcast pushes one row to every subscriber of the check. Connections
// that fail to take the write are dropped.
func (h *Hub) Broadcast(code uuid.UUID, row timeline.Row) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.subs[code]))
	for c := range h.subs[code] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			h.drop(code, c)
			continue
		}
		if err := c.WriteJSON(envelope{Type: "row", Check: code, Row: &row}); err != nil {
			h.log.Debug("subscriber write failed", zap.String("check", code.String()), zap.Error(err))
			h.drop(code, c)
		}
	}
}

func (h *Hub) add(code uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[code] == nil {
		h.subs[code] = make(map[*websocket.Conn]bool)
	}
	h.subs[code][c] = true
}

func (h *Hub) drop(code uuid.UUID, c *websocket.Conn) {
	h.mu.Lock()
	if set, ok := h.subs[code]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, code)
		}
	}
	h.mu.Unlock()
	_ = c.Close()
}

// Serve upgrades the request and holds the connection until the client
// goes away. The read loop only services control frames; rows flow out
// via Broadcast.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, code uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.add(code, conn)
	defer h.drop(code, conn)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(envelope{Type: "connected", Check: code}); err != nil {
		return
	}

	done := make(chan struct{})
	defer close(done)
	go h.keepalive(conn, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("subscriber read failed", zap.String("check", code.String()), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
