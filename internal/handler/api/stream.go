package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"WattWise/internal/domain/models"
	drepo "WattWise/internal/domain/repository"
	"WattWise/internal/service/metrics"
	applogger "WattWise/pkg/logger"
	xutil "WattWise/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

type subscriber struct {
	conn *websocket.Conn
	city string
	send chan []byte
}

// Hub fans completed-forecast events out to websocket subscribers. A
// subscriber that cannot keep up loses events rather than stalling delivery.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader
	l        *applogger.Logger
}

var _ drepo.Notifier = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		subs:     make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (h *Hub) SetLogger(l *applogger.Logger) { h.l = l }

// Notify queues ev for every subscriber interested in its city.
func (h *Hub) Notify(ev models.ForecastCompleted) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.l.Error("encode forecast event", applogger.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.city != "" && s.city != ev.City {
			continue
		}
		select {
		case s.send <- b:
		default:
			h.l.Warn("websocket subscriber lagging, event dropped", applogger.String("city", ev.City))
		}
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
		metrics.WSClients.Dec()
	}
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	metrics.WSClients.Inc()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
		metrics.WSClients.Dec()
	}
}

// Serve upgrades the request and streams events until the client goes away.
// ?city= restricts the feed to one city.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	s := &subscriber{conn: conn, city: xutil.NormalizeCity(c.QueryParam("city")), send: make(chan []byte, sendBuffer)}
	h.add(s)

	go h.writeLoop(s)
	h.readLoop(s)
	return nil
}

// readLoop only consumes control frames; it returns when the peer disconnects.
func (h *Hub) readLoop(s *subscriber) {
	defer func() {
		h.remove(s)
		_ = s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
