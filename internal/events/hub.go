package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/metrics"
)

const writeWait = 5 * time.Second

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is what the browser sends over the socket, typically keystrokes of the
// origin/destination fields.
type Message struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Query string `json:"query,omitempty"`
}

type Hub struct {
	mu          sync.Mutex
	subscribers map[string][]*websocket.Conn
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string][]*websocket.Conn),
		logger:      logger.Named("events"),
	}
}

// For binds a notifier to one session.
func (h *Hub) For(sessionID string) Notifier {
	return NotifierFunc(func(ctx context.Context, e Event) {
		h.Broadcast(sessionID, e)
	})
}

// Serve registers conn and blocks reading messages until the peer disconnects.
func (h *Hub) Serve(sessionID string, conn *websocket.Conn, onMessage func(Message)) {
	h.subscribe(sessionID, conn)
	defer h.unsubscribe(sessionID, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if onMessage == nil {
			continue
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Debug("ignoring malformed message", zap.String("session", sessionID), zap.Error(err))
			continue
		}
		onMessage(msg)
	}
}

func (h *Hub) Broadcast(sessionID string, e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", e.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.subscribers[sessionID]
	kept := conns[:0]

	for _, conn := range conns {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err == nil {
			kept = append(kept, conn)
		} else {
			metrics.EventSubscribers.Dec()
			conn.Close()
		}
	}

	if len(kept) == 0 {
		delete(h.subscribers, sessionID)
		return
	}
	h.subscribers[sessionID] = kept
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[sessionID])
}

func (h *Hub) subscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.subscribers[sessionID] = append(h.subscribers[sessionID], conn)
	h.mu.Unlock()
	metrics.EventSubscribers.Inc()
}

func (h *Hub) unsubscribe(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.subscribers[sessionID]
	kept := make([]*websocket.Conn, 0, len(conns))
	removed := false
	for _, c := range conns {
		if c != conn {
			kept = append(kept, c)
		} else {
			removed = true
		}
	}
	if len(kept) == 0 {
		delete(h.subscribers, sessionID)
	} else {
		h.subscribers[sessionID] = kept
	}

	if removed {
		metrics.EventSubscribers.Dec()
	}
	conn.Close()
}
