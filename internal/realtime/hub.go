package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Buffered frames per subscriber before it is considered too slow.
	sendBuffer = 32
)

// Event is one realtime frame pushed to subscribers of a thread.
type Event struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message,omitempty"`
}

// EventMessageInsert announces a newly persisted message row.
const EventMessageInsert = "message_insert"

type subscriber struct {
	threadID string
	send     chan Event
}

// Hub fans message-insert events out to WebSocket subscribers, keyed by
// thread. It is the push channel of the chat surface.
type Hub struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard may be served from any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Publish delivers a persisted message to every subscriber of its thread.
// Slow subscribers are dropped rather than blocking the caller.
func (h *Hub) Publish(msg *models.Message) {
	if msg.ThreadID == "" {
		return
	}

	event := Event{Type: EventMessageInsert, Message: msg}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.threadID != msg.ThreadID {
			continue
		}
		select {
		case sub.send <- event:
		default:
			// Dropped frame; the subscriber's poll fallback reconciles it.
			h.logger.Warn("Dropping realtime frame for slow subscriber",
				zap.String("thread_id", msg.ThreadID))
		}
	}
}

// ServeWS upgrades the request and streams events for the requested thread
// until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread")
	if threadID == "" {
		http.Error(w, "missing thread parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	sub := &subscriber{threadID: threadID, send: make(chan Event, sendBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go h.writePump(conn, sub)
	h.readPump(conn, sub)
}

func (h *Hub) readPump(conn *websocket.Conn, sub *subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.send)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
