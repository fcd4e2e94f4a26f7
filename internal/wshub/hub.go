// Package wshub is the outbound WebSocket fan-out sink: it accepts
// upgraded connections and broadcasts new_gift events to all of them
// independently of Telegram delivery, per spec §4.6 step 6.
package wshub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Hub tracks connected WebSocket clients and fans out broadcast events
// to each of them over a small per-client buffered channel, so one slow
// client can't block the others.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan envelope
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Upgrade promotes an HTTP request to a WebSocket connection and
// registers it with the hub until the connection closes.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, send: make(chan envelope, 16)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast sends event/payload to every connected client. A client
// whose send buffer is full is dropped rather than blocking the
// broadcaster, satisfying dispatch.WebSocketBroadcaster.
func (h *Hub) Broadcast(event string, payload any) {
	env := envelope{Event: event, Payload: payload}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- env:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}
