// Package hub is the event fan-out channel: a process-scoped registry of
// websocket subscribers that every persisted order transition is announced
// to. There is no delivery guarantee, no acknowledgment and no replay; a
// briefly disconnected display reconciles by refetching on reconnect.
package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/restamate/pos-server/internal/app/metrics"
	"github.com/restamate/pos-server/internal/logging"
)

const (
	// sendQueueSize bounds each subscriber's outbound queue. A subscriber
	// that falls this far behind is dropped so it cannot stall the others.
	sendQueueSize = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Envelope is the wire format of every pushed event.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub is the subscriber registry. Construct one at startup and hand it to
// every component that publishes; there is no package-level singleton.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	log     *logging.Logger

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates an empty hub.
func New(log *logging.Logger) *Hub {
	if log == nil {
		log = logging.NewDefault("hub")
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			// Station displays are served from other origins; auth happens
			// via the bearer token, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Broadcast sends a {type, data} envelope to every connected subscriber.
// Sends are non-blocking per subscriber: a full queue drops that subscriber
// instead of delaying the rest. Failures are logged and swallowed; broadcast
// never fails the mutation that already committed.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(Envelope{Type: eventType, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("event", eventType).Error("failed to encode event, dropped")
		return
	}

	metrics.IncBroadcast(eventType)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow subscriber; closing the queue makes its write pump exit
			// and unregister the connection.
			metrics.IncDroppedClient()
			go h.unregister(c)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket subscription. The server
// greets once, then the write path is strictly server to client: inbound
// frames are logged and otherwise ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendQueueSize)}

	// The greeting is enqueued before the client becomes visible to
	// Broadcast: it is always the first frame, and no concurrent broadcast
	// can fill the queue and close it underneath this send.
	greeting, _ := json.Marshal(Envelope{Type: "connection", Data: map[string]string{
		"message": "connection established",
	}})
	c.send <- greeting

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	metrics.SetConnectedClients(count)
	h.log.WithField("subscribers", count).Info("subscriber connected")

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	close(c.send)
	h.mu.Unlock()

	_ = c.conn.Close()
	metrics.SetConnectedClients(count)
	h.log.WithField("subscribers", count).Info("subscriber disconnected")
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.unregister(c)
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.unregister(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		// Inbound content is not acted upon.
		h.log.WithField("message", string(message)).Debug("ignoring inbound frame")
	}
}

// Close disconnects every subscriber, for shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
