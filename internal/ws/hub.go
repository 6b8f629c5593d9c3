package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visitpulse/backend/internal/visits"
)

const (
	defaultSendBuffer   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultReadLimit    = 4 << 10
)

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the hub's logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// WithSendBuffer sets the per-subscriber send queue depth.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds each write to a subscriber connection.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithPingInterval sets how often idle subscribers are pinged. A subscriber
// that fails to answer before the next ping is pruned.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
			h.pongTimeout = 2 * d
		}
	}
}

// WithCheckOrigin overrides the websocket upgrade origin policy.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(h *Hub) {
		if fn != nil {
			h.upgrader.CheckOrigin = fn
		}
	}
}

// Hub maintains the set of live websocket subscribers and fans session
// lifecycle events out to all of them. It implements visits.Publisher.
//
// Delivery is best effort and at most once: each subscriber has a bounded
// queue, a full queue or failed write disconnects that subscriber, and no
// subscriber can delay delivery to another or block the publishing caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool

	upgrader websocket.Upgrader

	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration
	pongTimeout  time.Duration
	readLimit    int64

	log *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[*Client]struct{}),
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		pongTimeout:  2 * defaultPingInterval,
		readLimit:    defaultReadLimit,
		log:          slog.Default(),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeHTTP upgrades the request to a websocket and registers the connection
// as a subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.Debug("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client, err := h.register(conn)
	if err != nil {
		conn.Close()
		return
	}

	h.log.Info("subscriber connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr))

	go client.writePump()
	client.readPump()

	h.log.Info("subscriber disconnected", slog.String("client_id", client.ID()))
}

func (h *Hub) register(conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	client := newClient(h, conn)
	h.clients[client] = struct{}{}
	return client, nil
}

// Unregister removes a subscriber and releases its resources. Safe to call
// more than once for the same client.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.done)
	}
	h.mu.Unlock()

	if ok {
		client.conn.Close()
	}
}

// Publish encodes the event once and queues it on every subscriber. It
// never blocks: subscribers whose queue is full are pruned immediately.
func (h *Hub) Publish(event visits.Event) {
	msg, err := json.Marshal(visits.EncodeEvent(event))
	if err != nil {
		h.log.Error("failed to encode event", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(msg) {
			h.log.Warn("subscriber cannot keep up, disconnecting",
				slog.String("client_id", c.ID()))
			h.Unregister(c)
		}
	}
}

// ClientCount returns the number of live subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all subscribers and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
		close(c.done)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}
