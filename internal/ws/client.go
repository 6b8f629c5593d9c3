package ws

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one live websocket subscriber. Messages queue on the buffered
// send channel and a single write pump owns all writes to the connection,
// which keeps per-subscriber delivery in FIFO order.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	hub  *Hub
}

// ID returns the hub-assigned connection id, used in logs.
func (c *Client) ID() string {
	return c.id
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, hub.sendBuffer),
		done: make(chan struct{}),
		hub:  hub,
	}
}

// writePump drains the send channel onto the connection and emits pings on
// the hub's interval. It exits on the first failed write; the read pump then
// observes the closed connection and unregisters the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug("subscriber write failed",
					slog.String("client_id", c.id),
					slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.log.Debug("subscriber ping failed",
					slog.String("client_id", c.id),
					slog.Any("error", err))
				return
			}
		}
	}
}

// readPump consumes inbound frames until the connection drops. Subscribers
// are read-only observers; inbound text frames are echoed back so clients
// can probe liveness, everything else is discarded.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(c.hub.readLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.pongTimeout))
	})

	for {
		kind, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.TextMessage {
			c.enqueue(msg)
		}
	}
}

// enqueue attempts a non-blocking delivery; a full buffer means the
// subscriber cannot keep up and is treated as disconnected.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
