package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitpulse/backend/internal/visits"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testEvent(kind, id string) visits.Event {
	return visits.Event{
		Kind: kind,
		Session: visits.VisitSession{
			ID:        id,
			Domain:    "shop.example",
			VisitorID: "v-1",
			IP:        "203.0.113.7",
			UserAgent: "Mozilla/5.0 (test)",
			EnteredAt: time.Now().UTC(),
		},
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) visits.EventJSON {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event visits.EventJSON
	require.NoError(t, json.Unmarshal(msg, &event))
	return event
}

func TestHubPublish(t *testing.T) {
	t.Parallel()

	t.Run("delivers events to every subscriber in order", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		defer hub.Close()
		srv := httptest.NewServer(hub)
		defer srv.Close()

		first := dialHub(t, srv)
		second := dialHub(t, srv)
		waitForClients(t, hub, 2)

		hub.Publish(testEvent(visits.EventSessionOpened, "s-1"))
		hub.Publish(testEvent(visits.EventSessionClosed, "s-1"))
		hub.Publish(testEvent(visits.EventSessionOpened, "s-2"))

		for _, conn := range []*websocket.Conn{first, second} {
			opened := readEvent(t, conn)
			assert.Equal(t, visits.EventSessionOpened, opened.Event)
			assert.Equal(t, "s-1", opened.Data.ID)
			assert.Equal(t, "shop.example", opened.Data.Domain)

			closed := readEvent(t, conn)
			assert.Equal(t, visits.EventSessionClosed, closed.Event)
			assert.Equal(t, "s-1", closed.Data.ID)

			next := readEvent(t, conn)
			assert.Equal(t, "s-2", next.Data.ID)
		}
	})

	t.Run("prunes a subscriber with a full queue without touching others", func(t *testing.T) {
		t.Parallel()

		hub := NewHub(WithSendBuffer(2))
		defer hub.Close()
		srv := httptest.NewServer(hub)
		defer srv.Close()

		healthy := dialHub(t, srv)
		waitForClients(t, hub, 1)

		// A registered client whose write pump never starts: its queue fills
		// after sendBuffer events and the next publish must prune it.
		stuckSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
			if err != nil {
				return
			}
			if _, err := hub.register(conn); err != nil {
				conn.Close()
			}
		}))
		defer stuckSrv.Close()
		dialHub(t, stuckSrv)
		waitForClients(t, hub, 2)

		for i := range 3 {
			hub.Publish(testEvent(visits.EventSessionOpened, string(rune('a'+i))))
		}

		waitForClients(t, hub, 1)

		// The healthy subscriber saw every event despite the pruning.
		for range 3 {
			event := readEvent(t, healthy)
			assert.Equal(t, visits.EventSessionOpened, event.Event)
		}
	})

	t.Run("publish without subscribers is a no-op", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		defer hub.Close()

		hub.Publish(testEvent(visits.EventSessionOpened, "s-1"))
		assert.Equal(t, 0, hub.ClientCount())
	})
}

func TestHubEcho(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	defer hub.Close()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping-me")))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping-me", string(msg))
}

func TestHubUnregister(t *testing.T) {
	t.Parallel()

	t.Run("client disconnect removes it from the hub", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		defer hub.Close()
		srv := httptest.NewServer(hub)
		defer srv.Close()

		conn := dialHub(t, srv)
		waitForClients(t, hub, 1)

		conn.Close()
		waitForClients(t, hub, 0)
	})

	t.Run("unregister is idempotent", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		defer hub.Close()
		srv := httptest.NewServer(hub)
		defer srv.Close()

		stuckSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
			if err != nil {
				return
			}
			client, err := hub.register(conn)
			if err != nil {
				conn.Close()
				return
			}
			hub.Unregister(client)
			hub.Unregister(client)
		}))
		defer stuckSrv.Close()

		dialHub(t, stuckSrv)
		waitForClients(t, hub, 0)
	})
}

func TestHubClose(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dialHub(t, srv)
	waitForClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.ClientCount())

	// The subscriber's connection was closed from the hub side.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// Registrations after close are rejected.
	rejected := dialHub(t, srv)
	require.NoError(t, rejected.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = rejected.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}
