package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// detached returns a Client with a buffer but no connection.
func detached(hub *Hub, username, token string) *Client {
	return NewClient(hub, nil, username, token)
}

func next(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw := <-c.send:
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no event delivered")
	}
	return Message{}
}

func requireIdle(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event %s", raw)
	default:
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub(slog.Default())
	alice := detached(hub, "alice", "t1")
	bob := detached(hub, "bob", "t2")

	hub.Register(alice)
	hub.Register(bob)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(alice)
	hub.Unregister(alice)
	assert.Equal(t, 1, hub.ClientCount())
	assert.False(t, alice.revoked)

	hub.Unregister(bob)
	assert.Zero(t, hub.ClientCount())
}

func TestPublishScopedToUser(t *testing.T) {
	hub := NewHub(slog.Default())
	phone := detached(hub, "alice", "t1")
	laptop := detached(hub, "alice", "t2")
	other := detached(hub, "bob", "t3")
	for _, c := range []*Client{phone, laptop, other} {
		hub.Register(c)
	}

	hub.Publish("alice", NewMessage("group", "created", 42, map[string]any{"slug": "reading"}))

	for _, c := range []*Client{phone, laptop} {
		m := next(t, c)
		assert.Equal(t, "group_created", m.Type)
		assert.EqualValues(t, 42, m.ID)
		assert.Equal(t, "reading", m.Extra["slug"])
	}
	requireIdle(t, other)
}

func TestBroadcastReachesEveryone(t *testing.T) {
	hub := NewHub(slog.Default())
	a := detached(hub, "alice", "t1")
	b := detached(hub, "bob", "t2")
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast(NewMessage("server", "shutdown", 0, nil))

	assert.Equal(t, "server_shutdown", next(t, a).Type)
	assert.Equal(t, "server_shutdown", next(t, b).Type)
}

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub(slog.Default())
	assert.NotPanics(t, func() {
		hub.Publish("alice", NewMessage("link", "deleted", 1, nil))
	})
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(slog.Default())
	c := detached(hub, "alice", "t1")
	hub.Register(c)
	defer hub.Unregister(c)

	for i := range sendBufferSize + 3 {
		hub.Publish("alice", NewMessage("link", "updated", int64(i), nil))
	}
	assert.Len(t, c.send, sendBufferSize)
}

func TestDisconnectRevokes(t *testing.T) {
	hub := NewHub(slog.Default())
	a1 := detached(hub, "alice", "t1")
	a2 := detached(hub, "alice", "t2")
	b := detached(hub, "bob", "t3")
	for _, c := range []*Client{a1, a2, b} {
		hub.Register(c)
	}

	require.Equal(t, 1, hub.DisconnectSession("t1"))
	_, open := <-a1.send
	assert.False(t, open)
	assert.True(t, a1.revoked)

	require.Equal(t, 1, hub.Disconnect("alice"))
	assert.True(t, a2.revoked)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Zero(t, hub.DisconnectSession("t1"))

	assert.NotPanics(t, func() {
		hub.Unregister(a1)
		hub.Unregister(a2)
	})
}

func TestConcurrentPublish(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := detached(hub, "alice", "t")
			hub.Register(c)
			hub.Publish("alice", NewMessage("cache", "updated", 0, nil))
			hub.Unregister(c)
		}()
	}
	wg.Wait()
	assert.Zero(t, hub.ClientCount())
}

func TestNewMessageType(t *testing.T) {
	m := NewMessage("link_cache", "refreshed", 5, nil)
	assert.Equal(t, "link_cache_refreshed", m.Type)
	assert.Equal(t, "link_cache", m.Entity)
	assert.Equal(t, "refreshed", m.Action)
}

func TestClientStreamsOverConnection(t *testing.T) {
	hub := NewHub(slog.Default())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn, "alice", "tok").Run(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("alice", NewMessage("group", "updated", 7, nil))
	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "group_updated", m.Type)

	require.Equal(t, 1, hub.DisconnectSession("tok"))
	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, ws.StatusPolicyViolation, ws.CloseStatus(err))
}
