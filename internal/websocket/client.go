package websocket

import (
	"context"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client is a live event stream for one session.
type Client struct {
	hub      *Hub
	conn     *ws.Conn
	username string
	token    string
	send     chan []byte

	// Set by the hub before send is closed.
	revoked bool
}

// NewClient binds conn to the session (username, token).
func NewClient(hub *Hub, conn *ws.Conn, username, token string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		username: username,
		token:    token,
		send:     make(chan []byte, sendBufferSize),
	}
}

// Run streams events to the peer until the connection drops, ctx ends,
// or the hub revokes the session.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	// Inbound frames are ignored. CloseRead cancels ctx once the peer goes away.
	ctx = c.conn.CloseRead(ctx)
	c.stream(ctx)
}

func (c *Client) stream(ctx context.Context) {
	keepalive := time.NewTicker(pingInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if err := c.ping(ctx); err != nil {
				return
			}
		case frame, open := <-c.send:
			if !open {
				c.hangUp()
				return
			}
			if err := c.write(ctx, frame); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, ws.MessageText, frame)
}

func (c *Client) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Ping(ctx)
}

func (c *Client) hangUp() {
	if c.revoked {
		c.conn.Close(ws.StatusPolicyViolation, "session ended")
		return
	}
	c.conn.Close(ws.StatusNormalClosure, "")
}
