package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// pongWait is how long to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod is the keepalive interval; must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound client messages.
	maxMessageSize = 4 * 1024

	// writeBufferSize is the outbound message queue per connection.
	writeBufferSize = 256
)

// Client is a single websocket connection of an authenticated user. Trade
// event delivery is one-way, server to client; inbound traffic is limited to
// protocol control frames.
type Client struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	conn      *websocket.Conn
	send      chan []byte
	manager   *Manager
	closeChan chan struct{}
}

// NewClient wraps a connection for the given user.
func NewClient(userID uuid.UUID, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		conn:      conn,
		send:      make(chan []byte, writeBufferSize),
		manager:   manager,
		closeChan: make(chan struct{}),
	}
}

// Start registers the client and launches its read and write loops.
func (c *Client) Start() {
	c.manager.AddClient(c)

	go c.readPump()
	go c.writePump()
}

// readPump drains inbound frames to keep pong handling alive. Any payload the
// client sends is ignored.
func (c *Client) readPump() {
	defer func() {
		c.manager.RemoveClient(c.ID)
		c.conn.Close()
		close(c.closeChan)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("client_id", c.ID).WithError(err).Debug("unexpected websocket close")
			}
			return
		}
	}
}

// writePump pushes queued events to the client and keeps the connection alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("client_id", c.ID).WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closeChan:
			return
		}
	}
}
