package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"example.com/reactivities/internal/errorx"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
)

// Client is one websocket connection. Its groups and closed flag are guarded by the hub lock.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string
	groups   map[string]struct{}
	closed   bool
}

// NewClient wraps conn for the authenticated user and registers it with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, username string) *Client {
	c := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		username: username,
		groups:   make(map[string]struct{}),
	}
	hub.register(c)
	return c
}

// ReadPump handles inbound frames until the connection fails or ctx ends.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Printf("read from %s: %v", c.username, err)
			}
			return
		}
		c.handle(ctx, data)
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.fail("malformed frame")
		return
	}

	switch frame.Event {
	case EventJoinGroup:
		var req groupRequest
		if err := json.Unmarshal(frame.Payload, &req); err != nil {
			c.fail("malformed JoinGroup payload")
			return
		}
		if err := c.hub.Join(ctx, c, req.ActivityID); err != nil {
			c.failWith(err)
		}
	case EventLeaveGroup:
		var req groupRequest
		if err := json.Unmarshal(frame.Payload, &req); err != nil {
			c.fail("malformed LeaveGroup payload")
			return
		}
		c.hub.Leave(c, req.ActivityID)
	case EventSendComment:
		var req sendRequest
		if err := json.Unmarshal(frame.Payload, &req); err != nil {
			c.fail("malformed SendComment payload")
			return
		}
		_, err := c.hub.Send(ctx, Comment{
			ID:         req.ID,
			ActivityID: req.ActivityID,
			Body:       req.Body,
			Username:   c.username,
		})
		if err != nil {
			c.failWith(err)
		}
	default:
		c.fail("unknown event " + frame.Event)
	}
}

func (c *Client) failWith(err error) {
	if errorx.Is(err, errorx.KindInternal) {
		c.hub.logger.Printf("client %s: %v", c.username, err)
		c.fail(errorx.ErrProblemSaving.Error())
		return
	}
	c.fail(err.Error())
}

func (c *Client) fail(message string) {
	frame, err := encodeFrame(EventError, errorPayload{Message: message})
	if err != nil {
		return
	}
	c.hub.sendTo(c, frame)
}
