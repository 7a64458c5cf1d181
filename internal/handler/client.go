package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"office-service/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Client is one live websocket connection. The read pump is the only
// goroutine that mutates its fields after construction, so inbound events
// are processed strictly in arrival order.
type Client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// tokenUserID is the authenticated subject from the upgrade token; the
	// userId inside every event must match it.
	tokenUserID uuid.UUID

	// Set by the user:connect handler, immutable afterwards.
	userID      uuid.UUID
	workspaceID uuid.UUID

	admitted bool
	inOffice bool

	closeOnce    sync.Once
	teardownOnce sync.Once
}

func newClient(conn *websocket.Conn, hub *Hub, tokenUserID uuid.UUID) *Client {
	return &Client{
		id:          uuid.New(),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		hub:         hub,
		tokenUserID: tokenUserID,
	}
}

// forceClose tears the socket down. Closing the connection unblocks the
// read pump, which then runs the full deregistration path.
func (c *Client) forceClose() {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
}

func (c *Client) readPump(h *WSHandler) {
	defer func() {
		h.hub.teardown(c, nil)
		c.forceClose()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		var envelope model.Envelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			h.logger.Warn("Failed to parse event envelope", zap.Error(err))
			continue
		}

		h.handleEvent(c, &envelope)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.forceClose()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
