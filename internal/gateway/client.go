// FlixChat - Real-Time Messaging, Stories, and Calls
// Copyright 2026 FlixChat contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flixchat/flixchat

package gateway

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/flixchat/flixchat/internal/logging"
	"github.com/flixchat/flixchat/internal/metrics"
)

// clientIDCounter assigns unique, monotonically increasing client IDs.
// Sorting by ID gives the fan-out loop a deterministic delivery order.
var clientIDCounter atomic.Uint64

// Client is one WebSocket connection owned by one authenticated user.
// Frames queued on send are written in order by a single writer goroutine,
// so delivery over a single connection is strictly FIFO.
type Client struct {
	id      uint64
	userID  int64
	hub     *Hub
	router  *Router
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// NewClient wraps an upgraded connection for the given user.
func NewClient(hub *Hub, router *Router, conn *websocket.Conn, userID int64) *Client {
	cfg := hub.cfg
	return &Client{
		id:      clientIDCounter.Add(1),
		userID:  userID,
		hub:     hub,
		router:  router,
		conn:    conn,
		send:    make(chan []byte, cfg.SendBufferSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
	}
}

// UserID returns the authenticated owner of this connection.
func (c *Client) UserID() int64 {
	return c.userID
}

// Start registers the client with the hub and begins the read and write
// pumps. If the hub has already stopped the connection is closed instead.
func (c *Client) Start() {
	select {
	case c.hub.Register <- c:
	case <-c.hub.Done():
		_ = c.conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// unregister hands the connection back to the hub, or gives up once the
// hub loop has exited and nothing drains the Unregister channel.
func (c *Client) unregister() {
	select {
	case c.hub.Unregister <- c:
	case <-c.hub.Done():
	}
}

// readPump reads inbound frames and hands them to the router. Runs until
// the connection errors or closes, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.unregister()
		_ = c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Int64("user_id", c.userID).Msg("Unexpected websocket close")
			}
			break
		}

		if !c.limiter.Allow() {
			metrics.RecordEventDropped("rate_limited")
			logging.Warn().Int64("user_id", c.userID).Msg("Inbound frame rate limited")
			continue
		}

		c.router.Dispatch(c.userID, frame)
	}
}

// writePump writes queued frames and periodic pings. Runs until the send
// channel closes or a write fails.
func (c *Client) writePump() {
	cfg := c.hub.cfg
	pingPeriod := (cfg.PongWait * 9) / 10

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug().Err(err).Int64("user_id", c.userID).Msg("Failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
