// Package ws – connection plumbing.
//
// A Client wraps one live WebSocket connection: a read pump that feeds
// inbound frames to the session, and a write pump that drains the buffered
// send queue and keeps the connection alive with periodic pings. The two
// pumps are the only goroutines that touch the underlying connection.
package ws

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/codecraft-edu/comms-backend/internal/config"
)

// Client is one live, room-bound WebSocket connection.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	cfg  config.WSConfig
	log  zerolog.Logger
}

// NewClient wraps conn with a buffered send queue sized per configuration.
// The logger should already carry connection-scoped fields (user, room).
func NewClient(conn *websocket.Conn, cfg config.WSConfig, log zerolog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.ReadLimit)
	}
	return &Client{
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
		cfg:  cfg,
		log:  log,
	}
}

// Deliver enqueues payload for the write pump. It never blocks; false means
// the queue was full and the payload was dropped.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// readPump reads frames until the connection errors or closes, handing each
// frame to onFrame. It must run in the connection's own goroutine; cleanup
// (broker leave, connection close) belongs to the caller's defer.
func (c *Client) readPump(onFrame func(raw []byte)) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			return
		}
		onFrame(raw)
	}
}

// writePump drains the send queue onto the wire and pings on a ticker. It
// exits when the send queue is closed or a write fails, closing the
// connection either way so the read pump unblocks.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// closeSend shuts the send queue down, prompting the write pump to emit a
// close frame and exit. Must be called exactly once, after the subscriber
// has left the broker.
func (c *Client) closeSend() {
	close(c.send)
}

// logReadEnd records why the read loop stopped, at a level matching how
// expected the cause is.
func (c *Client) logReadEnd(err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug().Err(err).Msg("peer disconnected")
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.cfg.ReadLimit).Msg("frame exceeded read limit")
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		c.log.Debug().Err(err).Msg("connection closed")
	default:
		c.log.Warn().Err(err).Msg("read error")
	}
}
