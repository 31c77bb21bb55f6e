package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/chatroom/internal/chat"
	"github.com/MarcoPoloResearchLab/chatroom/internal/presence"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameBytes  = 1 << 20
	sendBufferSize = 256
)

// Dispatcher receives decoded client frames and answers frames it never sees.
type Dispatcher interface {
	Dispatch(ctx context.Context, id presence.ConnectionID, inbound chat.Inbound) error
	Reject(id presence.ConnectionID, reason error)
}

type client struct {
	id      presence.ConnectionID
	conn    *websocket.Conn
	addr    string
	limiter *rate.Limiter

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(id presence.ConnectionID, conn *websocket.Conn, addr string, limiter *rate.Limiter) *client {
	return &client{
		id:      id,
		conn:    conn,
		addr:    addr,
		limiter: limiter,
		send:    make(chan []byte, sendBufferSize),
	}
}

// enqueue reports false when the client is closed or its buffer is full.
func (c *client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close stops the write pump; it is safe to call more than once.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *client) closeConn() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
}

// readPump decodes frames and hands them to the dispatcher until the connection
// fails. It runs on the connection's handler goroutine, so frames from one client
// are processed in order.
func (c *client) readPump(ctx context.Context, dispatcher Dispatcher, logger *zap.Logger) {
	defer c.closeConn()

	c.conn.SetReadLimit(maxFrameBytes)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debug("failed to set read deadline", zap.String("connection_id", c.id.String()), zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(logger, err)
			return
		}

		var inbound chat.Inbound
		if err := json.Unmarshal(frame, &inbound); err != nil {
			logger.Debug("invalid frame", zap.String("connection_id", c.id.String()), zap.Error(err))
			dispatcher.Reject(c.id, fmt.Errorf("%w: %v", chat.ErrMalformedPayload, err))
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			logger.Warn("rate limit exceeded; discarding frame",
				zap.String("connection_id", c.id.String()),
				zap.String("remote_addr", c.addr),
				zap.String("event", inbound.Name))
			dispatcher.Reject(c.id, chat.ErrRateLimited)
			continue
		}
		if err := dispatcher.Dispatch(ctx, c.id, inbound); err != nil {
			logger.Debug("inbound event not delivered",
				zap.String("connection_id", c.id.String()),
				zap.String("event", inbound.Name),
				zap.Error(err))
		}
	}
}

func (c *client) logReadError(logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logger.Warn("frame exceeded size limit", zap.String("connection_id", c.id.String()), zap.Int("limit", maxFrameBytes))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived),
		errors.Is(err, io.EOF),
		isExpectedCloseError(err):
		logger.Debug("client disconnected", zap.String("connection_id", c.id.String()))
	default:
		logger.Info("websocket read failed", zap.String("connection_id", c.id.String()), zap.Error(err))
	}
}

// writePump drains the send buffer onto the connection and keeps it alive with pings.
func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					logger.Info("websocket write failed", zap.String("connection_id", c.id.String()), zap.Error(err))
				}
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	message := err.Error()
	return strings.Contains(message, "use of closed network connection") ||
		strings.Contains(message, "websocket: close sent") ||
		strings.Contains(message, "broken pipe")
}
