package signaling

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Champion1102/Crossdrop-sub000/internals/metrics"
)

// Client is the transport adapter and registry record for a single peer
// connection. conn and send are owned by the read/write pumps; everything
// below the "guarded by hub.mu" marker is registry state mutated only
// while holding the hub lock.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	hub     *Hub
	logger  *zap.Logger
	limiter *rate.Limiter

	closeOnce sync.Once
	closed    atomic.Bool
	closeCode atomic.Int32

	// Guarded by hub.mu.
	ID           string
	name         string
	roomID       string
	lastActivity time.Time
	alive        bool
	iceQueue     map[string][]json.RawMessage
}

func (c *Client) peerID() string {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	return c.ID
}

// enqueue encodes v and hands it to the write pump. Best effort: a closed
// client or a saturated buffer yields false, never an error or a block.
// Callers hold the hub lock.
func (c *Client) enqueue(v any) bool {
	if c.closed.Load() {
		return false
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to encode message", zap.String("peerID", c.ID), zap.Error(err))
		return false
	}
	select {
	case c.send <- data:
		metrics.MessagesSent.Inc()
		return true
	default:
		c.logger.Warn("Send buffer full, dropping message", zap.String("peerID", c.ID))
		return false
	}
}

// closeSend shuts the outbound path. The write pump delivers whatever is
// still buffered, then emits a close frame with the given code.
func (c *Client) closeSend(code int) {
	c.closeOnce.Do(func() {
		c.closeCode.Store(int32(code))
		c.closed.Store(true)
		close(c.send)
	})
}

func (c *Client) readPump() {
	maxPayload := int64(c.hub.cfg.WebSocket.MaxPayloadSize)
	pongWait := c.hub.cfg.WebSocket.PongTimeout

	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	// The per-frame ceiling is enforced below so oversize frames can be
	// rejected without dropping the connection; the transport-level limit
	// only caps unbounded buffering.
	c.conn.SetReadLimit(maxPayload * 4)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.markAlive(c)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error",
					zap.String("peerID", c.peerID()),
					zap.Error(err),
				)
			}
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if int64(len(data)) > maxPayload {
			c.hub.sendError(c, errTooLarge)
			continue
		}
		c.hub.route(c, data)
	}
}

func (c *Client) writePump() {
	writeTimeout := c.hub.cfg.WebSocket.WriteTimeout
	ticker := time.NewTicker(c.hub.cfg.WebSocket.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				code := int(c.closeCode.Load())
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("Failed to write message",
					zap.String("peerID", c.peerID()),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
