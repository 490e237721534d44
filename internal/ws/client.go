package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"project-chat/internal/models"
)

// Client is one live connection. Its identity is fixed at construction.
type Client struct {
	id       string
	identity models.Identity
	info     ConnInfo
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	logger   *slog.Logger
}

func newClient(identity models.Identity, info ConnInfo, conn *websocket.Conn, queueSize int, logger *slog.Logger) *Client {
	if info.ConnID == "" {
		info.ConnID = newConnID()
	}
	return &Client{
		id:       info.ConnID,
		identity: identity,
		info:     info,
		conn:     conn,
		send:     make(chan []byte, queueSize),
		done:     make(chan struct{}),
		logger:   logger.With("conn_id", info.ConnID, "user_id", identity.ID),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Identity returns the authenticated user.
func (c *Client) Identity() models.Identity { return c.identity }

// Emit sends a server event to this connection only.
func (c *Client) Emit(event string, data any) bool {
	return c.emitFrame(models.OutboundFrame{Event: event, Data: data})
}

func (c *Client) emitFrame(frame models.OutboundFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("failed to marshal frame", "event", frame.Event, "error", err)
		return false
	}
	return c.enqueue(payload)
}

// enqueue never blocks. It reports false when the connection is closed or
// its queue is full.
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops the writer and closes the transport. Safe to call repeatedly.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	})
}

// Closed is closed once the client has been closed.
func (c *Client) Closed() <-chan struct{} { return c.done }

// writePump drains the send queue onto the socket and keeps the peer alive
// with pings. It is the only writer of data frames.
func (c *Client) writePump(cfg Config) {
	ticker := time.NewTicker(cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
