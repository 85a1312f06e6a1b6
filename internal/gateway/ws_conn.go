package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Conn is one client connection as seen by the hub. wsConn implements it
// over a websocket; tests use in-memory fakes.
type Conn interface {
	ID() string
	Send(msg *ServerMessage) error
	Close() error
}

type wsConn struct {
	id     string
	ws     *websocket.Conn
	logger *slog.Logger
	send   chan *ServerMessage
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

func newWSConn(ws *websocket.Conn, id string, logger *slog.Logger) *wsConn {
	return &wsConn{
		id:     id,
		ws:     ws,
		logger: logger.With("conn_id", id),
		send:   make(chan *ServerMessage, 64),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

// Send queues a message for the write pump. A slow consumer loses messages
// rather than stalling the broadcast path.
func (c *wsConn) Send(msg *ServerMessage) error {
	select {
	case <-c.done:
		return nil
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn("send buffer full, dropping message", "event", msg.Event)
		return nil
	}
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

// readPump delivers decoded envelopes to handle until the socket dies.
// Malformed frames are dropped; they never kill the connection.
func (c *wsConn) readPump(handle func(*ClientMessage)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error("unmarshal error", "error", err)
			continue
		}
		handle(&msg)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("marshal error", "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("write error", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
