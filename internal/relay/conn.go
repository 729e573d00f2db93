package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"decrypto/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1 << 20

	// Size of the send channel buffer
	sendBufferSize = 256
)

// conn is one connected sync client. Every listener the client registers
// is backed by a store listener whose snapshots funnel into the send
// channel, so a slow client never blocks the store.
type conn struct {
	ws     *websocket.Conn
	st     store.Store
	logger *slog.Logger

	send chan []byte
	done chan struct{}

	mu       sync.Mutex
	closed   bool
	detaches map[int64]store.DetachFunc
}

func newConn(ws *websocket.Conn, st store.Store, logger *slog.Logger) *conn {
	return &conn{
		ws:       ws,
		st:       st,
		logger:   logger,
		send:     make(chan []byte, sendBufferSize),
		done:     make(chan struct{}),
		detaches: make(map[int64]store.DetachFunc),
	}
}

func (c *conn) run() {
	go c.writePump()
	c.readPump()
}

func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	detaches := c.detaches
	c.detaches = make(map[int64]store.DetachFunc)
	close(c.done)
	c.mu.Unlock()

	for _, detach := range detaches {
		detach()
	}
	_ = c.ws.Close()
}

func (c *conn) reply(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal reply", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping frame", "op", msg.Op, "path", msg.Path)
	}
}

func (c *conn) replyError(id int64, err error) {
	c.reply(&Message{Op: OpError, ID: id, Error: err.Error()})
}

func (c *conn) readPump() {
	defer c.close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.replyError(0, err)
			continue
		}
		c.handle(&msg)
	}
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *conn) handle(msg *Message) {
	ctx := context.Background()

	switch msg.Op {
	case OpListen:
		c.handleListen(msg)
	case OpUnlisten:
		c.handleUnlisten(msg)
	case OpGet:
		value, err := c.st.Get(ctx, msg.Path)
		if err != nil {
			c.replyError(msg.ID, err)
			return
		}
		c.reply(&Message{Op: OpResult, ID: msg.ID, Path: msg.Path, Value: value})
	case OpSet:
		if err := c.st.Set(ctx, msg.Path, rawValue(msg.Value)); err != nil {
			c.replyError(msg.ID, err)
		}
	case OpUpdate:
		values := make(map[string]any, len(msg.Values))
		for path, raw := range msg.Values {
			values[path] = rawValue(raw)
		}
		if err := c.st.Update(ctx, values); err != nil {
			c.replyError(msg.ID, err)
		}
	case OpDelete:
		if err := c.st.Delete(ctx, msg.Path); err != nil {
			c.replyError(msg.ID, err)
		}
	case OpPing:
		c.reply(&Message{Op: OpPong, ID: msg.ID})
	default:
		c.logger.Warn("unknown op", "op", msg.Op)
	}
}

func (c *conn) handleListen(msg *Message) {
	id, path := msg.ID, msg.Path
	detach, err := c.st.Listen(path, func(snapshot json.RawMessage) {
		c.reply(&Message{Op: OpSnapshot, ID: id, Path: path, Value: snapshot})
	})
	if err != nil {
		c.replyError(id, err)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		detach()
		return
	}
	if prev, ok := c.detaches[id]; ok {
		prev()
	}
	c.detaches[id] = detach
	c.mu.Unlock()
}

func (c *conn) handleUnlisten(msg *Message) {
	c.mu.Lock()
	detach, ok := c.detaches[msg.ID]
	delete(c.detaches, msg.ID)
	c.mu.Unlock()
	if ok {
		detach()
	}
}

// rawValue keeps raw JSON opaque through the store's normalize round-trip.
func rawValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
