// Package wsstore implements store.Store as a websocket client of the sync
// relay. Writes are fire-and-forget: the server reports failures
// asynchronously and they are logged, not returned, matching the
// last-writer-wins convergence model the game core is built on.
package wsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"decrypto/internal/relay"
	"decrypto/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Store is a relay-backed store.Store.
type Store struct {
	ws     *websocket.Conn
	logger *slog.Logger

	send   chan []byte
	done   chan struct{}
	nextID atomic.Int64

	mu        sync.Mutex
	closed    bool
	pending   map[int64]chan *relay.Message
	listeners map[int64]*listener

	qmu     sync.Mutex
	qcond   *sync.Cond
	queue   []snapEvent
	qclosed bool
}

type listener struct {
	fn       store.ListenFunc
	detached atomic.Bool
}

type snapEvent struct {
	l    *listener
	snap json.RawMessage
}

// Dial connects to a sync relay endpoint (ws:// or wss:// URL).
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	s := &Store{
		ws:        ws,
		logger:    logger,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
		pending:   make(map[int64]chan *relay.Message),
		listeners: make(map[int64]*listener),
	}
	s.qcond = sync.NewCond(&s.qmu)
	go s.readPump()
	go s.writePump()
	go s.deliver()
	return s, nil
}

// Close tears down the connection and all listeners.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.listeners = make(map[int64]*listener)
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
	close(s.done)
	s.mu.Unlock()

	s.qmu.Lock()
	s.qclosed = true
	s.queue = nil
	s.qcond.Signal()
	s.qmu.Unlock()

	return s.ws.Close()
}

// Get reads the subtree at path via a request/response round trip.
func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	id := s.nextID.Add(1)
	ch := make(chan *relay.Message, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("wsstore closed")
	}
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(&relay.Message{Op: relay.OpGet, ID: id, Path: path}); err != nil {
		return nil, err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("wsstore closed")
		}
		if msg.Op == relay.OpError {
			return nil, fmt.Errorf("relay: %s", msg.Error)
		}
		return msg.Value, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, fmt.Errorf("wsstore closed")
	}
}

// Set replaces the subtree at path with value.
func (s *Store) Set(_ context.Context, path string, value any) error {
	raw, err := marshalValue(value)
	if err != nil {
		return err
	}
	return s.write(&relay.Message{Op: relay.OpSet, Path: path, Value: raw})
}

// Update applies all path/value pairs as one atomic write.
func (s *Store) Update(_ context.Context, values map[string]any) error {
	raws := make(map[string]json.RawMessage, len(values))
	for path, value := range values {
		raw, err := marshalValue(value)
		if err != nil {
			return err
		}
		raws[path] = raw
	}
	return s.write(&relay.Message{Op: relay.OpUpdate, Values: raws})
}

// Delete removes the subtree at path.
func (s *Store) Delete(_ context.Context, path string) error {
	return s.write(&relay.Message{Op: relay.OpDelete, Path: path})
}

// Listen subscribes fn to the subtree at path. The relay sends the current
// snapshot first, then one per change.
func (s *Store) Listen(path string, fn store.ListenFunc) (store.DetachFunc, error) {
	id := s.nextID.Add(1)
	l := &listener{fn: fn}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("wsstore closed")
	}
	s.listeners[id] = l
	s.mu.Unlock()

	if err := s.write(&relay.Message{Op: relay.OpListen, ID: id, Path: path}); err != nil {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
		return nil, err
	}

	var once sync.Once
	detach := func() {
		once.Do(func() {
			l.detached.Store(true)
			s.mu.Lock()
			delete(s.listeners, id)
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				_ = s.write(&relay.Message{Op: relay.OpUnlisten, ID: id})
			}
		})
	}
	return detach, nil
}

func (s *Store) write(msg *relay.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	case <-s.done:
		return fmt.Errorf("wsstore closed")
	}
}

func (s *Store) readPump() {
	defer func() { _ = s.Close() }()

	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			return
		}
		var msg relay.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("bad relay frame", "error", err)
			continue
		}
		s.dispatch(&msg)
	}
}

func (s *Store) dispatch(msg *relay.Message) {
	switch msg.Op {
	case relay.OpSnapshot:
		s.mu.Lock()
		l, ok := s.listeners[msg.ID]
		s.mu.Unlock()
		if ok {
			s.enqueue(l, msg.Value)
		}
	case relay.OpResult, relay.OpError:
		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		if ok {
			ch <- msg
		} else if msg.Op == relay.OpError {
			// Failure of a fire-and-forget write.
			s.logger.Warn("relay write rejected", "error", msg.Error)
		}
	case relay.OpPong:
	default:
		s.logger.Warn("unknown relay op", "op", msg.Op)
	}
}

// enqueue hands a snapshot to the delivery goroutine. Delivery is
// decoupled from the read pump so listener callbacks may issue store
// calls without deadlocking the connection, and single-queued so every
// listener observes changes in the order the relay sent them.
func (s *Store) enqueue(l *listener, snap json.RawMessage) {
	s.qmu.Lock()
	if !s.qclosed {
		s.queue = append(s.queue, snapEvent{l: l, snap: snap})
		s.qcond.Signal()
	}
	s.qmu.Unlock()
}

func (s *Store) deliver() {
	for {
		s.qmu.Lock()
		for len(s.queue) == 0 && !s.qclosed {
			s.qcond.Wait()
		}
		if s.qclosed {
			s.qmu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()
		if !ev.l.detached.Load() {
			ev.l.fn(ev.snap)
		}
	}
}

func (s *Store) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.ws.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func marshalValue(value any) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
