// Package memory implements store.Store as an in-process document tree.
// It backs unit tests and the relay daemon. Notifications are delivered
// asynchronously through a single dispatch queue, mirroring the
// event-loop semantics of a remote real-time store: a write returns
// before its echo arrives, every client observes changes in write order,
// and the writer converges through the same listener path as everyone
// else.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"decrypto/internal/store"
)

// Store is an in-memory document tree with per-path listeners.
type Store struct {
	mu        sync.Mutex
	root      map[string]any
	listeners map[int]*listener
	nextID    int
	closed    bool

	qmu     sync.Mutex
	qcond   *sync.Cond
	queue   []event
	qclosed bool
}

type listener struct {
	path     string
	fn       store.ListenFunc
	detached atomic.Bool
}

type event struct {
	l    *listener
	snap json.RawMessage
}

// New creates an empty in-memory store.
func New() *Store {
	s := &Store{
		root:      make(map[string]any),
		listeners: make(map[int]*listener),
	}
	s.qcond = sync.NewCond(&s.qmu)
	go s.dispatch()
	return s
}

// dispatch delivers queued snapshots one at a time, in enqueue order.
// Ordering across listeners matters: the advancement rules in the game
// core assume a change is observed before any change it caused.
func (s *Store) dispatch() {
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

func (s *Store) enqueueLocked(l *listener) {
	ev := event{l: l, snap: s.snapshotLocked(l.path)}
	s.qmu.Lock()
	if !s.qclosed {
		s.queue = append(s.queue, ev)
		s.qcond.Signal()
	}
	s.qmu.Unlock()
}

// Get reads the subtree at path.
func (s *Store) Get(_ context.Context, path string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := lookup(s.root, store.Split(path))
	if !ok {
		return nil, nil
	}
	return json.Marshal(node)
}

// Set replaces the subtree at path with value. Nil and empty containers
// delete the subtree.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Delete removes the subtree at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

// Update applies all path/value pairs atomically, then notifies every
// listener whose subtree overlaps a touched path.
func (s *Store) Update(_ context.Context, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store closed")
	}

	touched := make([]string, 0, len(values))
	for path, value := range values {
		segs := store.Split(path)
		if len(segs) == 0 {
			return fmt.Errorf("empty path in update")
		}
		node, err := normalize(value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", path, err)
		}
		if isEmptyNode(node) {
			remove(s.root, segs)
		} else {
			insert(s.root, segs, node)
		}
		touched = append(touched, path)
	}

	for _, id := range s.sortedListenerIDsLocked() {
		l := s.listeners[id]
		for _, path := range touched {
			if store.Related(l.path, path) {
				s.enqueueLocked(l)
				break
			}
		}
	}
	return nil
}

// Listen subscribes fn to the subtree at path. The current snapshot is
// delivered first, asynchronously.
func (s *Store) Listen(path string, fn store.ListenFunc) (store.DetachFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("memory store closed")
	}

	l := &listener{path: path, fn: fn}
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.enqueueLocked(l)

	detach := func() {
		l.detached.Store(true)
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
	return detach, nil
}

// Close stops delivery and rejects further writes. Pending snapshots are
// dropped.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.listeners = make(map[int]*listener)
	s.mu.Unlock()

	s.qmu.Lock()
	s.qclosed = true
	s.queue = nil
	s.qcond.Signal()
	s.qmu.Unlock()
}

func (s *Store) sortedListenerIDsLocked() []int {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (s *Store) snapshotLocked(path string) json.RawMessage {
	node, ok := lookup(s.root, store.Split(path))
	if !ok {
		return nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return nil
	}
	return raw
}

// normalize round-trips value through JSON so the tree only ever holds
// maps, slices, and scalars.
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	return node, nil
}

func isEmptyNode(node any) bool {
	switch v := node.(type) {
	case nil:
		return true
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func lookup(root map[string]any, segs []string) (any, bool) {
	var node any = root
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

func insert(root map[string]any, segs []string, node any) {
	m := root
	for _, seg := range segs[:len(segs)-1] {
		child, ok := m[seg].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[seg] = child
		}
		m = child
	}
	m[segs[len(segs)-1]] = node
}

func remove(root map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(root, segs[0])
		return
	}
	child, ok := root[segs[0]].(map[string]any)
	if !ok {
		return
	}
	remove(child, segs[1:])
	if len(child) == 0 {
		delete(root, segs[0])
	}
}
