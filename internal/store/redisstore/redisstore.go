// Package redisstore implements store.Store on a Redis server. Each room
// lives in a single JSON document under one key, so per-room writes are
// last-writer-wins at document granularity: multi-path updates run inside
// an optimistic WATCH/MULTI transaction, and a pub/sub message per write
// carries the touched paths so listeners can refresh their subtrees.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"

	"decrypto/internal/store"
)

const txRetries = 16

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces all keys and channels. Defaults to "decrypto".
	KeyPrefix string
	Logger    *slog.Logger
}

// Store is a Redis-backed store.Store.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger

	mu        sync.Mutex
	listeners map[int]*subscription
	nextID    int
}

type subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "decrypto"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{
		client:    client,
		prefix:    opts.KeyPrefix,
		logger:    opts.Logger,
		listeners: make(map[int]*subscription),
	}, nil
}

// Close detaches all listeners and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.listeners))
	for _, sub := range s.listeners {
		subs = append(subs, sub)
	}
	s.listeners = make(map[int]*subscription)
	s.mu.Unlock()
	for _, sub := range subs {
		_ = sub.pubsub.Close()
		<-sub.done
	}
	return s.client.Close()
}

// docKey maps a path onto its document key and the remaining in-document
// segments. The first two segments ("rooms/{roomId}") identify the
// document; a one-segment path addresses a whole collection and is not
// supported.
func (s *Store) docKey(path string) (string, []string, error) {
	segs := store.Split(path)
	if len(segs) < 2 {
		return "", nil, fmt.Errorf("path %q too short for redis store", path)
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, segs[0], segs[1]), segs[2:], nil
}

func (s *Store) channel(key string) string {
	return key + ":changes"
}

// Get reads the subtree at path.
func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	key, rest, err := s.docKey(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.loadDoc(ctx, key)
	if err != nil || doc == nil {
		return nil, err
	}
	node, ok := lookupNode(doc, rest)
	if !ok {
		return nil, nil
	}
	return json.Marshal(node)
}

// Set replaces the subtree at path with value.
func (s *Store) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, map[string]any{path: value})
}

// Delete removes the subtree at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	return s.Update(ctx, map[string]any{path: nil})
}

// Update applies all path/value pairs atomically. All paths must belong to
// the same room document, which is the only multi-path write the protocol
// performs.
func (s *Store) Update(ctx context.Context, values map[string]any) error {
	var key string
	type edit struct {
		segs []string
		node any
	}
	edits := make([]edit, 0, len(values))
	touched := make([]string, 0, len(values))
	for path, value := range values {
		k, rest, err := s.docKey(path)
		if err != nil {
			return err
		}
		if key == "" {
			key = k
		} else if key != k {
			return fmt.Errorf("atomic update spans documents %s and %s", key, k)
		}
		node, err := normalize(value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", path, err)
		}
		edits = append(edits, edit{segs: rest, node: node})
		touched = append(touched, path)
	}
	if key == "" {
		return nil
	}

	txn := func(tx *redis.Tx) error {
		doc := make(map[string]any)
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("corrupt document %s: %w", key, err)
			}
		}
		for _, e := range edits {
			applyEdit(doc, e.segs, e.node)
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(doc) == 0 {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, out, 0)
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < txRetries; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis update: %w", err)
	}

	payload, err := json.Marshal(touched)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel(key), payload).Err()
}

// Listen subscribes fn to the subtree at path. Snapshots are fetched on
// demand after each change notification, so delivery is eventually
// consistent with the document and always in notification order.
func (s *Store) Listen(path string, fn store.ListenFunc) (store.DetachFunc, error) {
	key, rest, err := s.docKey(path)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	pubsub := s.client.Subscribe(ctx, s.channel(key))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	sub := &subscription{pubsub: pubsub, done: make(chan struct{})}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = sub
	s.mu.Unlock()

	go func() {
		defer close(sub.done)
		fn(s.fetchSnapshot(ctx, key, rest))
		for msg := range pubsub.Channel() {
			var changed []string
			if err := json.Unmarshal([]byte(msg.Payload), &changed); err != nil {
				s.logger.Warn("bad change payload", "channel", msg.Channel, "error", err)
				continue
			}
			for _, p := range changed {
				if store.Related(p, path) {
					fn(s.fetchSnapshot(ctx, key, rest))
					break
				}
			}
		}
	}()

	var once sync.Once
	detach := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			_ = pubsub.Close()
			<-sub.done
		})
	}
	return detach, nil
}

func (s *Store) fetchSnapshot(ctx context.Context, key string, segs []string) json.RawMessage {
	doc, err := s.loadDoc(ctx, key)
	if err != nil {
		s.logger.Warn("snapshot fetch failed", "key", key, "error", err)
		return nil
	}
	if doc == nil {
		return nil
	}
	node, ok := lookupNode(doc, segs)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return nil
	}
	return raw
}

func (s *Store) loadDoc(ctx context.Context, key string) (map[string]any, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s: %w", key, err)
	}
	return doc, nil
}

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

func applyEdit(doc map[string]any, segs []string, node any) {
	if len(segs) == 0 {
		// Whole-document write: swap contents in place.
		for k := range doc {
			delete(doc, k)
		}
		if m, ok := node.(map[string]any); ok {
			for k, v := range m {
				doc[k] = v
			}
		}
		return
	}
	if isEmptyNode(node) {
		removeNode(doc, segs)
		return
	}
	m := doc
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

func removeNode(doc map[string]any, segs []string) {
	if len(segs) == 1 {
		delete(doc, segs[0])
		return
	}
	child, ok := doc[segs[0]].(map[string]any)
	if !ok {
		return
	}
	removeNode(child, segs[1:])
	if len(child) == 0 {
		delete(doc, segs[0])
	}
}

func lookupNode(doc map[string]any, segs []string) (any, bool) {
	var node any = doc
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
