// Package store defines the generic real-time key/value service the game
// core synchronizes through: path-addressed reads and writes, atomic
// multi-path updates, and per-path change listeners. Backends only provide
// last-writer-wins document merges; all game invariants are enforced
// cooperatively by the clients on top.
package store

import (
	"context"
	"encoding/json"
	"strings"
)

// ListenFunc receives the full JSON snapshot of the listened subtree. It is
// invoked once with the current value when the listener attaches, then
// again after every change touching the subtree. A missing subtree is
// delivered as nil.
type ListenFunc func(snapshot json.RawMessage)

// DetachFunc removes a listener. Safe to call more than once.
type DetachFunc func()

// Store is a path-addressed document store with change notification.
//
// Paths are slash-separated ("rooms/WXYZ/state/teamPhases/A"). Set replaces
// the subtree at a path; writing nil, an empty object, or an empty array
// deletes it. Update applies several Sets atomically: other writers observe
// either none or all of them. Listeners observe their own writes through
// the same notification path as everyone else's.
type Store interface {
	// Get reads the subtree at path. A missing path yields (nil, nil).
	Get(ctx context.Context, path string) (json.RawMessage, error)

	// Set replaces the subtree at path with value.
	Set(ctx context.Context, path string, value any) error

	// Update applies all path/value pairs as one atomic write.
	Update(ctx context.Context, values map[string]any) error

	// Delete removes the subtree at path.
	Delete(ctx context.Context, path string) error

	// Listen subscribes fn to the subtree at path.
	Listen(path string, fn ListenFunc) (DetachFunc, error)
}

// Join concatenates path segments with slashes, skipping empties.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// Split breaks a path into its segments.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Related reports whether two paths address overlapping subtrees, i.e. one
// is an ancestor of (or equal to) the other.
func Related(a, b string) bool {
	as, bs := Split(a), Split(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
