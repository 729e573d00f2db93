package redisstore

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to the Redis named by REDIS_ADDR, or skips. Each
// test gets its own key prefix so runs never collide.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := New(ctx, Options{
		Addr:      addr,
		KeyPrefix: "decrypto-test-" + uuid.NewString()[:8],
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestSetGetDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/ABCD/language", "en"))
	raw, err := st.Get(ctx, "rooms/ABCD/language")
	require.NoError(t, err)
	assert.JSONEq(t, `"en"`, string(raw))

	raw, err = st.Get(ctx, "rooms/ABCD/missing")
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.NoError(t, st.Delete(ctx, "rooms/ABCD/language"))
	raw, err = st.Get(ctx, "rooms/ABCD/language")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestUpdateMultiPath(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Update(ctx, map[string]any{
		"rooms/ABCD/state/round":        2,
		"rooms/ABCD/state/teamPhases/A": "clues",
		"rooms/ABCD/state/teamPhases/B": "guess_us",
	}))

	raw, err := st.Get(ctx, "rooms/ABCD/state")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"round":2,"teamPhases":{"A":"clues","B":"guess_us"}}`,
		string(raw))
}

func TestListenDeliversSnapshots(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var snaps []json.RawMessage
	detach, err := st.Listen("rooms/ABCD/players", func(snapshot json.RawMessage) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, snapshot)
	})
	require.NoError(t, err)
	defer detach()

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(snaps)
	}

	waitFor(t, func() bool { return count() >= 1 }, "initial snapshot")
	mu.Lock()
	assert.Nil(t, snaps[0])
	mu.Unlock()

	require.NoError(t, st.Set(ctx, "rooms/ABCD/players/p1", map[string]any{"name": "alice"}))
	waitFor(t, func() bool { return count() >= 2 }, "write echo")
	mu.Lock()
	assert.JSONEq(t, `{"p1":{"name":"alice"}}`, string(snaps[len(snaps)-1]))
	mu.Unlock()

	require.NoError(t, st.Set(ctx, "rooms/ABCD/state/round", 3))
	raw, err := st.Get(ctx, "rooms/ABCD/state/round")
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(raw))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, count())
}

func TestShortPathRejected(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Get(ctx, "rooms")
	assert.Error(t, err)
	assert.Error(t, st.Set(ctx, "rooms", 1))
}

func TestDocKey(t *testing.T) {
	s := &Store{prefix: "p"}
	key, rest, err := s.docKey("rooms/ABCD/state/round")
	require.NoError(t, err)
	assert.Equal(t, "p:rooms:ABCD", key)
	assert.Equal(t, []string{"state", "round"}, rest)

	_, _, err = s.docKey("rooms")
	assert.Error(t, err)
}
