package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decrypto/internal/app"
	"decrypto/internal/relay"
	"decrypto/internal/store"
	"decrypto/internal/store/memory"
	"decrypto/internal/store/wsstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRelay starts an in-process sync relay over a fresh memory store and
// returns its ws:// URL.
func newRelay(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(relay.NewHandler(memory.New(), testLogger()))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *wsstore.Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := wsstore.Dial(ctx, url, testLogger())
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
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// collector accumulates listener snapshots in arrival order.
type collector struct {
	mu    sync.Mutex
	snaps []json.RawMessage
}

func (c *collector) fn(snapshot json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snapshot)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func (c *collector) at(i int) json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snaps[i]
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	st := dial(t, newRelay(t))
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "rooms/ABCD/language", "en"))
	waitFor(t, func() bool {
		raw, err := st.Get(ctx, "rooms/ABCD/language")
		return err == nil && string(raw) == `"en"`
	}, "set to land")

	raw, err := st.Get(ctx, "rooms/ABCD/missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestListenEchoesWrites(t *testing.T) {
	t.Parallel()
	st := dial(t, newRelay(t))
	ctx := context.Background()

	var c collector
	detach, err := st.Listen("rooms/ABCD/clues", c.fn)
	require.NoError(t, err)
	defer detach()

	waitFor(t, func() bool { return c.len() >= 1 }, "initial snapshot")
	assert.Nil(t, c.at(0))

	require.NoError(t, st.Set(ctx, "rooms/ABCD/clues/A/round_1", []string{"x", "y", "z"}))
	waitFor(t, func() bool { return c.len() >= 2 }, "write echo")
	assert.JSONEq(t, `{"A":{"round_1":["x","y","z"]}}`, string(c.at(1)))

	require.NoError(t, st.Delete(ctx, "rooms/ABCD/clues"))
	waitFor(t, func() bool { return c.len() >= 3 }, "delete echo")
	assert.Nil(t, c.at(2))
}

func TestUpdateIsOneSnapshot(t *testing.T) {
	t.Parallel()
	st := dial(t, newRelay(t))
	ctx := context.Background()

	var c collector
	detach, err := st.Listen("rooms/ABCD/state", c.fn)
	require.NoError(t, err)
	defer detach()
	waitFor(t, func() bool { return c.len() >= 1 }, "initial snapshot")

	require.NoError(t, st.Update(ctx, map[string]any{
		"rooms/ABCD/state/round":        2,
		"rooms/ABCD/state/teamPhases/A": "clues",
		"rooms/ABCD/state/teamPhases/B": "clues",
	}))
	waitFor(t, func() bool { return c.len() >= 2 }, "update echo")
	assert.JSONEq(t,
		`{"round":2,"teamPhases":{"A":"clues","B":"clues"}}`,
		string(c.at(1)))
	assert.Equal(t, 2, c.len())
}

func TestTwoClientsConverge(t *testing.T) {
	t.Parallel()
	url := newRelay(t)
	writer := dial(t, url)
	reader := dial(t, url)
	ctx := context.Background()

	var c collector
	detach, err := reader.Listen("rooms/ABCD/players", c.fn)
	require.NoError(t, err)
	defer detach()
	waitFor(t, func() bool { return c.len() >= 1 }, "initial snapshot")

	require.NoError(t, writer.Set(ctx, "rooms/ABCD/players/p1", map[string]any{
		"name": "alice",
		"team": "A",
	}))
	waitFor(t, func() bool { return c.len() >= 2 }, "cross-client snapshot")
	assert.JSONEq(t, `{"p1":{"name":"alice","team":"A"}}`, string(c.at(1)))
}

func TestUnlistenStopsDelivery(t *testing.T) {
	t.Parallel()
	st := dial(t, newRelay(t))
	ctx := context.Background()

	var c collector
	detach, err := st.Listen("rooms/ABCD", c.fn)
	require.NoError(t, err)
	waitFor(t, func() bool { return c.len() >= 1 }, "initial snapshot")

	detach()
	detach()

	require.NoError(t, st.Set(ctx, "rooms/ABCD/language", "it"))
	waitFor(t, func() bool {
		raw, err := st.Get(ctx, "rooms/ABCD/language")
		return err == nil && string(raw) == `"it"`
	}, "set to land")
	assert.Equal(t, 1, c.len())
}

func TestClosedStoreRejectsGet(t *testing.T) {
	t.Parallel()
	st := dial(t, newRelay(t))
	require.NoError(t, st.Close())

	_, err := st.Get(context.Background(), "rooms/ABCD")
	assert.Error(t, err)

	_, err = st.Listen("rooms/ABCD", func(json.RawMessage) {})
	assert.Error(t, err)
}

// TestSessionsOverRelay runs the game core against the relay end to end:
// two independent websocket clients share one room through the server.
func TestSessionsOverRelay(t *testing.T) {
	t.Parallel()
	url := newRelay(t)

	newSession := func(name string) *app.Session {
		s, err := app.NewSession(app.Options{
			Store:  dial(t, url),
			Logger: testLogger(),
		})
		require.NoError(t, err)
		t.Cleanup(s.Close)
		s.SetName(name)
		return s
	}

	host := newSession("alice")
	guest := newSession("bob")
	ctx := context.Background()

	code, err := host.CreateRoom(ctx, "")
	require.NoError(t, err)

	// Writes are fire-and-forget; wait for the room document to land
	// before joining from a second connection.
	probe := dial(t, url)
	waitFor(t, func() bool {
		raw, err := probe.Get(ctx, store.Join("rooms", code, "createdAt"))
		return err == nil && raw != nil
	}, "room document to land")

	require.NoError(t, guest.JoinRoom(ctx, code))

	waitFor(t, func() bool {
		return len(host.Players()) == 2 && len(guest.Players()) == 2
	}, "rosters to converge")

	require.NoError(t, guest.MoveToTeam(ctx, "B"))
	waitFor(t, func() bool {
		ts := host.Teams()
		return len(ts.A) == 1 && len(ts.B) == 1
	}, "team move to reach host")

	require.NoError(t, host.StartGame(ctx))
	waitFor(t, func() bool {
		return guest.Phase() != "" && guest.Phase() != "lobby"
	}, "game start to reach guest")
	assert.Equal(t, 1, guest.Round())

	raw, err := probe.Get(ctx, store.Join("rooms", code, "state", "phase"))
	require.NoError(t, err)
	assert.JSONEq(t, `"clues"`, string(raw))
}
