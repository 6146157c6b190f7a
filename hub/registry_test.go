package hub

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeChannel struct {
	mu      sync.Mutex
	frames  [][]byte
	open    bool
	sendErr error
	closes  int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{open: true}
}

func (f *fakeChannel) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeChannel) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.closes++
	return nil
}

func (f *fakeChannel) messages(t *testing.T) []Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0, len(f.frames))
	for _, frame := range f.frames {
		var m Message
		require.NoError(t, json.Unmarshal(frame, &m))
		out = append(out, m)
	}
	return out
}

func TestRegistry_SendDeliversEnvelope(t *testing.T) {
	r := NewRegistry(testLogger())
	ch := newFakeChannel()
	r.Register(1, ch, ClientInfo{UserID: 1, Nickname: "ace"})

	ok := r.Send(1, "tournament_joined", map[string]any{"tournamentId": 5, "success": true})
	require.True(t, ok)

	msgs := ch.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "tournament_joined", msgs[0].Type)
	payload, isMap := msgs[0].Payload.(map[string]any)
	require.True(t, isMap)
	assert.Equal(t, float64(5), payload["tournamentId"])
}

func TestRegistry_SendFailures(t *testing.T) {
	t.Run("unknown client", func(t *testing.T) {
		r := NewRegistry(testLogger())
		assert.False(t, r.Send(42, "error", nil))
	})

	t.Run("closed channel removes entry", func(t *testing.T) {
		r := NewRegistry(testLogger())
		ch := newFakeChannel()
		r.Register(1, ch, ClientInfo{UserID: 1})
		ch.open = false

		assert.False(t, r.Send(1, "error", nil))
		assert.Equal(t, 0, r.ClientCount())
	})

	t.Run("transmit error removes entry", func(t *testing.T) {
		r := NewRegistry(testLogger())
		ch := newFakeChannel()
		ch.sendErr = errors.New("broken pipe")
		r.Register(1, ch, ClientInfo{UserID: 1})
		r.JoinRoom("tournament:1", 1)

		assert.False(t, r.Send(1, "error", nil))
		assert.False(t, r.IsConnected(1))
		assert.Empty(t, r.MembersOf("tournament:1"))
	})
}

func TestRegistry_SendToManyContinuesAfterFailure(t *testing.T) {
	r := NewRegistry(testLogger())
	good1, bad, good2 := newFakeChannel(), newFakeChannel(), newFakeChannel()
	bad.sendErr = errors.New("reset by peer")
	r.Register(1, good1, ClientInfo{UserID: 1})
	r.Register(2, bad, ClientInfo{UserID: 2})
	r.Register(3, good2, ClientInfo{UserID: 3})

	r.SendToMany([]int{1, 2, 99, 3}, "tournament_started", map[string]int{"tournamentId": 7})

	assert.Len(t, good1.messages(t), 1)
	assert.Len(t, good2.messages(t), 1)
	assert.False(t, r.IsConnected(2))
	assert.Equal(t, 2, r.ClientCount())
}

func TestRegistry_RegisterReplacesAndClosesPrevious(t *testing.T) {
	r := NewRegistry(testLogger())
	first, second := newFakeChannel(), newFakeChannel()

	r.Register(1, first, ClientInfo{UserID: 1, SessionID: "a"})
	r.Register(1, second, ClientInfo{UserID: 1, SessionID: "b"})

	assert.Equal(t, 1, first.closes)
	assert.Equal(t, 1, r.ClientCount())

	info, ok := r.Metadata(1)
	require.True(t, ok)
	assert.Equal(t, "b", info.SessionID)

	// The old socket shutting down must not evict the new one.
	assert.False(t, r.Unregister(1, first))
	assert.True(t, r.IsConnected(1))

	assert.True(t, r.Unregister(1, second))
	assert.False(t, r.IsConnected(1))
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry(testLogger())
	ch := newFakeChannel()
	r.Register(1, ch, ClientInfo{UserID: 1})

	r.Remove(1)
	r.Remove(1)
	r.Remove(2)

	assert.Equal(t, 0, r.ClientCount())
	assert.Equal(t, 1, ch.closes)
}

func TestRegistry_Rooms(t *testing.T) {
	r := NewRegistry(testLogger())
	channels := map[int]*fakeChannel{}
	for id := 1; id <= 3; id++ {
		channels[id] = newFakeChannel()
		r.Register(id, channels[id], ClientInfo{UserID: id})
		r.JoinRoom("tournament:9", id)
	}
	r.JoinRoom("tournament:9", 1)
	r.JoinRoom("tournament:9", 77) // not connected, ignored

	assert.Equal(t, []int{1, 2, 3}, r.MembersOf("tournament:9"))

	r.SendToRoom("tournament:9", "tournament_details", map[string]int{"id": 9}, 2)
	assert.Len(t, channels[1].messages(t), 1)
	assert.Empty(t, channels[2].messages(t))
	assert.Len(t, channels[3].messages(t), 1)

	r.LeaveRoom("tournament:9", 1)
	r.Remove(3)
	assert.Equal(t, []int{2}, r.MembersOf("tournament:9"))

	r.LeaveRoom("tournament:9", 2)
	r.mu.RLock()
	_, exists := r.rooms["tournament:9"]
	r.mu.RUnlock()
	assert.False(t, exists, "empty room should be deleted")
}

func TestRegistry_BroadcastAndMetadata(t *testing.T) {
	r := NewRegistry(testLogger())
	a, b := newFakeChannel(), newFakeChannel()
	r.Register(1, a, ClientInfo{UserID: 1})
	r.Register(2, b, ClientInfo{UserID: 2})

	r.Broadcast("tournament_list", []int{}, 1)
	assert.Empty(t, a.messages(t))
	assert.Len(t, b.messages(t), 1)

	now := time.Now()
	assert.True(t, r.UpdateMetadata(2, func(info *ClientInfo) {
		info.Nickname = "bravo"
		info.ConnectedAt = now
	}))
	assert.False(t, r.UpdateMetadata(5, func(*ClientInfo) {}))

	info, ok := r.Metadata(2)
	require.True(t, ok)
	assert.Equal(t, "bravo", info.Nickname)
	assert.True(t, info.ConnectedAt.Equal(now))

	r.Close()
	assert.Equal(t, 0, r.ClientCount())
	assert.False(t, a.IsOpen())
	assert.False(t, b.IsOpen())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(testLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ch := newFakeChannel()
			r.Register(id, ch, ClientInfo{UserID: id})
			r.JoinRoom("lobby", id)
			r.Send(id, "ping", nil)
			r.SendToRoom("lobby", "tournament_details", nil)
			if id%2 == 0 {
				r.Unregister(id, ch)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.ClientCount())
	assert.Len(t, r.MembersOf("lobby"), 25)
}
