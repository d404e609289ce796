package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attach wires a session into the hub without a websocket connection; the
// tests read frames straight off the send channel.
func attach(h *Hub, userID string, seller bool, buf int) *session {
	s := &session{
		send:  make(chan []byte, buf),
		rooms: make(map[string]bool),
	}
	h.register(s)
	h.join(s, userRoom(userID))
	if seller {
		h.join(s, RoomSellers)
	}
	return s
}

func recvFrame(t *testing.T, s *session) frame {
	t.Helper()
	select {
	case msg, ok := <-s.send:
		require.True(t, ok, "send channel closed")
		var f frame
		require.NoError(t, json.Unmarshal(msg, &f))
		return f
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return frame{}
	}
}

func assertNoFrame(t *testing.T, s *session) {
	t.Helper()
	select {
	case msg := <-s.send:
		t.Fatalf("unexpected frame: %s", msg)
	default:
	}
}

func TestHub_PublishToUserTargetsPrivateRoom(t *testing.T) {
	h := NewHub()
	alice := attach(h, "u1", false, 8)
	bob := attach(h, "u2", false, 8)

	err := h.PublishToUser(context.Background(), "u1", "new_order", map[string]any{"order_id": "o1"})
	require.NoError(t, err)

	f := recvFrame(t, alice)
	assert.Equal(t, "new_order", f.Event)
	assertNoFrame(t, bob)
}

func TestHub_PublishToUserReachesEverySessionOfThatUser(t *testing.T) {
	h := NewHub()
	tab1 := attach(h, "u1", false, 8)
	tab2 := attach(h, "u1", false, 8)

	require.NoError(t, h.PublishToUser(context.Background(), "u1", "low_stock_alert", nil))

	assert.Equal(t, "low_stock_alert", recvFrame(t, tab1).Event)
	assert.Equal(t, "low_stock_alert", recvFrame(t, tab2).Event)
}

func TestHub_BroadcastReachesAllSessions(t *testing.T) {
	h := NewHub()
	buyer := attach(h, "u1", false, 8)
	seller := attach(h, "u2", true, 8)

	require.NoError(t, h.PublishBroadcast(context.Background(), "stock_update", map[string]int{"new_stock": 7}))

	assert.Equal(t, "stock_update", recvFrame(t, buyer).Event)
	assert.Equal(t, "stock_update", recvFrame(t, seller).Event)
}

func TestHub_SellersRoom(t *testing.T) {
	h := NewHub()
	buyer := attach(h, "u1", false, 8)
	seller := attach(h, "u2", true, 8)

	require.NoError(t, h.PublishToRoom(context.Background(), RoomSellers, "announcement", nil))

	assert.Equal(t, "announcement", recvFrame(t, seller).Event)
	assertNoFrame(t, buyer)
}

func TestHub_UnregisterTearsDownMembership(t *testing.T) {
	h := NewHub()
	alice := attach(h, "u1", true, 8)

	h.unregister(alice)

	require.NoError(t, h.PublishToUser(context.Background(), "u1", "new_order", nil))
	require.NoError(t, h.PublishToRoom(context.Background(), RoomSellers, "announcement", nil))

	// channel is closed and drained: nothing was delivered after teardown
	_, ok := <-alice.send
	assert.False(t, ok, "send channel should be closed on unregister")

	// double unregister is a no-op
	h.unregister(alice)
}

func TestHub_SlowConsumerIsDropped(t *testing.T) {
	h := NewHub()
	slow := attach(h, "u1", false, 1)
	healthy := attach(h, "u2", false, 8)

	// fills the slow session's buffer
	require.NoError(t, h.PublishBroadcast(context.Background(), "stock_update", nil))
	// overflows it: the slow session gets dropped, the healthy one keeps going
	require.NoError(t, h.PublishBroadcast(context.Background(), "stock_update", nil))

	assert.Equal(t, "stock_update", recvFrame(t, healthy).Event)
	assert.Equal(t, "stock_update", recvFrame(t, healthy).Event)

	// first frame is still buffered, then the channel closes
	recvFrame(t, slow)
	_, ok := <-slow.send
	assert.False(t, ok, "slow session should have been closed")

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.NotContains(t, h.sessions, slow)
	assert.Contains(t, h.sessions, healthy)
}
