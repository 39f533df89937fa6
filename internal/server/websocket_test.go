package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sohbat-app/chat-service/internal/models"
	"github.com/sohbat-app/chat-service/internal/realtime"
)

type stubBackend struct{}

func (stubBackend) History(context.Context, string) ([]*models.Message, error) {
	return nil, nil
}

func (stubBackend) CanAccess(context.Context, string, string) (bool, error) {
	return true, nil
}

type stubFeed struct{}

func (stubFeed) SubscribeMessages(context.Context, string) (<-chan realtime.MessageEvent, func()) {
	return make(chan realtime.MessageEvent), func() {}
}

func (stubFeed) SubscribeMembers(context.Context, string) (<-chan realtime.MemberEvent, func()) {
	return make(chan realtime.MemberEvent), func() {}
}

func newHubClient(h *Hub, send int, rooms ...string) *Client {
	client := &Client{
		Send:     make(chan []byte, send),
		Hub:      h,
		UserID:   "u1",
		Username: "alice",
		Rooms:    make(map[string]bool),
	}
	h.clients[client] = true
	for _, roomID := range rooms {
		client.Rooms[roomID] = true
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[*Client]bool)
		}
		h.rooms[roomID][client] = true
	}
	return client
}

func TestBroadcastDeliversToRoomClients(t *testing.T) {
	h := NewHub(stubBackend{}, stubFeed{})
	client := newHubClient(h, 1, "a")

	h.BroadcastToRoom("a", Frame{Type: "message", RoomID: "a"})

	require.Len(t, client.Send, 1)
	assert.Contains(t, h.clients, client)
}

func TestSlowClientIsDroppedFromEveryRoom(t *testing.T) {
	h := NewHub(stubBackend{}, stubFeed{})
	slow := newHubClient(h, 0, "a", "b")
	healthy := newHubClient(h, 4, "b")

	h.BroadcastToRoom("a", Frame{Type: "message", RoomID: "a"})

	assert.NotContains(t, h.clients, slow)
	assert.NotContains(t, h.rooms["b"], slow)

	// A later broadcast to the slow client's other room must not hit its
	// closed channel.
	assert.NotPanics(t, func() {
		h.BroadcastToRoom("b", Frame{Type: "message", RoomID: "b"})
	})
	assert.Len(t, healthy.Send, 1)
}

func TestPresenceBroadcastDropsSlowClientFromEveryRoom(t *testing.T) {
	h := NewHub(stubBackend{}, stubFeed{})
	slow := newHubClient(h, 0, "a", "b")

	h.broadcastPresence("a")

	assert.NotContains(t, h.clients, slow)
	assert.NotPanics(t, func() {
		h.broadcastPresence("b")
	})
}

func TestUnregisterAfterBroadcastDropIsSafe(t *testing.T) {
	h := NewHub(stubBackend{}, stubFeed{})
	slow := newHubClient(h, 0, "a", "b")

	h.BroadcastToRoom("a", Frame{Type: "message", RoomID: "a"})
	require.NotContains(t, h.clients, slow)

	// The read pump still funnels the client through unregistration when its
	// connection dies; the channel must not be closed twice.
	assert.NotPanics(t, func() {
		h.unregisterClient(slow)
	})
	assert.Empty(t, slow.Rooms)
}
