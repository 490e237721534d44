package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-chat/internal/models"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testFrame struct {
	Event string          `json:"event"`
	AckID string          `json:"ackId"`
	Data  json.RawMessage `json:"data"`
}

func newTestClient(userID string, queueSize int) *Client {
	identity := models.Identity{ID: userID, Username: userID, FullName: userID}
	return newClient(identity, ConnInfo{UserID: userID}, nil, queueSize, discardLogger)
}

func nextFrame(t *testing.T, c *Client) testFrame {
	t.Helper()
	select {
	case raw := <-c.send:
		var f testFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatalf("no frame queued for %s", c.identity.ID)
		return testFrame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame for %s: %s", c.identity.ID, raw)
	default:
	}
}

func TestHubJoinLeave(t *testing.T) {
	hub := NewHub(discardLogger)
	alice := newTestClient("alice", 4)

	assert.True(t, hub.Join(alice, "p1"))
	assert.False(t, hub.Join(alice, "p1"))
	assert.Equal(t, 1, hub.RoomSize("p1"))

	assert.True(t, hub.Leave(alice, "p1"))
	assert.False(t, hub.Leave(alice, "p1"))
	assert.False(t, hub.Leave(alice, "unknown"))
	assert.Equal(t, 0, hub.RoomSize("p1"))
	assert.Empty(t, hub.Rooms(alice))
}

func TestHubDisconnectReturnsRoomsSorted(t *testing.T) {
	hub := NewHub(discardLogger)
	alice := newTestClient("alice", 4)
	bob := newTestClient("bob", 4)

	hub.Join(alice, "p2")
	hub.Join(alice, "p1")
	hub.Join(bob, "p1")

	assert.Equal(t, []string{"p1", "p2"}, hub.Disconnect(alice))
	assert.Empty(t, hub.Rooms(alice))
	assert.Equal(t, 1, hub.RoomSize("p1"))
	assert.Equal(t, 0, hub.RoomSize("p2"))
	assert.Empty(t, hub.Disconnect(alice))
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub(discardLogger)
	alice := newTestClient("alice", 4)
	bob := newTestClient("bob", 4)
	carol := newTestClient("carol", 4)
	hub.Join(alice, "p1")
	hub.Join(bob, "p1")
	hub.Join(carol, "p2")

	hub.Broadcast("p1", models.EventUserTyping, models.TypingEvent{RoomID: "p1", IsTyping: true}, alice)

	f := nextFrame(t, bob)
	assert.Equal(t, models.EventUserTyping, f.Event)
	assert.Empty(t, f.AckID)
	assertNoFrame(t, alice)
	assertNoFrame(t, carol)
}

func TestHubBroadcastDropsFullClient(t *testing.T) {
	hub := NewHub(discardLogger)
	slow := newTestClient("slow", 1)
	fast := newTestClient("fast", 4)
	hub.Join(slow, "p1")
	hub.Join(fast, "p1")

	hub.Broadcast("p1", "e1", nil, nil)
	hub.Broadcast("p1", "e2", nil, nil)

	select {
	case <-slow.Closed():
	default:
		t.Fatal("slow client should have been closed")
	}
	assert.Equal(t, "e1", nextFrame(t, fast).Event)
	assert.Equal(t, "e2", nextFrame(t, fast).Event)
}

func TestHubBroadcastEmptyRoom(t *testing.T) {
	hub := NewHub(discardLogger)
	assert.NotPanics(t, func() { hub.Broadcast("nobody", "e", nil, nil) })
}
