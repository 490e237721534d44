package ws

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"

	"project-chat/internal/models"
	"project-chat/internal/observability"
)

// Hub tracks which live connections are subscribed to which project room.
// A room exists only while it has at least one subscriber.
type Hub struct {
	rooms  map[string]map[*Client]struct{}
	joined map[*Client]map[string]struct{}
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		joined: make(map[*Client]map[string]struct{}),
		logger: logger,
	}
}

// Join subscribes client to roomID. It reports false when the client was
// already subscribed.
func (h *Hub) Join(client *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID][client]; ok {
		return false
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	if _, ok := h.joined[client]; !ok {
		h.joined[client] = make(map[string]struct{})
	}
	h.joined[client][roomID] = struct{}{}
	return true
}

// Leave unsubscribes client from roomID. It reports false when the client
// was not subscribed.
func (h *Hub) Leave(client *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(client, roomID)
}

// Disconnect removes client from every room and returns the rooms it left,
// sorted.
func (h *Hub) Disconnect(client *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms := lo.Keys(h.joined[client])
	sort.Strings(rooms)
	for _, roomID := range rooms {
		h.leaveLocked(client, roomID)
	}
	delete(h.joined, client)
	return rooms
}

func (h *Hub) leaveLocked(client *Client, roomID string) bool {
	conns, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := conns[client]; !ok {
		return false
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.rooms, roomID)
	}
	if rooms, ok := h.joined[client]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(h.joined, client)
		}
	}
	return true
}

// Rooms returns the rooms client is subscribed to, sorted.
func (h *Hub) Rooms(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := lo.Keys(h.joined[client])
	sort.Strings(rooms)
	return rooms
}

// RoomSize returns the number of subscribers of roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast enqueues event to every subscriber of roomID except exclude.
// Delivery is best effort: a subscriber whose queue is full is closed and
// does not hold up the others.
func (h *Hub) Broadcast(roomID, event string, data any, exclude *Client) {
	h.mu.RLock()
	targets := lo.Keys(h.rooms[roomID])
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(models.OutboundFrame{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "event", event, "room_id", roomID, "error", err)
		return
	}

	delivered := 0
	for _, client := range targets {
		if client == exclude {
			continue
		}
		if client.enqueue(payload) {
			delivered++
			continue
		}
		select {
		case <-client.Closed():
			continue
		default:
		}
		h.logger.Warn("dropping slow websocket client", "conn_id", client.ID(), "room_id", roomID, "event", event)
		observability.IncBroadcastDrop()
		client.Close()
	}
	observability.AddBroadcastDeliveries(event, delivered)
}
