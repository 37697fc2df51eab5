package websocket

import "sync"

// Room name builders. Drivers auto-join their own rooms on toggle, so they
// receive the same corroborating broadcasts passengers do.
func BusRoom(busID string) string     { return "bus:" + busID }
func RouteRoom(routeID string) string { return "route:" + routeID }

// Hub is the in-memory subscription registry: room name -> member clients.
// Memberships die with the socket or the process; clients reconcile through
// the snapshot they get on subscribe.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	members map[*Client]map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		members: make(map[*Client]map[string]struct{}),
	}
}

// Join adds the client to a room. Idempotent.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}

	if h.members[c] == nil {
		h.members[c] = make(map[string]struct{})
	}
	h.members[c][room] = struct{}{}
}

// Leave removes the client from one room.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

// Remove drops the client from every room. Called on disconnect.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.members[c] {
		h.leaveLocked(room, c)
	}
	delete(h.members, c)
}

func (h *Hub) leaveLocked(room string, c *Client) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	if set, ok := h.members[c]; ok {
		delete(set, room)
	}
}

// Broadcast enqueues a payload to every member of the given rooms, at most
// once per client even when it sits in several of the rooms. Clients whose
// queue overflows are dropped from the hub and closed.
func (h *Hub) Broadcast(rooms []string, kind, busID string, payload []byte) {
	h.mu.RLock()
	seen := make(map[*Client]struct{})
	var targets []*Client
	for _, room := range rooms {
		for c := range h.rooms[room] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Enqueue(kind, busID, payload); err != nil {
			// slow consumer: evict rather than block the broadcaster
			h.Remove(c)
			c.Close()
		}
	}
}

// RoomSize reports the member count of one room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
