package websocket

import "testing"

func TestHubJoinLeave(t *testing.T) {
	h := NewHub()
	c := newQueueOnlyClient(4)

	h.Join(BusRoom("bus-1"), c)
	h.Join(BusRoom("bus-1"), c) // idempotent
	if got := h.RoomSize(BusRoom("bus-1")); got != 1 {
		t.Fatalf("room size = %d, want 1", got)
	}

	h.Leave(BusRoom("bus-1"), c)
	if got := h.RoomSize(BusRoom("bus-1")); got != 0 {
		t.Fatalf("room size after leave = %d, want 0", got)
	}
}

func TestHubRemoveDropsAllRooms(t *testing.T) {
	h := NewHub()
	c := newQueueOnlyClient(4)

	h.Join(BusRoom("bus-1"), c)
	h.Join(RouteRoom("route-9"), c)
	h.Remove(c)

	if h.RoomSize(BusRoom("bus-1")) != 0 || h.RoomSize(RouteRoom("route-9")) != 0 {
		t.Fatal("client still present after Remove")
	}
}

func TestBroadcastDeliversOncePerClient(t *testing.T) {
	h := NewHub()
	c := newQueueOnlyClient(4)

	// a passenger watching both the bus and its route must not get doubles
	h.Join(BusRoom("bus-1"), c)
	h.Join(RouteRoom("route-9"), c)

	rooms := []string{BusRoom("bus-1"), RouteRoom("route-9")}
	h.Broadcast(rooms, "update", "bus-1", []byte("p1"))

	if got := c.queuedPayloads(); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("queue = %v, want exactly one copy", got)
	}
}

func TestBroadcastReachesOnlyMembers(t *testing.T) {
	h := NewHub()
	in := newQueueOnlyClient(4)
	out := newQueueOnlyClient(4)

	h.Join(BusRoom("bus-1"), in)
	h.Join(BusRoom("bus-2"), out)

	h.Broadcast([]string{BusRoom("bus-1")}, "update", "bus-1", []byte("p1"))

	if got := in.queuedPayloads(); len(got) != 1 {
		t.Fatalf("member queue = %v, want one frame", got)
	}
	if got := out.queuedPayloads(); len(got) != 0 {
		t.Fatalf("non-member queue = %v, want empty", got)
	}
}

func TestBroadcastEvictsOverflowedClient(t *testing.T) {
	h := NewHub()
	c := newQueueOnlyClient(1)
	h.Join(BusRoom("bus-1"), c)

	// fill the queue with a status, then force an uncoalescible second status
	h.Broadcast([]string{BusRoom("bus-1")}, "status", "bus-1", []byte("s1"))
	h.Broadcast([]string{BusRoom("bus-1")}, "status", "bus-2", []byte("s2"))

	if got := h.RoomSize(BusRoom("bus-1")); got != 0 {
		t.Fatalf("room size = %d, want overflowed client evicted", got)
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		t.Fatal("overflowed client must be closed")
	}
}
