package websocket

import (
	"errors"
	"testing"
)

// newQueueOnlyClient builds a client without a connection or write pump so
// the queueing behaviour can be observed directly.
func newQueueOnlyClient(queueCap int) *Client {
	return &Client{
		cap:  queueCap,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (c *Client) queuedPayloads() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.queue))
	for _, q := range c.queue {
		out = append(out, string(q.payload))
	}
	return out
}

func TestEnqueueAppendsInOrder(t *testing.T) {
	c := newQueueOnlyClient(4)
	for _, p := range []string{"a", "b", "c"} {
		if err := c.Enqueue("update", "bus-1", []byte(p)); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	got := c.queuedPayloads()
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("queue = %v", got)
	}
}

func TestEnqueueCoalescesSameBusUpdateOnFullQueue(t *testing.T) {
	c := newQueueOnlyClient(3)
	_ = c.Enqueue("status", "bus-1", []byte("s1"))
	_ = c.Enqueue("update", "bus-1", []byte("u-old"))
	_ = c.Enqueue("update", "bus-2", []byte("u-other"))

	// full: the bus-1 update is replaced in place, keeping its queue position
	if err := c.Enqueue("update", "bus-1", []byte("u-new")); err != nil {
		t.Fatalf("coalescible enqueue failed: %v", err)
	}

	got := c.queuedPayloads()
	want := []string{"s1", "u-new", "u-other"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
}

func TestEnqueueKeepsPerBusOrderWhenCoalescing(t *testing.T) {
	c := newQueueOnlyClient(3)
	_ = c.Enqueue("update", "bus-1", []byte("p1"))
	_ = c.Enqueue("update", "bus-1", []byte("p2"))
	_ = c.Enqueue("update", "bus-2", []byte("x"))

	// full with two pending bus-1 updates: the newest one is replaced, so the
	// older p1 still goes out before the fresh payload
	if err := c.Enqueue("update", "bus-1", []byte("p3")); err != nil {
		t.Fatalf("coalescible enqueue failed: %v", err)
	}

	got := c.queuedPayloads()
	want := []string{"p1", "p3", "x"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queue = %v, want %v", got, want)
		}
	}
}

func TestEnqueueStatusEvictsAnUpdateWhenFull(t *testing.T) {
	c := newQueueOnlyClient(2)
	_ = c.Enqueue("update", "bus-1", []byte("u1"))
	_ = c.Enqueue("update", "bus-2", []byte("u2"))

	// a status for a third bus: the oldest update gives way
	if err := c.Enqueue("status", "bus-3", []byte("s3")); err != nil {
		t.Fatalf("status enqueue on full queue failed: %v", err)
	}

	got := c.queuedPayloads()
	if len(got) != 2 || got[0] != "s3" || got[1] != "u2" {
		t.Fatalf("queue = %v, want [s3 u2]", got)
	}
}

func TestEnqueueOverflowWhenNothingCoalescible(t *testing.T) {
	c := newQueueOnlyClient(2)
	_ = c.Enqueue("status", "bus-1", []byte("s1"))
	_ = c.Enqueue("status", "bus-2", []byte("s2"))

	// statuses are never the eviction victim
	if err := c.Enqueue("status", "bus-3", []byte("s3")); !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("expected ErrQueueOverflow, got %v", err)
	}
	if err := c.Enqueue("update", "bus-3", []byte("u3")); !errors.Is(err, ErrQueueOverflow) {
		t.Fatalf("update with no coalescible slot: expected ErrQueueOverflow, got %v", err)
	}
}

func TestEnqueueAfterClose(t *testing.T) {
	c := newQueueOnlyClient(2)
	c.Close()
	if err := c.Enqueue("update", "bus-1", []byte("u1")); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}
