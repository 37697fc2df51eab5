package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrClientClosed is returned by Enqueue after Close.
	ErrClientClosed = errors.New("websocket: client closed")

	// ErrQueueOverflow means the outbound queue is full and nothing in it was
	// coalescible; the caller should drop the client.
	ErrQueueOverflow = errors.New("websocket: outbound queue overflow")
)

// queued is one pending outbound frame. kind/busID drive coalescing: when the
// queue is full the newest pending "update" frame for the same bus may be
// replaced by this one, since only the freshest position matters.
type queued struct {
	kind    string
	busID   string
	payload []byte
}

// Client wraps one subscriber connection with a bounded outbound queue and a
// single writer goroutine, so broadcasts never block on a slow socket.
type Client struct {
	conn *websocket.Conn
	cap  int

	mu     sync.Mutex
	queue  []queued
	closed bool

	wake chan struct{}
	done chan struct{}
	once sync.Once
}

// NewClient wraps a connection and starts its write pump.
func NewClient(conn *websocket.Conn, queueCap int) *Client {
	c := &Client{
		conn: conn,
		cap:  queueCap,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Enqueue appends a frame for delivery. On a full queue it first tries to
// coalesce: replace the newest queued "update" for the same bus with this
// frame. Replacing the newest slot keeps per-bus frames in send order; any
// older pending update for the bus still goes out first. Status transitions
// are never the eviction victim. If nothing can be coalesced the queue stays
// full and ErrQueueOverflow tells the caller to drop the client.
func (c *Client) Enqueue(kind, busID string, payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}

	if len(c.queue) >= c.cap {
		slot := -1
		for i := len(c.queue) - 1; i >= 0; i-- {
			if c.queue[i].kind == "update" && c.queue[i].busID == busID {
				slot = i
				break
			}
		}
		if slot == -1 && kind != "update" {
			// make room for a status frame by dropping the oldest update of any bus
			for i, q := range c.queue {
				if q.kind == "update" {
					slot = i
					break
				}
			}
		}
		if slot == -1 {
			c.mu.Unlock()
			return ErrQueueOverflow
		}
		c.queue[slot] = queued{kind: kind, busID: busID, payload: payload}
	} else {
		c.queue = append(c.queue, queued{kind: kind, busID: busID, payload: payload})
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops the write pump. The underlying connection is closed by whoever
// owns the read loop.
func (c *Client) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.queue = nil
		c.mu.Unlock()
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// writePump drains the queue in order, one frame per write, with a per-send
// deadline. A write error tears the client down.
func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			if len(c.queue) == 0 {
				c.mu.Unlock()
				break
			}
			item := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()

			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, item.payload); err != nil {
				c.Close()
				return
			}
		}
	}
}
