package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"food-distribution-api/models"
)

// Connection is one live subscriber. Only the dispatch loop sends on or
// closes the event channel.
type Connection struct {
	ID     string
	UserID string
	Role   models.UserRole

	events    chan Event
	closed    chan struct{}
	closeOnce sync.Once
	lastSeen  atomic.Int64
	dropped   atomic.Uint64
	hub       *Hub
}

// Events yields the subscriber's events. The channel is closed once the
// connection has been deregistered.
func (c *Connection) Events() <-chan Event { return c.events }

// Done is closed as soon as the connection is closed, by either side.
func (c *Connection) Done() <-chan struct{} { return c.closed }

// Touch marks the connection as alive. Transports call it after every
// successful write, heartbeats included.
func (c *Connection) Touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// Dropped counts events discarded because the buffer was full.
func (c *Connection) Dropped() uint64 { return c.dropped.Load() }

// Close deregisters the connection. It is safe to call more than once.
func (c *Connection) Close() {
	if !c.markClosed() {
		return
	}
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
}

// markClosed closes the done channel and reports whether this call did it.
func (c *Connection) markClosed() bool {
	first := false
	c.closeOnce.Do(func() {
		close(c.closed)
		first = true
	})
	return first
}

func (c *Connection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// watch is the per-connection task: it ties the subscription to the
// lifetime of the subscriber's context.
func (c *Connection) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.Close()
	case <-c.closed:
	}
}

// offer enqueues e, discarding the oldest pending event if the buffer is
// full. Called only from the dispatch loop.
func (c *Connection) offer(e Event) {
	select {
	case c.events <- e:
		return
	default:
	}
	select {
	case <-c.events:
		c.dropped.Add(1)
	default:
	}
	select {
	case c.events <- e:
	default:
		c.dropped.Add(1)
	}
}
