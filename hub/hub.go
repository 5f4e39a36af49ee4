// Package hub fans committed order transitions out to live subscribers.
//
// A single dispatch loop owns the connection registry: subscribe,
// unsubscribe, publish and idle sweeps are all serialized through it, so
// the registry needs no lock. Each connection has a bounded channel; when
// a subscriber falls behind, its oldest pending event is dropped so that
// publishing never waits on a slow reader. Delivery is at most once and
// best effort; clients reconcile by re-reading order state.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"food-distribution-api/models"
	"food-distribution-api/policy"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("hub closed")

const (
	defaultBufferSize     = 64
	defaultMaxConnections = 10000
	defaultIdleTimeout    = 90 * time.Second
	publishQueueSize      = 1024
)

// OrderStateChanged is published once per committed transition and
// carries the full order; the hub filters it per recipient.
type OrderStateChanged struct {
	Order  models.Order
	Action models.Action
	From   models.OrderState
	At     time.Time
}

// Event is what a single subscriber receives: the change, with the order
// projected through that subscriber's visible fields.
type Event struct {
	OrderID string            `json:"order_id"`
	Action  models.Action     `json:"action"`
	From    models.OrderState `json:"from,omitempty"`
	To      models.OrderState `json:"to"`
	Order   policy.OrderView  `json:"order"`
	At      time.Time         `json:"at"`
}

type Options struct {
	// BufferSize is the per-connection event buffer.
	BufferSize int
	// MaxConnections caps live connections; the least recently touched
	// one is evicted to make room for a new one.
	MaxConnections int
	// IdleTimeout evicts connections that have not been touched for this
	// long.
	IdleTimeout time.Duration
	// SweepInterval is how often idle connections are looked for.
	// Defaults to a quarter of IdleTimeout.
	SweepInterval time.Duration
	Logger        *slog.Logger
}

type Hub struct {
	opts Options
	log  *slog.Logger

	register   chan *Connection
	unregister chan *Connection
	publish    chan OrderStateChanged
	done       chan struct{}
	stopOnce   sync.Once

	// Owned by the dispatch loop.
	conns map[string]*Connection
	order []*Connection

	live      atomic.Int64
	delivered atomic.Uint64
	evicted   atomic.Uint64
}

func New(opts Options) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = defaultMaxConnections
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = opts.IdleTimeout / 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Hub{
		opts:       opts,
		log:        opts.Logger.With("component", "hub"),
		register:   make(chan *Connection),
		unregister: make(chan *Connection, 64),
		publish:    make(chan OrderStateChanged, publishQueueSize),
		done:       make(chan struct{}),
		conns:      make(map[string]*Connection),
	}
}

// Run is the dispatch loop. It returns when ctx is cancelled, after
// closing every live connection.
func (h *Hub) Run(ctx context.Context) {
	sweep := time.NewTicker(h.opts.SweepInterval)
	defer sweep.Stop()
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c, "unsubscribed")
		case ev := <-h.publish:
			h.dispatch(ev)
		case now := <-sweep.C:
			h.sweepIdle(now)
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)
		for _, c := range h.order {
			c.markClosed()
			close(c.events)
		}
		h.conns = map[string]*Connection{}
		h.order = nil
		h.live.Store(0)
	})
}

// Subscribe registers a connection for the given identity. The
// connection is deregistered when ctx is cancelled, when Close is called,
// or when it idles past the timeout.
func (h *Hub) Subscribe(ctx context.Context, userID string, role models.UserRole) (*Connection, error) {
	if !role.Valid() {
		return nil, errors.New("unknown role " + string(role))
	}
	c := &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		events: make(chan Event, h.opts.BufferSize),
		closed: make(chan struct{}),
		hub:    h,
	}
	c.Touch()

	select {
	case h.register <- c:
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	go c.watch(ctx)
	return c, nil
}

// Publish queues a committed change for fan-out. It does not wait for
// delivery.
func (h *Hub) Publish(ev OrderStateChanged) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.publish <- ev:
		return nil
	case <-h.done:
		return ErrClosed
	}
}

// Stats is a point-in-time view of the hub counters.
type Stats struct {
	Connections int64  `json:"connections"`
	Delivered   uint64 `json:"delivered"`
	Evicted     uint64 `json:"evicted"`
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.live.Load(),
		Delivered:   h.delivered.Load(),
		Evicted:     h.evicted.Load(),
	}
}

func (h *Hub) add(c *Connection) {
	for len(h.order) >= h.opts.MaxConnections {
		h.evicted.Add(1)
		h.remove(h.leastRecentlySeen(), "capacity")
	}
	h.conns[c.ID] = c
	h.order = append(h.order, c)
	h.live.Store(int64(len(h.order)))
	h.log.Debug("subscriber registered", "connection", c.ID, "user_id", c.UserID, "role", c.Role)
}

// leastRecentlySeen picks the connection touched longest ago. Ties go to
// the earliest registered.
func (h *Hub) leastRecentlySeen() *Connection {
	victim := h.order[0]
	for _, c := range h.order[1:] {
		if c.lastSeen.Load() < victim.lastSeen.Load() {
			victim = c
		}
	}
	return victim
}

// remove drops c from the registry and closes its event channel. It is a
// no-op for connections that are no longer registered.
func (h *Hub) remove(c *Connection, why string) {
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	delete(h.conns, c.ID)
	for i, existing := range h.order {
		if existing == c {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	c.markClosed()
	close(c.events)
	h.live.Store(int64(len(h.order)))
	h.log.Debug("subscriber removed", "connection", c.ID, "user_id", c.UserID, "reason", why)
}

// dispatch delivers ev to every live connection allowed to view the
// order, each with its own projection.
func (h *Hub) dispatch(ev OrderStateChanged) {
	var stale []*Connection
	for _, c := range h.order {
		if c.isClosed() {
			stale = append(stale, c)
			continue
		}
		actor := policy.Actor{ID: c.UserID, Role: c.Role}
		view, ok := policy.Project(actor, &ev.Order)
		if !ok {
			continue
		}
		c.offer(Event{
			OrderID: ev.Order.ID,
			Action:  ev.Action,
			From:    ev.From,
			To:      ev.Order.State,
			Order:   view,
			At:      ev.At,
		})
		h.delivered.Add(1)
	}
	for _, c := range stale {
		h.remove(c, "closed")
	}
}

func (h *Hub) sweepIdle(now time.Time) {
	cutoff := now.Add(-h.opts.IdleTimeout).UnixNano()
	var idle []*Connection
	for _, c := range h.order {
		if c.isClosed() || c.lastSeen.Load() < cutoff {
			idle = append(idle, c)
		}
	}
	for _, c := range idle {
		h.evicted.Add(1)
		h.remove(c, "idle")
	}
}
