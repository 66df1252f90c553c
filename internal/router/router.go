// Package router implements the substrate loop shared by every routing
// algorithm: port bookkeeping, link-change application, packet dispatch,
// and the periodic time heartbeat. Concrete algorithms plug in through the
// Handler contract (handler.go).
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkessler1/routesim/internal/link"
	"github.com/nkessler1/routesim/internal/packet"
)

// tick is the substrate's polling period, matching the teacher's
// Node.Run ticker and the 10 Hz rate spec.md §4.3 calls for.
const tick = 100 * time.Millisecond

// ChangeKind distinguishes an add from a remove in the link-change
// mailbox.
type ChangeKind int

const (
	AddLink ChangeKind = iota
	RemoveLink
)

// Change is a link mutation command enqueued onto a Router's mailbox. The
// mailbox preserves enqueue order: two changes A then B are always
// observed by the router in that order.
type Change struct {
	Kind     ChangeKind
	Port     int
	Endpoint packet.Addr
	Link     *link.Link
	Cost     int
}

// Router is the substrate driver: it owns a port->Link table, polls for
// arrivals, and dispatches to a Handler.
type Router struct {
	Addr          packet.Addr
	HeartbeatTime time.Duration

	handler Handler
	logger  *slog.Logger

	links   map[int]*link.Link
	changes chan Change
}

// changeMailboxCapacity bounds the backlog of unapplied link changes. A
// scenario script that queues more than this many simultaneous mutations
// to one router is outside this simulator's intended scale.
const changeMailboxCapacity = 256

// New constructs a Router with no Handler installed yet — call
// SetHandler before Run. heartbeatTime is informational for the handler's
// own bookkeeping (the substrate itself just calls HandleTime every
// tick).
func New(addr packet.Addr, heartbeatTime time.Duration, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Addr:          addr,
		HeartbeatTime: heartbeatTime,
		logger:        logger.With("router", addr),
		links:         make(map[int]*link.Link),
		changes:       make(chan Change, changeMailboxCapacity),
	}
}

// SetHandler installs the routing algorithm. Handler factories need a
// Sender bound to this Router before they can be built (the default echo
// Handler forwards through it), so construction is two-phase: New, then
// SetHandler once the Handler has been built with this Router as its
// Sender.
func (r *Router) SetHandler(h Handler) {
	r.handler = h
}

// ChangeLink enqueues a link mutation command. Safe to call concurrently
// from the network orchestrator while Run is executing on its own
// goroutine.
func (r *Router) ChangeLink(c Change) {
	r.changes <- c
}

// Send forwards p out the given port. A torn-down port is a silent
// no-op — a link may have been removed between the handler's decision
// and this call.
func (r *Router) Send(port int, p *packet.Packet) {
	l, ok := r.links[port]
	if !ok {
		return
	}
	l.Send(p, r.Addr)
}

// Debug returns the handler's opaque debug string.
func (r *Router) Debug() string {
	return r.handler.String()
}

// Run drives the substrate loop until ctx is cancelled. Each iteration:
// sleep the tick, drain at most one link-change command, poll every
// installed port for an arrival, invoke HandleTime.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case c := <-r.changes:
			r.applyChange(c)
		default:
		}

		timeMs := time.Now().UnixMilli()
		for port, l := range r.links {
			if p := l.Recv(r.Addr); p != nil {
				r.safeHandlePacket(port, p)
			}
		}

		r.safeHandleTime(timeMs)
	}
}

func (r *Router) applyChange(c Change) {
	switch c.Kind {
	case AddLink:
		if _, occupied := r.links[c.Port]; occupied {
			r.removeLink(c.Port)
		}
		r.links[c.Port] = c.Link
		r.safeHandleNewLink(c.Port, c.Endpoint, c.Cost)
	case RemoveLink:
		r.removeLink(c.Port)
	}
}

func (r *Router) removeLink(port int) {
	if _, ok := r.links[port]; !ok {
		return
	}
	delete(r.links, port)
	r.safeHandleRemoveLink(port)
}

// safeHandlePacket and its siblings recover a panicking Handler method so
// one misbehaving routing algorithm does not take the whole scenario
// down (§7: "a robust implementation should log and continue the loop").
func (r *Router) safeHandlePacket(port int, p *packet.Packet) {
	defer r.recoverHandler("HandlePacket", port)
	r.handler.HandlePacket(port, p)
}

func (r *Router) safeHandleNewLink(port int, endpoint packet.Addr, cost int) {
	defer r.recoverHandler("HandleNewLink", port)
	r.handler.HandleNewLink(port, endpoint, cost)
}

func (r *Router) safeHandleRemoveLink(port int) {
	defer r.recoverHandler("HandleRemoveLink", port)
	r.handler.HandleRemoveLink(port)
}

func (r *Router) safeHandleTime(timeMs int64) {
	defer r.recoverHandler("HandleTime", -1)
	r.handler.HandleTime(timeMs)
}

func (r *Router) recoverHandler(method string, port int) {
	if rec := recover(); rec != nil {
		r.logger.Error("router handler panicked", "method", method, "port", port, "recovered", rec)
	}
}
