// Package link implements the latency-preserving bidirectional channel
// between two simulation endpoints (router or client addresses).
package link

import (
	"sync"
	"time"

	"github.com/nkessler1/routesim/internal/packet"
)

// scheduledPacket pairs a copied, route-stamped packet with the wall-clock
// moment it becomes eligible for delivery.
type scheduledPacket struct {
	pkt *packet.Packet
	due time.Time
}

// fifo is a thread-safe, non-blocking FIFO of delivered packets. Link uses
// one per direction so Recv never blocks — a caller polls, exactly like
// the teacher's Node.Run polls its input channel with a select default.
type fifo struct {
	mu    sync.Mutex
	items []*packet.Packet
}

func (q *fifo) push(p *packet.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, p)
}

func (q *fifo) pop() *packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p
}

// pendingCapacity bounds the in-flight-but-not-yet-due backlog per
// direction. A scenario that genuinely needs more than this many
// concurrent in-flight packets on one link is outside this simulator's
// intended scale.
const pendingCapacity = 4096

// SendHook is the optional viewer hook invoked at every send, mirroring
// the original implementation's Packet.animate_send callback but passed
// in at construction (Design Note §9) instead of a process-wide
// singleton.
type SendHook func(p *packet.Packet, src, dst packet.Addr, latencyMs int64)

// Link is a bidirectional point-to-point connection between endpoints E1
// and E2 with independent per-direction latencies. Delivery of a sent
// packet is handled by one long-lived goroutine per direction (Design Note
// §9: "prefer a single per-link delivery task... bounds task count to
// O(links)"), rather than one goroutine per packet.
type Link struct {
	E1, E2 packet.Addr

	mu  sync.Mutex
	l12 time.Duration // current e1->e2 latency, already scaled by the multiplier
	l21 time.Duration // current e2->e1 latency

	pending12 chan scheduledPacket
	pending21 chan scheduledPacket

	delivered12 fifo // packets in flight e1->e2, readable by e2
	delivered21 fifo // packets in flight e2->e1, readable by e1

	hook SendHook

	closeOnce sync.Once
}

// New constructs a Link between e1 and e2. cost12 and cost21 are
// unscaled configuration-unit costs; latencyMultiplier converts them to
// milliseconds (baseline 100, per the global scaling rule).
func New(e1, e2 packet.Addr, cost12, cost21, latencyMultiplier int) *Link {
	l := &Link{
		E1:          e1,
		E2:          e2,
		l12:         time.Duration(cost12*latencyMultiplier) * time.Millisecond,
		l21:         time.Duration(cost21*latencyMultiplier) * time.Millisecond,
		pending12:   make(chan scheduledPacket, pendingCapacity),
		pending21:   make(chan scheduledPacket, pendingCapacity),
	}
	go l.deliverLoop(l.pending12, &l.delivered12)
	go l.deliverLoop(l.pending21, &l.delivered21)
	return l
}

func (l *Link) deliverLoop(pending chan scheduledPacket, out *fifo) {
	for sp := range pending {
		if wait := time.Until(sp.due); wait > 0 {
			time.Sleep(wait)
		}
		out.push(sp.pkt)
	}
}

// Send copies packet, appends the peer address to the copy's route trace,
// and schedules delivery after the current src->peer latency. Sending
// with an unknown src is a silent no-op — link teardown races are
// expected, not errors.
func (l *Link) Send(p *packet.Packet, src packet.Addr) {
	cp := p.Copy()

	l.mu.Lock()
	l12, l21 := l.l12, l.l21
	l.mu.Unlock()

	switch src {
	case l.E1:
		cp.AddToRoute(l.E2)
		if l.hook != nil {
			l.hook(cp, l.E1, l.E2, l12.Milliseconds())
		}
		l.pending12 <- scheduledPacket{pkt: cp, due: time.Now().Add(l12)}
	case l.E2:
		cp.AddToRoute(l.E1)
		if l.hook != nil {
			l.hook(cp, l.E2, l.E1, l21.Milliseconds())
		}
		l.pending21 <- scheduledPacket{pkt: cp, due: time.Now().Add(l21)}
	default:
		// Unknown src: silent no-op.
	}
}

// SetSendHook installs the viewer/metrics send hook. Safe to call once,
// before the link is shared across goroutines (i.e. immediately after
// New).
func (l *Link) SetSendHook(hook SendHook) {
	l.hook = hook
}

// Recv returns the oldest packet delivered toward dst that is now due, or
// nil if none is available. It never blocks.
func (l *Link) Recv(dst packet.Addr) *packet.Packet {
	switch dst {
	case l.E1:
		return l.delivered21.pop()
	case l.E2:
		return l.delivered12.pop()
	default:
		return nil
	}
}

// ChangeLatency atomically updates the latency used for all subsequent
// sends from src toward its peer. newCost is in unscaled configuration
// units.
func (l *Link) ChangeLatency(src packet.Addr, newCost, latencyMultiplier int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch src {
	case l.E1:
		l.l12 = time.Duration(newCost*latencyMultiplier) * time.Millisecond
	case l.E2:
		l.l21 = time.Duration(newCost*latencyMultiplier) * time.Millisecond
	}
}

// Close stops the link's delivery goroutines once every packet already
// sent has been delivered. Recv keeps returning delivered packets after
// Close; Send after Close panics, since the send queues are closed.
func (l *Link) Close() {
	l.closeOnce.Do(func() {
		close(l.pending12)
		close(l.pending21)
	})
}
