package router

import (
	"fmt"

	"github.com/nkessler1/routesim/internal/packet"
)

// Sender is the capability a Handler needs to forward packets back out
// through its router. Router implements it; Handler implementations never
// see the rest of Router's state.
type Sender interface {
	Send(port int, p *packet.Packet)
}

// Handler is the subclass contract a concrete routing algorithm
// implements. The substrate (Router) holds a Handler and never inspects
// its concrete state — invariant held between any two successive handler
// invocations: the router's port set reflects exactly the add/remove
// commands observed so far.
type Handler interface {
	// HandlePacket processes an arrival on port. The default
	// implementation echoes the packet back out the same port.
	HandlePacket(port int, p *packet.Packet)

	// HandleNewLink notifies the handler of a fresh adjacency.
	HandleNewLink(port int, endpoint packet.Addr, cost int)

	// HandleRemoveLink notifies the handler of a lost adjacency.
	HandleRemoveLink(port int)

	// HandleTime is called every tick with the current wall-clock time
	// in milliseconds; the handler owns its own heartbeat bookkeeping.
	HandleTime(timeMs int64)

	// String returns an opaque human-readable debug dump.
	String() string
}

// EchoHandler is the substrate default: it loops every packet back out the
// port it arrived on. Design Note §9: this is intentional — echoing to the
// arrival port sends probes back to their source and fails the
// correctness check, so the substrate only passes when a real routing
// Handler is supplied.
type EchoHandler struct {
	sender Sender
	addr   packet.Addr
}

// NewEchoHandler constructs the default echo Handler.
func NewEchoHandler(sender Sender, addr packet.Addr) *EchoHandler {
	return &EchoHandler{sender: sender, addr: addr}
}

func (h *EchoHandler) HandlePacket(port int, p *packet.Packet) {
	h.sender.Send(port, p)
}

func (h *EchoHandler) HandleNewLink(port int, endpoint packet.Addr, cost int) {}

func (h *EchoHandler) HandleRemoveLink(port int) {}

func (h *EchoHandler) HandleTime(timeMs int64) {}

func (h *EchoHandler) String() string {
	return fmt.Sprintf("EchoHandler(addr=%s)", h.addr)
}
