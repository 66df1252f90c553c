package network

import "github.com/nkessler1/routesim/internal/packet"

// Observer is the viewer overlay's hook point (§6/§9): one callback fired
// at every link send, one fired after every applied scripted link change.
// The core invokes these only when an Observer is supplied; a nil-safe
// no-op default means the graphical viewer — out of scope for this repo —
// is the only thing that ever needs to implement it.
type Observer interface {
	OnSend(p *packet.Packet, src, dst packet.Addr, latencyMs int64)
	OnLinkChange(kind string, target any)
}

// NoopObserver implements Observer with no-ops, the default when no
// viewer is attached.
type NoopObserver struct{}

func (NoopObserver) OnSend(p *packet.Packet, src, dst packet.Addr, latencyMs int64) {}
func (NoopObserver) OnLinkChange(kind string, target any)                          {}
