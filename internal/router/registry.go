package router

import (
	"fmt"

	"github.com/nkessler1/routesim/internal/packet"
)

// Factory builds a Handler bound to sender/addr/heartbeatTimeMs.
type Factory func(sender Sender, addr packet.Addr, heartbeatTimeMs int64) (Handler, error)

// Registry maps an algorithm name from the CLI/config ("", "DV", "LS") to
// the Factory that builds its Handler.
//
// The DV and LS algorithm bodies are graded user code plugged into this
// substrate (§1, out of scope) — they are registered here with a factory
// that reports a clear startup error rather than silently falling back to
// the echo default, so the CLI contract in §6 stays fully wired without
// impersonating the graded implementations.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-populated with the default echo
// handler and the DV/LS placeholders.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("", func(sender Sender, addr packet.Addr, _ int64) (Handler, error) {
		return NewEchoHandler(sender, addr), nil
	})
	notSupplied := func(name string) Factory {
		return func(_ Sender, _ packet.Addr, _ int64) (Handler, error) {
			return nil, fmt.Errorf("router algorithm %q is user code graded against this substrate; "+
				"register a Factory for %q before selecting it", name, name)
		}
	}
	r.Register("DV", notSupplied("DV"))
	r.Register("LS", notSupplied("LS"))
	return r
}

// Register installs factory under name, replacing any existing entry —
// this is how a DV or LS implementation plugs itself into the substrate.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// New builds a Handler for name, or an error if name is unknown or its
// factory reports one.
func (r *Registry) New(name string, sender Sender, addr packet.Addr, heartbeatTimeMs int64) (Handler, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown router algorithm %q", name)
	}
	return factory(sender, addr, heartbeatTimeMs)
}
