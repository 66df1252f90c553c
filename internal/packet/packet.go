// Package packet defines the on-the-wire record exchanged between clients,
// links, and routers in the simulated network.
package packet

// Kind distinguishes a traceroute probe from a user-routing-protocol packet.
type Kind int

const (
	// Traceroute packets carry no content; every forwarding node appends
	// its address to the route trace.
	Traceroute Kind = iota + 1

	// Routing packets carry an opaque string payload defined by the
	// routing algorithm plugged into a Router.
	Routing
)

// Addr is a router or client address. It is kept as a plain string
// rather than a distinct type, matching how the teacher keys its node
// tables directly off NodeID/string.
type Addr = string

// Packet is the record exchanged between clients and routers.
//
// Route is initialized to []Addr{Src} at construction and is appended to
// on every hop; the first element of Route always equals Src.
type Packet struct {
	Kind    Kind
	Src     Addr
	Dst     Addr
	Content string
	Route   []Addr
}

// New constructs a Packet with its route trace seeded with src.
func New(kind Kind, src, dst Addr, content string) *Packet {
	return &Packet{
		Kind:    kind,
		Src:     src,
		Dst:     dst,
		Content: content,
		Route:   []Addr{src},
	}
}

// Copy returns a deep copy of p. Mutating the returned packet's Route or
// Content never affects p. The substrate calls Copy automatically at send
// time so that a sender-retained packet and the in-flight instance never
// alias each other.
func (p *Packet) Copy() *Packet {
	route := make([]Addr, len(p.Route))
	copy(route, p.Route)
	return &Packet{
		Kind:    p.Kind,
		Src:     p.Src,
		Dst:     p.Dst,
		Content: p.Content,
		Route:   route,
	}
}

// String names kind for logging and metrics labels.
func (k Kind) String() string {
	switch k {
	case Traceroute:
		return "TRACEROUTE"
	case Routing:
		return "ROUTING"
	default:
		return "UNKNOWN"
	}
}

// IsTraceroute reports whether p is a traceroute probe.
func (p *Packet) IsTraceroute() bool {
	return p.Kind == Traceroute
}

// IsRouting reports whether p carries a routing-protocol payload.
func (p *Packet) IsRouting() bool {
	return p.Kind == Routing
}

// AddToRoute appends addr to the route trace. Only the link that just
// delivered the packet to addr should call this.
func (p *Packet) AddToRoute(addr Addr) {
	p.Route = append(p.Route, addr)
}
