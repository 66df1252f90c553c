// Package network implements the scenario orchestrator: it builds the
// topology from a parsed configuration, drives one goroutine per router
// and client plus one for the scripted change script, aggregates route
// observations under concurrent update, and renders the final report.
package network

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nkessler1/routesim/internal/client"
	"github.com/nkessler1/routesim/internal/config"
	"github.com/nkessler1/routesim/internal/link"
	"github.com/nkessler1/routesim/internal/metrics"
	"github.com/nkessler1/routesim/internal/packet"
	"github.com/nkessler1/routesim/internal/router"
)

// routeKey identifies one (src,dst) pair in the observed-routes and
// correct-routes tables.
type routeKey struct {
	Src, Dst packet.Addr
}

// routeRecord is one entry of the observed-routes table: the route last
// reported, whether it matched the whitelist, and the wall-clock
// millisecond it was observed at (youngest-wins aggregation key).
type routeRecord struct {
	Route   []packet.Addr
	Correct bool
	TimeMs  int64
}

// linkEntry is one entry of the network-wide link table: the ports each
// endpoint router uses plus the live Link object. Retained after a "down"
// script event purely for the next "up" event's port lookup — spec.md
// §4.5: "The Link object is retained in the table for the p1/p2 lookup
// but is no longer referenced by either router."
type linkEntry struct {
	P1, P2   int
	C12, C21 int
	Link     *link.Link
}

type linkKey struct {
	A1, A2 packet.Addr
}

// heartbeatMultiplier fixes the routers' heartbeat time at 10x the
// latency multiplier, in milliseconds (1000ms at the
// baseline multiplier of 100), matching the original implementation's
// `heartbeatTime=self.latencyMultiplier * 10`.
const heartbeatMultiplier = 10

// finalBurstSettleFactor is the quiescence window after the last probe
// burst, in units of client send rate (Design Note §9: "a heuristic
// quiescence window, not a correctness guarantee").
const finalBurstSettleFactor = 4

// Network owns every router, client, and link for one scenario run and
// produces the pass/fail report at the end.
type Network struct {
	RunID string

	logger *slog.Logger

	scenario          *config.Scenario
	latencyMultiplier int
	endTime           time.Duration
	clientSendRate    time.Duration

	registry *router.Registry

	routers map[packet.Addr]*router.Router
	clients map[packet.Addr]*client.Client
	links   map[linkKey]*linkEntry
	changes []config.ChangeConfig

	correctRoutes map[routeKey][][]packet.Addr

	mu     sync.Mutex
	routes map[routeKey]routeRecord

	observer Observer
	metrics  *metrics.Collector
}

// New validates scenario and constructs every router, client, and link it
// names. algorithm selects the routing algorithm Handler ("" for the
// default echo, or a name previously registered on registry). observer
// and mcollector may both be nil.
func New(scenario *config.Scenario, algorithm string, registry *router.Registry, observer Observer, mcollector *metrics.Collector, logger *slog.Logger) (*Network, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = router.NewRegistry()
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.New().String()
	logger = logger.With("run_id", runID)

	n := &Network{
		RunID:             runID,
		logger:            logger,
		scenario:          scenario,
		latencyMultiplier: config.LatencyMultiplier,
		endTime:           time.Duration(scenario.EndTime*config.LatencyMultiplier) * time.Millisecond,
		clientSendRate:    time.Duration(scenario.ClientSendRate*config.LatencyMultiplier) * time.Millisecond,
		registry:          registry,
		routers:           make(map[packet.Addr]*router.Router),
		clients:           make(map[packet.Addr]*client.Client),
		links:             make(map[linkKey]*linkEntry),
		correctRoutes:     make(map[routeKey][][]packet.Addr),
		routes:            make(map[routeKey]routeRecord),
		observer:          observer,
		metrics:           mcollector,
	}

	heartbeat := time.Duration(n.latencyMultiplier*heartbeatMultiplier) * time.Millisecond
	for _, addr := range scenario.Routers {
		r := router.New(addr, heartbeat, logger)
		h, err := registry.New(algorithm, r, addr, heartbeat.Milliseconds())
		if err != nil {
			return nil, fmt.Errorf("router %s: %w", addr, err)
		}
		r.SetHandler(h)
		n.routers[addr] = r
	}

	for _, addr := range scenario.Clients {
		n.clients[addr] = client.New(addr, scenario.Clients, n.clientSendRate, n, logger)
	}

	for _, lc := range scenario.Links {
		l := link.New(lc.A1, lc.A2, lc.C12, lc.C21, n.latencyMultiplier)
		n.wireSendHook(l)
		n.links[linkKey{lc.A1, lc.A2}] = &linkEntry{P1: lc.P1, P2: lc.P2, C12: lc.C12, C21: lc.C21, Link: l}
	}

	n.changes = make([]config.ChangeConfig, len(scenario.Changes))
	copy(n.changes, scenario.Changes)
	sort.SliceStable(n.changes, func(i, j int) bool { return n.changes[i].Time < n.changes[j].Time })

	for _, route := range scenario.CorrectRoutes {
		src, dst := route[0], route[len(route)-1]
		key := routeKey{src, dst}
		n.correctRoutes[key] = append(n.correctRoutes[key], route)
	}

	return n, nil
}

func (n *Network) wireSendHook(l *link.Link) {
	l.SetSendHook(func(p *packet.Packet, src, dst packet.Addr, latencyMs int64) {
		n.observer.OnSend(p, src, dst, latencyMs)
		n.metrics.PacketSent(fmt.Sprintf("%s->%s", src, dst), p.Kind.String())
	})
}

// Run starts every router/client/change-script goroutine, installs the
// initial links, waits end_time, triggers the final probe burst, and
// returns the rendered report. When parent is cancelled (the interrupt
// path), Run stops waiting for end_time, still runs the final burst and
// renders the report, then joins every goroutine before returning.
func (n *Network) Run(parent context.Context) (string, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	for _, r := range n.routers {
		r := r
		g.Go(func() error {
			r.Run(gctx)
			return nil
		})
	}
	for _, c := range n.clients {
		c := c
		g.Go(func() error {
			c.Run(gctx)
			return nil
		})
	}

	n.addLinks()

	if len(n.changes) > 0 {
		g.Go(func() error {
			n.runChanges(gctx)
			return nil
		})
	}

	n.logger.Info("scenario running", "end_time_ms", n.endTime.Milliseconds())

	select {
	case <-time.After(n.endTime):
	case <-parent.Done():
		n.logger.Info("scenario interrupted")
	}

	n.finalBurst()
	report := n.Report()

	cancel()
	_ = g.Wait()

	return report, nil
}

// addLinks attaches every initially-configured link to its endpoint
// routers and clients. Called once, before any goroutine can mutate
// n.links, so it needs no locking.
func (n *Network) addLinks() {
	for key, entry := range n.links {
		n.attachLink(key.A1, key.A2, entry)
	}
}

func (n *Network) attachLink(a1, a2 packet.Addr, entry *linkEntry) {
	if c, ok := n.clients[a1]; ok {
		c.AttachLink(entry.Link)
	}
	if c, ok := n.clients[a2]; ok {
		c.AttachLink(entry.Link)
	}
	if r, ok := n.routers[a1]; ok {
		r.ChangeLink(router.Change{Kind: router.AddLink, Port: entry.P1, Endpoint: a2, Link: entry.Link, Cost: entry.C12})
	}
	if r, ok := n.routers[a2]; ok {
		r.ChangeLink(router.Change{Kind: router.AddLink, Port: entry.P2, Endpoint: a1, Link: entry.Link, Cost: entry.C21})
	}
}

// runChanges pops scripted events in time order, sleeping until each is
// due, and applies it.
func (n *Network) runChanges(ctx context.Context) {
	start := time.Now()
	for _, ch := range n.changes {
		wait := time.Duration(ch.Time*n.latencyMultiplier)*time.Millisecond - time.Since(start)
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
		}

		switch ch.Kind {
		case "up":
			l := link.New(ch.A1, ch.A2, ch.C12, ch.C21, n.latencyMultiplier)
			n.wireSendHook(l)
			entry := &linkEntry{P1: ch.P1, P2: ch.P2, C12: ch.C12, C21: ch.C21, Link: l}
			n.links[linkKey{ch.A1, ch.A2}] = entry
			if r, ok := n.routers[ch.A1]; ok {
				r.ChangeLink(router.Change{Kind: router.AddLink, Port: ch.P1, Endpoint: ch.A2, Link: l, Cost: ch.C12})
			}
			if r, ok := n.routers[ch.A2]; ok {
				r.ChangeLink(router.Change{Kind: router.AddLink, Port: ch.P2, Endpoint: ch.A1, Link: l, Cost: ch.C21})
			}
		case "down":
			if entry, ok := n.links[linkKey{ch.A1, ch.A2}]; ok {
				if r, ok2 := n.routers[ch.A1]; ok2 {
					r.ChangeLink(router.Change{Kind: router.RemoveLink, Port: entry.P1})
				}
				if r, ok2 := n.routers[ch.A2]; ok2 {
					r.ChangeLink(router.Change{Kind: router.RemoveLink, Port: entry.P2})
				}
			}
		}

		n.logger.Info("applied scripted link change", "kind", ch.Kind, "a1", ch.A1, "a2", ch.A2)
		n.observer.OnLinkChange(ch.Kind, ch)
	}
}

// UpdateRoute implements client.Observer. It stamps the observation with
// the current wall-clock millisecond and stores it only if that stamp is
// strictly later than the stored observation's for the same (src,dst);
// an observation with an equal or earlier stamp is dropped.
func (n *Network) UpdateRoute(src, dst packet.Addr, route []packet.Addr) {
	now := time.Now().UnixMilli()
	correct := routeIsCorrect(route, n.correctRoutes[routeKey{src, dst}])

	n.mu.Lock()
	defer n.mu.Unlock()

	key := routeKey{src, dst}
	if existing, ok := n.routes[key]; ok && existing.TimeMs >= now {
		return
	}
	n.routes[key] = routeRecord{Route: route, Correct: correct, TimeMs: now}
	n.metrics.RouteObserved(correct)
}

func routeIsCorrect(route []packet.Addr, candidates [][]packet.Addr) bool {
	for _, candidate := range candidates {
		if addrSlicesEqual(route, candidate) {
			return true
		}
	}
	return false
}

func addrSlicesEqual(a, b []packet.Addr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// finalBurst clears the route table, commands every client to send one
// last probe sweep with periodic sending disabled, then sleeps to let the
// final round settle before the report is rendered.
func (n *Network) finalBurst() {
	n.mu.Lock()
	n.routes = make(map[routeKey]routeRecord)
	n.mu.Unlock()

	for _, c := range n.clients {
		c.LastSend()
	}

	time.Sleep(finalBurstSettleFactor * n.clientSendRate)
}
