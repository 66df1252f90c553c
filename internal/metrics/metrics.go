// Package metrics exposes optional prometheus instrumentation for a
// simulation run, wired the same way controlplane/agent's
// --metrics-enable/--metrics-addr flag pair wires its own collector.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every counter/gauge a Network run updates. A nil
// *Collector is valid everywhere it's accepted — every method is a no-op
// on a nil receiver, so instrumentation can be skipped entirely without
// littering call sites with nil checks.
type Collector struct {
	Registry *prometheus.Registry

	packetsSent       *prometheus.CounterVec
	routeObservations *prometheus.CounterVec
	routesCorrect     prometheus.Gauge
	routesTotal       prometheus.Gauge
}

// New constructs a Collector registered against a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		Registry: reg,
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routesim_packets_sent_total",
			Help: "Packets sent on a link, by direction and packet kind.",
		}, []string{"direction", "kind"}),
		routeObservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routesim_route_observations_total",
			Help: "Route observations reported to the network, by correctness.",
		}, []string{"correct"}),
		routesCorrect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routesim_routes_correct",
			Help: "Number of observed routes that matched the whitelist at last report.",
		}),
		routesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routesim_routes_total",
			Help: "Total number of observed (src,dst) pairs at last report.",
		}),
	}
	reg.MustRegister(c.packetsSent, c.routeObservations, c.routesCorrect, c.routesTotal)
	return c
}

// PacketSent records one packet send on a link direction.
func (c *Collector) PacketSent(direction, kind string) {
	if c == nil {
		return
	}
	c.packetsSent.WithLabelValues(direction, kind).Inc()
}

// RouteObserved records one route observation and whether it was correct.
func (c *Collector) RouteObserved(correct bool) {
	if c == nil {
		return
	}
	label := "false"
	if correct {
		label = "true"
	}
	c.routeObservations.WithLabelValues(label).Inc()
}

// SetReportTotals sets the final-report gauges.
func (c *Collector) SetReportTotals(correct, total int) {
	if c == nil {
		return
	}
	c.routesCorrect.Set(float64(correct))
	c.routesTotal.Set(float64(total))
}
