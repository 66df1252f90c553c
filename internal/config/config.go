// Package config loads and validates the scenario configuration file: the
// topology, the scripted link up/down events, and the route whitelist. Per
// spec.md §1 this parser is intentionally a thin schema reader, not a
// general-purpose validator — but it still reports every problem it finds
// rather than aborting on the first one.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// LinkConfig is one `links` table entry: a bidirectional point-to-point
// connection between A1 and A2 at ports P1/P2 with per-direction costs.
type LinkConfig struct {
	A1  string `yaml:"a1"`
	A2  string `yaml:"a2"`
	P1  int    `yaml:"p1"`
	P2  int    `yaml:"p2"`
	C12 int    `yaml:"c12"`
	C21 int    `yaml:"c21"`
}

// ChangeConfig is one scripted `changes` entry. Kind is "up" or "down".
// The "up" kind uses every field; "down" only uses A1/A2.
type ChangeConfig struct {
	Time int    `yaml:"time"`
	Kind string `yaml:"kind"`
	A1   string `yaml:"a1"`
	A2   string `yaml:"a2"`
	P1   int    `yaml:"p1"`
	P2   int    `yaml:"p2"`
	C12  int    `yaml:"c12"`
	C21  int    `yaml:"c21"`
}

// VisualizeConfig is the viewer-only sub-record. The core substrate never
// reads it; it exists purely so a scenario file can round-trip through a
// viewer without a parse error here.
type VisualizeConfig struct {
	TimeMultiplier  float64          `yaml:"timeMultiplier"`
	AnimateRate     float64          `yaml:"animateRate"`
	LatencyCorrection float64        `yaml:"latencyCorrection"`
	CanvasWidth     int              `yaml:"canvasWidth"`
	CanvasHeight    int              `yaml:"canvasHeight"`
	GridSize        int              `yaml:"gridSize"`
	Locations       map[string][2]int `yaml:"locations"`
	LineWidth       int              `yaml:"lineWidth"`
	LineColor       string           `yaml:"lineColor"`
	LineFontSize    int              `yaml:"lineFontSize"`
	ClientColor     string           `yaml:"clientColor"`
	RouterColor     string           `yaml:"routerColor"`
}

// Scenario is the parsed scenario configuration file.
type Scenario struct {
	EndTime         int              `yaml:"endTime"`
	ClientSendRate  int              `yaml:"clientSendRate"`
	Routers         []string         `yaml:"routers"`
	Clients         []string         `yaml:"clients"`
	Links           []LinkConfig     `yaml:"links"`
	Changes         []ChangeConfig   `yaml:"changes"`
	CorrectRoutes   [][]string       `yaml:"correctRoutes"`
	Visualize       *VisualizeConfig `yaml:"visualize"`
}

// LatencyMultiplier is the global scalar mapping configuration time-units
// to wall-clock milliseconds, per spec.md §4.5.
const LatencyMultiplier = 100

// Load reads and parses path, then validates the result. It returns every
// validation problem found, aggregated via multierror, rather than
// stopping at the first one.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks for missing mandatory fields, unknown addresses
// referenced by a link/change/correct-route entry, and duplicate
// addresses, collecting every violation instead of returning on the
// first.
func (s *Scenario) Validate() error {
	var result *multierror.Error

	if s.EndTime <= 0 {
		result = multierror.Append(result, fmt.Errorf("endTime must be a positive integer"))
	}
	if s.ClientSendRate <= 0 {
		result = multierror.Append(result, fmt.Errorf("clientSendRate must be a positive integer"))
	}

	addrs := make(map[string]bool)
	addDuplicateChecked := func(addr, kind string) {
		if addrs[addr] {
			result = multierror.Append(result, fmt.Errorf("duplicate address %q (declared as %s)", addr, kind))
			return
		}
		addrs[addr] = true
	}
	for _, a := range s.Routers {
		addDuplicateChecked(a, "router")
	}
	for _, a := range s.Clients {
		addDuplicateChecked(a, "client")
	}

	known := func(addr string) bool { return addrs[addr] }

	for i, l := range s.Links {
		if !known(l.A1) {
			result = multierror.Append(result, fmt.Errorf("links[%d]: unknown address %q", i, l.A1))
		}
		if !known(l.A2) {
			result = multierror.Append(result, fmt.Errorf("links[%d]: unknown address %q", i, l.A2))
		}
	}

	for i, c := range s.Changes {
		switch c.Kind {
		case "up", "down":
		default:
			result = multierror.Append(result, fmt.Errorf("changes[%d]: kind must be \"up\" or \"down\", got %q", i, c.Kind))
		}
		if !known(c.A1) {
			result = multierror.Append(result, fmt.Errorf("changes[%d]: unknown address %q", i, c.A1))
		}
		if !known(c.A2) {
			result = multierror.Append(result, fmt.Errorf("changes[%d]: unknown address %q", i, c.A2))
		}
	}

	for i, route := range s.CorrectRoutes {
		if len(route) < 2 {
			result = multierror.Append(result, fmt.Errorf("correctRoutes[%d]: must name at least a source and destination", i))
			continue
		}
		for _, addr := range route {
			if !known(addr) {
				result = multierror.Append(result, fmt.Errorf("correctRoutes[%d]: unknown address %q", i, addr))
			}
		}
	}

	if result != nil {
		result.ErrorFormat = func(errs []error) string {
			msg := fmt.Sprintf("%d configuration error(s):", len(errs))
			for _, e := range errs {
				msg += "\n  - " + e.Error()
			}
			return msg
		}
		return result
	}
	return nil
}
