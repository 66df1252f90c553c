package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nkessler1/routesim/internal/link"
	"github.com/nkessler1/routesim/internal/packet"
	"github.com/stretchr/testify/require"
)

type observation struct {
	src, dst packet.Addr
	route    []packet.Addr
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *recordingObserver) UpdateRoute(src, dst packet.Addr, route []packet.Addr) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observation{src: src, dst: dst, route: route})
}

func (o *recordingObserver) snapshot() []observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]observation, len(o.seen))
	copy(out, o.seen)
	return out
}

func runFor(t *testing.T, c *Client, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	c.Run(ctx)
}

func TestRun_EmitsPeriodicProbesWithEmptyRoute(t *testing.T) {
	obs := &recordingObserver{}
	c := New("C1", []packet.Addr{"C2"}, 50*time.Millisecond, obs, nil)

	l := link.New("C1", "C2", 1, 1, 1)
	defer l.Close()
	c.AttachLink(l)

	runFor(t, c, 250*time.Millisecond)

	found := false
	for _, o := range obs.snapshot() {
		if o.src == "C1" && o.dst == "C2" && o.route == nil {
			found = true
		}
	}
	require.True(t, found, "expected at least one empty-route observation for an unanswered probe")
}

func TestHandlePacket_ReportsTracerouteRoute(t *testing.T) {
	obs := &recordingObserver{}
	c := New("C2", []packet.Addr{"C1"}, time.Hour, obs, nil)

	l := link.New("C1", "C2", 1, 1, 1)
	defer l.Close()
	c.AttachLink(l)

	p := packet.New(packet.Traceroute, "C1", "C2", "")
	p.AddToRoute("R")
	p.AddToRoute("C2")
	l.Send(p, "C1")

	runFor(t, c, 400*time.Millisecond)

	seen := obs.snapshot()
	require.NotEmpty(t, seen)
	// In the same tick the client also reports an empty route for its own
	// C2 -> C1 probe; the arrival is the only observation sourced at C1.
	var got observation
	for _, o := range seen {
		if o.src == "C1" {
			got = o
		}
	}
	require.Equal(t, packet.Addr("C1"), got.src)
	require.Equal(t, packet.Addr("C2"), got.dst)
	require.Equal(t, []packet.Addr{"C1", "R", "C2", "C2"}, got.route)
}

func TestHandlePacket_IgnoresRoutingPackets(t *testing.T) {
	obs := &recordingObserver{}
	c := New("C2", nil, time.Hour, obs, nil)

	before := len(obs.snapshot())
	c.handlePacket(packet.New(packet.Routing, "C1", "C2", "payload"))
	require.Equal(t, before, len(obs.snapshot()))
}

func TestLastSend_DisablesFurtherPeriodicSendsButFiresOnce(t *testing.T) {
	obs := &recordingObserver{}
	c := New("C1", []packet.Addr{"C2"}, time.Millisecond, obs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	c.LastSend()

	time.Sleep(150 * time.Millisecond)
	countAfterSettle := len(obs.snapshot())

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, countAfterSettle, len(obs.snapshot()), "no further probes after LastSend disables sending")

	cancel()
	<-done
}

func TestRun_WithoutLinkStillReportsEmptyRoutes(t *testing.T) {
	obs := &recordingObserver{}
	c := New("C1", []packet.Addr{"C2"}, 50*time.Millisecond, obs, nil)

	runFor(t, c, 150*time.Millisecond)

	seen := obs.snapshot()
	require.NotEmpty(t, seen)
	for _, o := range seen {
		require.Nil(t, o.route)
	}
}
