package router

import (
	"context"
	"testing"
	"time"

	"github.com/nkessler1/routesim/internal/link"
	"github.com/nkessler1/routesim/internal/packet"
	"github.com/stretchr/testify/require"
)

func runFor(t *testing.T, r *Router, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	r.Run(ctx)
}

func TestEchoHandler_LoopsPacketBackOutArrivalPort(t *testing.T) {
	r := New("R", 0, nil)
	r.SetHandler(NewEchoHandler(r, "R"))

	l := link.New("C", "R", 1, 1, 1)
	defer l.Close()
	r.ChangeLink(Change{Kind: AddLink, Port: 1, Endpoint: "C", Link: l, Cost: 1})

	l.Send(packet.New(packet.Traceroute, "C", "R", ""), "C")

	runFor(t, r, 400*time.Millisecond)

	var got *packet.Packet
	require.Eventually(t, func() bool {
		got = l.Recv("C")
		return got != nil
	}, time.Second, time.Millisecond)
	require.Equal(t, []packet.Addr{"C", "R", "C"}, got.Route)
}

type recordingHandler struct {
	added   []int
	removed []int
}

func (h *recordingHandler) HandlePacket(port int, p *packet.Packet) {}
func (h *recordingHandler) HandleNewLink(port int, endpoint packet.Addr, cost int) {
	h.added = append(h.added, port)
}
func (h *recordingHandler) HandleRemoveLink(port int) {
	h.removed = append(h.removed, port)
}
func (h *recordingHandler) HandleTime(timeMs int64) {}
func (h *recordingHandler) String() string          { return "recordingHandler" }

func TestChangeLink_MailboxPreservesEnqueueOrder(t *testing.T) {
	h := &recordingHandler{}
	r := New("R", 0, nil)
	r.SetHandler(h)

	l1 := link.New("A", "R", 1, 1, 1)
	l2 := link.New("B", "R", 1, 1, 1)
	defer l1.Close()
	defer l2.Close()

	r.ChangeLink(Change{Kind: AddLink, Port: 1, Endpoint: "A", Link: l1})
	r.ChangeLink(Change{Kind: RemoveLink, Port: 1})
	r.ChangeLink(Change{Kind: AddLink, Port: 2, Endpoint: "B", Link: l2})

	// The substrate drains at most one change per tick; give it three
	// ticks to apply all three in order.
	runFor(t, r, 350*time.Millisecond)

	require.Equal(t, []int{1}, h.added[:1])
	require.Contains(t, h.removed, 1)
	require.Contains(t, h.added, 2)
}

func TestAddLink_ReplacesOccupiedPort(t *testing.T) {
	h := &recordingHandler{}
	r := New("R", 0, nil)
	r.SetHandler(h)

	l1 := link.New("A", "R", 1, 1, 1)
	l2 := link.New("B", "R", 1, 1, 1)
	defer l1.Close()
	defer l2.Close()

	r.ChangeLink(Change{Kind: AddLink, Port: 1, Endpoint: "A", Link: l1})
	runFor(t, r, 150*time.Millisecond)
	r.ChangeLink(Change{Kind: AddLink, Port: 1, Endpoint: "B", Link: l2})
	runFor(t, r, 150*time.Millisecond)

	require.Equal(t, []int{1}, h.removed, "installing a link on an occupied port must remove the old one first")
	require.Equal(t, l2, r.links[1])
}

func TestSend_UnknownPortIsNoOp(t *testing.T) {
	r := New("R", 0, nil)
	r.SetHandler(NewEchoHandler(nil, "R"))
	require.NotPanics(t, func() {
		r.Send(99, packet.New(packet.Traceroute, "R", "X", ""))
	})
}

type panickingHandler struct{ recordingHandler }

func (h *panickingHandler) HandlePacket(port int, p *packet.Packet) {
	panic("boom")
}

func TestRun_RecoversFromHandlerPanic(t *testing.T) {
	h := &panickingHandler{}
	r := New("R", 0, nil)
	r.SetHandler(h)

	l := link.New("C", "R", 1, 1, 1)
	defer l.Close()
	r.ChangeLink(Change{Kind: AddLink, Port: 1, Endpoint: "C", Link: l})
	l.Send(packet.New(packet.Traceroute, "C", "R", ""), "C")

	require.NotPanics(t, func() {
		runFor(t, r, 300*time.Millisecond)
	})
}
