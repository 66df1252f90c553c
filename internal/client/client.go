// Package client implements the edge-device traceroute probe generator.
package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkessler1/routesim/internal/link"
	"github.com/nkessler1/routesim/internal/packet"
)

const tick = 100 * time.Millisecond

// linkMailboxCapacity bounds the backlog of unapplied link-attach
// commands. A client is an edge device with at most one uplink, so in
// practice this mailbox ever holds a single pending command.
const linkMailboxCapacity = 8

// Observer receives a route observation every time a client sends or
// receives a traceroute probe for (src, dst).
type Observer interface {
	UpdateRoute(src, dst packet.Addr, route []packet.Addr)
}

// Client periodically emits a traceroute probe to every known peer and
// reports the carried route back to an Observer on receipt.
type Client struct {
	Addr       packet.Addr
	AllClients []packet.Addr
	SendRate   time.Duration

	observer Observer
	logger   *slog.Logger

	link        *link.Link
	linkChanges chan *link.Link
	lastSendReq chan struct{}

	lastSend time.Time
	sending  bool
}

// lastSendMailboxCapacity only ever needs to hold the one final-burst
// request a scenario fires at end of run; buffered so LastSend never
// blocks its caller.
const lastSendMailboxCapacity = 1

// New constructs a Client. allClients is every peer address this client
// should probe, including itself (probing yourself is harmless — the
// spec does not require excluding it and the original implementation
// does not either).
func New(addr packet.Addr, allClients []packet.Addr, sendRate time.Duration, observer Observer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		Addr:        addr,
		AllClients:  allClients,
		SendRate:    sendRate,
		observer:    observer,
		logger:      logger.With("client", addr),
		linkChanges: make(chan *link.Link, linkMailboxCapacity),
		lastSendReq: make(chan struct{}, lastSendMailboxCapacity),
		sending:     true,
	}
}

// AttachLink enqueues the client's single uplink. A client can only ever
// have one attached link (edge devices), so a later AttachLink replaces
// an earlier one once applied.
func (c *Client) AttachLink(l *link.Link) {
	c.linkChanges <- l
}

// Run drives the client's loop until ctx is cancelled: tick sleep, drain
// one link-attach command, drain one final-burst request, receive one
// packet, maybe emit a probe burst. c.sending, c.link, and c.lastSend are
// only ever touched from this goroutine — AttachLink and LastSend only
// enqueue onto mailboxes, they never write client state directly.
func (c *Client) Run(ctx context.Context) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case l := <-c.linkChanges:
			c.link = l
		default:
		}

		select {
		case <-c.lastSendReq:
			c.sending = false
			c.sendTraceroutes()
		default:
		}

		if c.link != nil {
			if p := c.link.Recv(c.Addr); p != nil {
				c.handlePacket(p)
			}
		}

		now := time.Now()
		if c.sending && now.Sub(c.lastSend) >= c.SendRate {
			c.sendTraceroutes()
			c.lastSend = now
		}
	}
}

// handlePacket reports the carried route for a traceroute arrival; any
// other packet kind — ROUTING packets in particular — is silently
// dropped, per spec.
func (c *Client) handlePacket(p *packet.Packet) {
	if !p.IsTraceroute() {
		return
	}
	c.observer.UpdateRoute(p.Src, p.Dst, p.Route)
}

// sendTraceroutes emits one traceroute probe to every peer and
// simultaneously reports an empty observed route for that pair, so the
// report shows "not yet discovered" endpoints as empty until a reply
// lands.
func (c *Client) sendTraceroutes() {
	for _, dst := range c.AllClients {
		p := packet.New(packet.Traceroute, c.Addr, dst, "")
		if c.link != nil {
			c.link.Send(p, c.Addr)
		}
		c.observer.UpdateRoute(p.Src, p.Dst, nil)
	}
}

// LastSend requests one final probe burst with periodic sending disabled
// — the orchestrator's end-of-scenario quiescence step. It only enqueues
// the request; Run applies it on its own goroutine, since c.sending and
// c.link must never be touched from the caller's goroutine.
func (c *Client) LastSend() {
	select {
	case c.lastSendReq <- struct{}{}:
	default:
	}
}
