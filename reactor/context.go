package reactor

import (
	"log/slog"
	"time"
)

// Context is a registered source's handle onto the multiplex: it sends
// messages of type M and manages its own timers. Grounded on
// src/context/tokio.rs's Context<M>, with the Rust `Sign<N>`-bounded
// generic send collapsed into an explicit encode function supplied at
// registration — Go has no trait-bound equivalent, and the caller already
// has to produce a signed M before sending in every real call site
// (spec.md's replica and client both sign before handing a message to the
// reactor), so nothing is lost by making that explicit.
type Context[M any] struct {
	mp     *Multiplex
	source Addr
	encode func(M) []byte
	node   uint32
	seq    uint32
	logger *slog.Logger
}

// Source is this context's own address, used by receivers to tell which
// locally-registered endpoint a message arrived on.
func (c *Context[M]) Source() Addr { return c.source }

// Send encodes message and delivers it to to. AddrsWithLoopback and
// Loopback both additionally enqueue a LoopbackMessage delivered back to
// this context's own source (spec.md §4.2: a node processing its own
// broadcast).
func (c *Context[M]) Send(to To, message M) {
	buf := c.encode(message)
	switch to.kind {
	case toAddr:
		c.logger.Debug("reactor: send", "source", c.source, "to", to.addr)
		if to.addr.IsUpcall() {
			c.mp.deliver(event{kind: evLoopback, receiver: c.source, payload: buf})
			return
		}
		c.mp.sendBuf(to.addr, buf)
	case toAddrs:
		c.logger.Debug("reactor: send", "source", c.source, "to_count", len(to.addrs))
		for _, a := range to.addrs {
			c.mp.sendBuf(a, buf)
		}
	case toAddrsWithLoopback:
		c.logger.Debug("reactor: send", "source", c.source, "to_count", len(to.addrs), "loopback", true)
		c.mp.deliver(event{kind: evLoopback, receiver: c.source, payload: buf})
		for _, a := range to.addrs {
			c.mp.sendBuf(a, buf)
		}
	case toLoopback:
		c.logger.Debug("reactor: send", "source", c.source, "loopback", true)
		c.mp.deliver(event{kind: evLoopback, receiver: c.source, payload: buf})
	}
}

// Set arms a one-shot timer that fires after duration, delivered to
// whatever Receivers.OnTimer the multiplex is running. The returned
// TimerID is only ever valid for Unset on the same Context's multiplex.
func (c *Context[M]) Set(duration time.Duration) TimerID {
	c.seq++
	id := TimerID{Node: c.node, Seq: c.seq}
	mp := c.mp
	source := c.source
	t := time.AfterFunc(duration, func() {
		mp.mu.Lock()
		if mp.timers.cancelled[id] {
			mp.mu.Unlock()
			return
		}
		mp.timers.staged = append(mp.timers.staged, timerEvent{receiver: source, id: id})
		mp.mu.Unlock()
		mp.notifyTimer()
	})
	mp.mu.Lock()
	mp.timers.live[id] = t
	mp.mu.Unlock()
	return id
}

// Unset cancels a timer. If its callback already staged a firing before
// Unset acquires the lock, that firing is discarded when the staging
// vector is drained, so no firing of the timer is delivered after Unset
// returns.
func (c *Context[M]) Unset(id TimerID) {
	mp := c.mp
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if t, ok := mp.timers.live[id]; ok {
		t.Stop()
		delete(mp.timers.live, id)
	}
	mp.timers.cancelled[id] = true
}
