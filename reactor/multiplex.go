package reactor

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
)

// backpressureLimit is the queue depth at which the reactor treats itself
// as overwhelmed and panics rather than buffering indefinitely (spec.md
// §4.2, "4096-deep queue backpressure"; src/context/tokio.rs:
// `assert!(self.event.1.len() < 4096, "receivers overwhelmed")`).
const backpressureLimit = 4096

type eventKind uint8

const (
	evMessage eventKind = iota
	evLoopback
	evOrderedMulticast
)

type event struct {
	kind     eventKind
	receiver Addr
	remote   Addr
	payload  []byte
}

// Transport delivers bytes to a remote Addr and is driven by whatever
// network binding a deployment chooses (see udp.go for the UDP one this
// repo ships). Tests and in-process setups can supply a trivial
// loopback-only Transport.
type Transport interface {
	SendTo(addr Addr, payload []byte)
}

// Multiplex is the single-threaded cooperative event loop of spec.md
// §4.2: every Context registered against it feeds the same queue, and
// exactly one goroutine (the one that calls Run) ever touches receiver
// state, so protocol code never needs its own locking.
type Multiplex struct {
	transport Transport

	events chan event
	stop   chan struct{}
	notify chan struct{}

	mu          sync.Mutex
	timers      *timers
	nextSubnode uint32

	// DropRate randomly discards a fraction of incoming Message and
	// OrderedMulticastMessage events, for fault-injection testing (spec.md
	// §4.2, "drop-rate fault injection").
	DropRate float64
	rng      *rand.Rand
	rngMu    sync.Mutex
}

// New builds a Multiplex. transport may be nil for a purely in-process
// (loopback-only) setup such as a unit test.
func New(transport Transport) *Multiplex {
	return &Multiplex{
		transport: transport,
		events:    make(chan event, backpressureLimit*4),
		stop:      make(chan struct{}),
		notify:    make(chan struct{}, 1),
		timers:    newTimers(),
		rng:       rand.New(rand.NewSource(1)),
	}
}

// SetTransport wires (or rewires) the Multiplex's outbound transport.
// Needed because a Transport such as UDPTransport is itself constructed
// from an already-built Multiplex (its receive loop delivers into it),
// so production wiring builds the Multiplex with a nil transport first,
// constructs the UDPTransport from it, then calls SetTransport.
func (mp *Multiplex) SetTransport(transport Transport) {
	mp.transport = transport
}

// Register builds a Context for one logical source address, used to send
// and to set/unset timers. encode turns an outbound message of type M
// into wire bytes. logger receives a debug record for every Send; a nil
// logger defaults to slog.Default(), matching control.NewServer's own
// default-logger convention.
func Register[M any](mp *Multiplex, source Addr, encode func(M) []byte, logger *slog.Logger) *Context[M] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context[M]{mp: mp, source: source, encode: encode, node: 0, logger: logger}
}

// RegisterSubnode builds a Context sharing parent's source and transport
// but with its own timer-id namespace, so a component layered on top of
// another (e.g. a client retransmission timer alongside a replica's pace
// timers) never collides timer ids (spec.md §4.2, "subnode timer-id
// namespacing").
func RegisterSubnode[M, N any](mp *Multiplex, parent *Context[N], encode func(M) []byte) *Context[M] {
	mp.mu.Lock()
	mp.nextSubnode++
	node := mp.nextSubnode
	mp.mu.Unlock()
	return &Context[M]{mp: mp, source: parent.source, encode: encode, node: node, logger: parent.logger}
}

func (mp *Multiplex) deliver(e event) {
	if len(mp.events) >= backpressureLimit {
		panic(fmt.Sprintf("reactor: receivers overwhelmed (queue depth %d)", len(mp.events)))
	}
	mp.events <- e
}

func (mp *Multiplex) sendBuf(to Addr, payload []byte) {
	if mp.transport == nil || to.IsUpcall() {
		return
	}
	mp.transport.SendTo(to, payload)
}

func (mp *Multiplex) shouldDrop() bool {
	if mp.DropRate <= 0 {
		return false
	}
	mp.rngMu.Lock()
	defer mp.rngMu.Unlock()
	return mp.rng.Float64() < mp.DropRate
}

// deliverInbound is how a transport feeds a received datagram into the
// multiplex. receiver is the local address the datagram arrived on.
func (mp *Multiplex) deliverInbound(receiver, remote Addr, payload []byte) {
	mp.deliver(event{kind: evMessage, receiver: receiver, remote: remote, payload: payload})
}

// DeliverInbound is the exported form of deliverInbound, for Transport
// implementations that live outside this package (UDPTransport, in this
// same package, calls deliverInbound directly; an in-process test harness
// wiring several Multiplex values together needs this exported seam
// instead).
func (mp *Multiplex) DeliverInbound(receiver, remote Addr, payload []byte) {
	mp.deliverInbound(receiver, remote, payload)
}

// deliverOrderedMulticast is how the ordered-multicast transport feeds a
// raw stamped datagram into the multiplex.
func (mp *Multiplex) deliverOrderedMulticast(remote Addr, payload []byte) {
	mp.deliver(event{kind: evOrderedMulticast, remote: remote, payload: payload})
}

func (mp *Multiplex) notifyTimer() {
	select {
	case mp.notify <- struct{}{}:
	default:
	}
}

// idleHint reports whether the multiplex currently has no queued events,
// mirroring src/context/tokio.rs's `idle_hint` used by control-plane
// benchmarking to decide when a burst of load has drained.
func (mp *Multiplex) idleHint() bool { return len(mp.events) == 0 }

// Handle stops a running multiplex loop (spec.md §4.2, MultiplexHandle).
type Handle struct {
	stop chan struct{}
}

func (mp *Multiplex) Handle() Handle { return Handle{stop: mp.stop} }

// Stop requests the event loop exit at its next iteration. Safe to call
// more than once.
func (h Handle) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

func (mp *Multiplex) drainTimers(onTimer func(Addr, TimerID)) {
	mp.mu.Lock()
	staged := mp.timers.staged
	mp.timers.staged = nil
	mp.mu.Unlock()
	for _, te := range staged {
		mp.mu.Lock()
		cancelled := mp.timers.cancelled[te.id]
		mp.mu.Unlock()
		if cancelled {
			continue
		}
		onTimer(te.receiver, te.id)
	}
}

// waitOneTick blocks for the next event, stop request, or timer
// notification, returning which fired. It blocks until one of them
// arrives.
func (mp *Multiplex) waitOneTick() (event, bool, bool) {
	select {
	case e := <-mp.events:
		return e, false, false
	case <-mp.notify:
		return event{}, true, false
	case <-mp.stop:
		return event{}, false, true
	}
}
