package reactor

// Receivers is implemented by whatever protocol logic a Multiplex drives
// — a HotStuff replica or client. Exactly one goroutine (the one running
// Run) ever calls these methods, so implementations need no internal
// locking of their own (spec.md §4.2: "single-threaded cooperative
// dispatch").
type Receivers[M any] interface {
	Handle(receiver, remote Addr, message M)
	HandleLoopback(receiver Addr, message M)
	OnTimer(receiver Addr, id TimerID)
	// OnPace is called whenever the event queue has just drained to zero,
	// the hook protocol logic uses to do idle-triggered work (a primary
	// replica proposing its next block).
	OnPace()
}

// Decoder turns wire bytes into a typed message and authenticates it;
// Run panics if either step fails, per spec.md §7 (malformed datagram /
// authentication failure are both invariant violations at this boundary).
type Decoder[M any] struct {
	Decode func([]byte) (M, error)
	Verify func(M) error
}

// Run drives the multiplex loop for a Receivers that only ever sees
// directly-addressed Message/LoopbackMessage events (no ordered
// multicast). It returns when Stop is called on the multiplex's Handle.
func Run[M any](mp *Multiplex, receivers Receivers[M], dec Decoder[M]) {
	runLoop[M](mp, receivers, dec, nil)
}

// omRunner erases the ordered-multicast inner payload type N so runLoop
// can stay generic over only M, the Receivers' message type.
type omRunner[M any] interface {
	onReceive(remote Addr, payload []byte, receivers Receivers[M])
	onPace(receivers Receivers[M])
}

// resolvePace implements spec.md §4.2's pacing rule: pace fires once the
// queue has fully drained, and the next pace count is reset to the
// current queue depth (or 1 if empty), so a burst of N queued events
// triggers pace again only after all N have been processed once more.
func resolvePace(mp *Multiplex) int {
	if n := len(mp.events); n > 0 {
		return n
	}
	return 1
}

func runLoop[M any](mp *Multiplex, receivers Receivers[M], dec Decoder[M], om omRunner[M]) {
	paceCount := 1
	for {
		if paceCount == 0 {
			receivers.OnPace()
			if om != nil {
				om.onPace(receivers)
			}
			paceCount = resolvePace(mp)
		}

		if len(mp.events) >= backpressureLimit {
			panic("reactor: receivers overwhelmed")
		}

		e, isNotify, isStop := mp.waitOneTick()
		mp.drainTimers(receivers.OnTimer)
		if isStop {
			return
		}
		if isNotify {
			continue
		}

		switch e.kind {
		case evMessage:
			paceCount--
			if mp.shouldDrop() {
				continue
			}
			msg, err := dec.Decode(e.payload)
			if err != nil {
				panic(err)
			}
			if err := dec.Verify(msg); err != nil {
				panic(err)
			}
			receivers.Handle(e.receiver, e.remote, msg)
		case evLoopback:
			paceCount--
			msg, err := dec.Decode(e.payload)
			if err != nil {
				panic(err)
			}
			receivers.HandleLoopback(e.receiver, msg)
		case evOrderedMulticast:
			paceCount--
			if mp.shouldDrop() {
				continue
			}
			if om == nil {
				panic("reactor: ordered multicast event on a plain Run loop")
			}
			om.onReceive(e.remote, e.payload, receivers)
		}
	}
}
