package multicast

import "github.com/hotline-consensus/hotline/crypto"

// Delegate is the receiver-side release state machine of spec.md §4.1: it
// decides, for each arriving datagram, whether to hand it to the
// application immediately or hold it pending the next signed arrival (the
// K256 linked-signature amortization) or a pace event. A is the reactor's
// address type; Delegate stays reactor-agnostic by taking a deliver
// callback instead of depending on the reactor package directly.
type Delegate[M crypto.Digestible, A any] struct {
	halfSipHash bool
	variant     *Variant

	hasPending  bool
	pendingAddr A
	pendingMsg  OrderedMulticast[M]
}

// NewNopDelegate builds the HalfSipHash-mode delegate (the Rust source's
// "Nop" delegate): every addressed datagram is self-authenticating and
// delivered without being held.
func NewNopDelegate[M crypto.Digestible, A any](variant *Variant) *Delegate[M, A] {
	return &Delegate[M, A]{halfSipHash: true, variant: variant}
}

// NewK256Delegate builds the K256-mode delegate, which holds the most
// recently arrived signed-but-not-yet-checked message, releasing it
// (reclassified as K256Unverified, its authenticity implied rather than
// directly checked) whenever a newer signed message displaces it or a
// linked message arrives after it.
func NewK256Delegate[M crypto.Digestible, A any](variant *Variant) *Delegate[M, A] {
	return &Delegate[M, A]{variant: variant}
}

// OnReceive processes one incoming datagram, invoking deliver zero or more
// times: zero if the datagram doesn't apply to this receiver or becomes
// newly pending, once for an unsigned/self-authenticating datagram or for
// a previously-pending datagram displaced by this arrival, and twice when a
// linked datagram arrives while a signed one is pending (the pending one
// first, so releases stay in sequence order).
//
// OnReceive performs no ECDSA check itself; a genuine K256 authentication
// failure panics in OnPace (spec.md §7, error kind 1). A HalfSipHash slot that simply isn't addressed to this receiver does
// not — it is the expected outcome for most of the ⌈numReplica/4⌉ copies
// of every datagram, not evidence of tampering.
func (d *Delegate[M, A]) OnReceive(remote A, msg OrderedMulticast[M], deliver func(A, OrderedMulticast[M])) {
	if d.halfSipHash {
		if err := VerifyHalfSipHash(d.variant, msg); err != nil {
			return
		}
		deliver(remote, msg)
		return
	}

	if !msg.Verified() {
		// K256Linked: no signature content of its own, authenticated only by
		// induction once a later message's signature is checked. An older
		// pending signed message is released first to keep seq order.
		if d.hasPending {
			prev, prevAddr := d.pendingMsg, d.pendingAddr
			prev.Signature.Kind = SigK256Unverified
			d.hasPending = false
			deliver(prevAddr, prev)
		}
		deliver(remote, msg)
		return
	}

	if d.hasPending {
		prev, prevAddr := d.pendingMsg, d.pendingAddr
		prev.Signature.Kind = SigK256Unverified
		deliver(prevAddr, prev)
	}
	d.pendingAddr, d.pendingMsg, d.hasPending = remote, msg, true
}

// OnPace flushes any still-pending signed message at reactor idle,
// performing the real ECDSA check this is the only place it happens for a
// message that never got displaced by a newer arrival (spec.md §4.1,
// "on_pace": "the pending message is released unconditionally").
func (d *Delegate[M, A]) OnPace(deliver func(A, OrderedMulticast[M])) {
	if d.halfSipHash || !d.hasPending {
		return
	}
	msg, addr := d.pendingMsg, d.pendingAddr
	d.hasPending = false
	if err := VerifyK256(d.variant, msg); err != nil {
		panic(err)
	}
	deliver(addr, msg)
}
