package reactor

import (
	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/multicast"
)

// orderedMulticastRunner adapts a multicast.Delegate into the reactor's
// event loop: it decodes raw ordered-multicast datagrams, drives the
// delegate's release logic, and converts each released envelope (inner
// payload type N) into the Receivers' message type M before calling
// Handle — the Go shape of src/context/tokio.rs's
// `OrderedMulticastMultiplex::run`, whose `from_ordered_multicast`
// closure plays the same role as `into` here.
type orderedMulticastRunner[M any, N crypto.Digestible] struct {
	delegate  *multicast.Delegate[N, Addr]
	decodeRaw func([]byte) (multicast.OrderedMulticast[N], error)
	into      func(multicast.OrderedMulticast[N]) M
}

func (r *orderedMulticastRunner[M, N]) onReceive(remote Addr, payload []byte, receivers Receivers[M]) {
	msg, err := r.decodeRaw(payload)
	if err != nil {
		panic(err)
	}
	r.delegate.OnReceive(remote, msg, func(from Addr, released multicast.OrderedMulticast[N]) {
		receivers.Handle(Multicast, from, r.into(released))
	})
}

func (r *orderedMulticastRunner[M, N]) onPace(receivers Receivers[M]) {
	r.delegate.OnPace(func(from Addr, released multicast.OrderedMulticast[N]) {
		receivers.Handle(Multicast, from, r.into(released))
	})
}

// RunOrderedMulticast drives the multiplex loop for a Receivers that also
// handles ordered-multicast deliveries of inner payload type N, wiring
// delegate into the event loop.
func RunOrderedMulticast[M any, N crypto.Digestible](
	mp *Multiplex,
	receivers Receivers[M],
	dec Decoder[M],
	delegate *multicast.Delegate[N, Addr],
	decodeRaw func([]byte) (multicast.OrderedMulticast[N], error),
	into func(multicast.OrderedMulticast[N]) M,
) {
	om := &orderedMulticastRunner[M, N]{delegate: delegate, decodeRaw: decodeRaw, into: into}
	runLoop(mp, receivers, dec, om)
}
