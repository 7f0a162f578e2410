package reactor

import (
	"fmt"
	"testing"

	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/multicast"
)

type omTestPayload struct{ value uint32 }

func (p omTestPayload) WriteDigest(h *crypto.Hasher) { h.WriteUint32(p.value) }

func encodeOMTestPayload(p omTestPayload) []byte {
	return []byte{byte(p.value >> 24), byte(p.value >> 16), byte(p.value >> 8), byte(p.value)}
}

func decodeOMTestPayload(b []byte) (omTestPayload, error) {
	if len(b) != 4 {
		return omTestPayload{}, fmt.Errorf("bad ordered multicast test payload length %d", len(b))
	}
	return omTestPayload{value: uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])}, nil
}

type omReceiver struct {
	handle   Handle
	handled  []omTestPayload
	receiver Addr
	remote   Addr
}

func (r *omReceiver) Handle(receiver, remote Addr, message testMsg) {
	r.receiver, r.remote = receiver, remote
	r.handled = append(r.handled, omTestPayload{value: uint32(message.n)})
	r.handle.Stop()
}
func (r *omReceiver) HandleLoopback(Addr, testMsg) {}
func (r *omReceiver) OnTimer(Addr, TimerID)        {}
func (r *omReceiver) OnPace()                      {}

// TestRunOrderedMulticastDeliversToReceiver exercises the C3 reactor-level
// ordered-multicast receive path end to end: a Sequencer stamps a
// client-originated datagram the way cmd/hotline-sequencer's UDP loop
// would, RunOrderedMulticast decodes it and drives it through a
// multicast.Delegate, and the Receivers' Handle is called with the
// released inner message addressed as Multicast.
func TestRunOrderedMulticastDeliversToReceiver(t *testing.T) {
	const numReplica = 4
	master := crypto.DefaultMasterSecret
	seq := multicast.NewHalfSipHashSequencer(master, numReplica)

	payload := omTestPayload{value: 42}
	digest := crypto.DigestOf(payload)
	client := multicast.ClientSerialize(digest, encodeOMTestPayload(payload))
	copies := seq.Process(client)

	const replicaIdx = 0
	key := crypto.DeriveMACKey(master, fmt.Sprintf("multicast-halfsiphash/replica=%d", replicaIdx))
	variant := multicast.NewHalfSipHashVariant(replicaIdx, key)
	delegate := multicast.NewNopDelegate[omTestPayload, Addr](variant)

	decodeRaw := func(buf []byte) (multicast.OrderedMulticast[omTestPayload], error) {
		return multicast.Decode(buf, true, decodeOMTestPayload)
	}
	into := func(om multicast.OrderedMulticast[omTestPayload]) testMsg {
		return testMsg{n: int(om.Inner.value)}
	}

	mp := New(nil)
	recv := &omReceiver{handle: mp.Handle()}
	dec := Decoder[testMsg]{
		Decode: func([]byte) (testMsg, error) { panic("ordered-multicast-only test never decodes a plain Message") },
		Verify: func(testMsg) error { panic("ordered-multicast-only test never verifies a plain Message") },
	}

	go func() {
		for _, datagram := range copies {
			mp.deliverOrderedMulticast(UnknownRemote, datagram)
		}
	}()

	RunOrderedMulticast[testMsg, omTestPayload](mp, recv, dec, delegate, decodeRaw, into)

	if len(recv.handled) != 1 {
		t.Fatalf("expected exactly one delivery for the addressed replica, got %d: %+v", len(recv.handled), recv.handled)
	}
	if recv.handled[0].value != 42 {
		t.Fatalf("delivered payload = %+v, want value 42", recv.handled[0])
	}
	if !recv.receiver.IsMulticast() {
		t.Fatalf("expected the receiver Addr to be Multicast, got %v", recv.receiver)
	}
}
