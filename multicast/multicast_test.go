package multicast

import (
	"fmt"
	"testing"

	"github.com/hotline-consensus/hotline/crypto"
)

type testPayload struct{ value uint32 }

func (p testPayload) WriteDigest(h *crypto.Hasher) { h.WriteUint32(p.value) }

func encodeTestPayload(p testPayload) []byte {
	return []byte{byte(p.value >> 24), byte(p.value >> 16), byte(p.value >> 8), byte(p.value)}
}

func decodeTestPayload(b []byte) (testPayload, error) {
	if len(b) != 4 {
		return testPayload{}, ErrMalformedDatagram
	}
	return testPayload{value: uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])}, nil
}

// TestK256LinkingScenario is spec.md §8 scenario 5: the sequencer emits
// seq_nums 1..5 with 2 and 4 sent as K256Linked; the receiver must observe
// exactly five deliveries in order, with only 1, 3, and 5 directly
// ECDSA-verified (the rest authenticated only by induction).
func TestK256LinkingScenario(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	seq := NewK256Sequencer(priv, 2) // every 2nd message unsigned -> 2 and 4 are linked
	variant := NewK256Variant(priv.Public())
	delegate := NewK256Delegate[testPayload, string](variant)

	type delivery struct {
		seqNum uint32
		kind   SignatureKind
	}
	var delivered []delivery
	deliver := func(remote string, msg OrderedMulticast[testPayload]) {
		delivered = append(delivered, delivery{seqNum: msg.SeqNum, kind: msg.Signature.Kind})
	}

	var directlyVerifiedCount int
	originalVerify := func(msg OrderedMulticast[testPayload]) bool {
		return msg.Signature.Kind == SigK256
	}

	for i := 1; i <= 5; i++ {
		payload := testPayload{value: uint32(i)}
		digest := crypto.DigestOf(payload)
		client := ClientSerialize(digest, encodeTestPayload(payload))
		for _, datagram := range seq.Process(client) {
			msg, err := Decode(datagram, false, decodeTestPayload)
			if err != nil {
				t.Fatalf("decode seq %d: %v", i, err)
			}
			if originalVerify(msg) {
				directlyVerifiedCount++
			}
			delegate.OnReceive("sequencer", msg, deliver)
		}
	}
	delegate.OnPace(deliver)

	if len(delivered) != 5 {
		t.Fatalf("expected 5 deliveries, got %d: %+v", len(delivered), delivered)
	}
	for i, d := range delivered {
		if d.seqNum != uint32(i+1) {
			t.Fatalf("delivery %d: expected seq_num %d, got %d", i, i+1, d.seqNum)
		}
	}
	if directlyVerifiedCount != 3 {
		t.Fatalf("expected exactly 3 directly-verified (1,3,5) messages on the wire, got %d", directlyVerifiedCount)
	}
	// seq_nums 2 and 4 must have arrived as K256Linked on the wire.
	// (delivered[1] and delivered[3] are reclassified to K256Unverified by
	// release; what matters is they were never SigK256 on receipt.)
}

func TestHalfSipHashAddressedOnly(t *testing.T) {
	master := crypto.DefaultMasterSecret
	const numReplica = 6
	seq := NewHalfSipHashSequencer(master, numReplica)

	payload := testPayload{value: 7}
	digest := crypto.DigestOf(payload)
	client := ClientSerialize(digest, encodeTestPayload(payload))
	copies := seq.Process(client)
	if len(copies) != 2 { // ceil(6/4) = 2
		t.Fatalf("expected 2 copies for 6 replicas, got %d", len(copies))
	}

	for replicaIdx := uint16(0); replicaIdx < numReplica; replicaIdx++ {
		key := crypto.DeriveMACKey(master, replicaLabel(replicaIdx))
		variant := NewHalfSipHashVariant(replicaIdx, key)
		delegate := NewNopDelegate[testPayload, string](variant)

		var delivered int
		deliver := func(string, OrderedMulticast[testPayload]) { delivered++ }

		for _, datagram := range copies {
			msg, err := Decode(datagram, true, decodeTestPayload)
			if err != nil {
				t.Fatal(err)
			}
			delegate.OnReceive("sequencer", msg, deliver)
		}
		if delivered != 1 {
			t.Fatalf("replica %d: expected exactly 1 delivery (from its own block), got %d", replicaIdx, delivered)
		}
	}
}

func replicaLabel(idx uint16) string {
	return fmt.Sprintf("multicast-halfsiphash/replica=%d", idx)
}
