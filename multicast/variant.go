package multicast

import "github.com/hotline-consensus/hotline/crypto"

// Variant is the receiver-side authenticator for one of the two
// cryptographic schemes spec.md §4.1 describes. A replica is configured
// with exactly one Variant, matching the sequencer's own configuration.
type Variant struct {
	halfSipHash bool
	index       uint16  // this receiver's replica index; its slot in a 4-wide block is index % 4
	macKey      crypto.MACKey
	k256Pub     *crypto.PublicKey
}

// NewHalfSipHashVariant builds a Variant for a receiver at the given
// replica index, holding the MAC key the sequencer derived for it.
func NewHalfSipHashVariant(index uint16, key crypto.MACKey) *Variant {
	return &Variant{halfSipHash: true, index: index, macKey: key}
}

// NewK256Variant builds a Variant that authenticates against the
// sequencer's public key.
func NewK256Variant(sequencerPub *crypto.PublicKey) *Variant {
	return &Variant{k256Pub: sequencerPub}
}

// VerifyHalfSipHash checks the MAC in msg's slot (index % 4) against what
// this receiver expects for the message's payload digest. A mismatch is
// not itself evidence of tampering: with ⌈numReplica/4⌉ copies of every
// datagram on the wire, only one copy's block actually targets this
// receiver, and the other copies legitimately carry a different
// recipient's tag in the same slot position. Callers therefore treat a
// non-nil error here as "not addressed to me," not as a protocol fault.
func VerifyHalfSipHash[M crypto.Digestible](v *Variant, msg OrderedMulticast[M]) error {
	if !v.halfSipHash {
		return invalidConfig("variant is not configured for HalfSipHash")
	}
	if msg.Signature.Kind != SigHalfSipHash {
		return invalidConfig("message does not carry a HalfSipHash signature")
	}
	digest := crypto.DigestOf(msg.Inner)
	expected := v.macKey.MAC(digest)
	got := msg.Signature.HalfSipHash[v.index%4]
	if got != expected {
		return errNotAddressed
	}
	return nil
}

// VerifyK256 checks msg's authenticity under the K256 variant. K256Linked
// and K256Unverified carry no directly-checkable signature: their
// authenticity is implied by induction once some later message's own
// K256 signature — which covers a chain state folding in this message's
// digest and sequence number — is itself checked (spec.md §4.1, "Linked
// signatures... authenticated retroactively by induction on the chain").
func VerifyK256[M crypto.Digestible](v *Variant, msg OrderedMulticast[M]) error {
	if v.k256Pub == nil {
		return invalidConfig("variant is not configured for K256")
	}
	switch msg.Signature.Kind {
	case SigK256Linked, SigK256Unverified:
		return nil
	case SigK256:
		state := chainState(msg.Linked, crypto.DigestOf(msg.Inner), msg.SeqNum)
		if !v.k256Pub.VerifyDigest(state, msg.Signature.K256) {
			return errAuthFailed
		}
		return nil
	default:
		return invalidConfig("unexpected signature kind for K256 variant")
	}
}
