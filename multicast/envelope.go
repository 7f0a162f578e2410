// Package multicast implements the authenticated ordered-multicast
// primitive (spec.md §4.1): wire framing, the two cryptographic variants
// (HalfSipHash and K256/ECDSA), the sequencer that stamps datagrams, and
// the receiver-side delegate that releases them in sequencer order.
package multicast

import (
	"encoding/binary"
	"fmt"

	"github.com/hotline-consensus/hotline/crypto"
)

// Header layout (spec.md §4.1): 100 bytes total.
const (
	OffsetSeqNum    = 0
	OffsetSignature = 4
	SignatureLen    = 64
	OffsetLinked    = 68
	LinkedLen       = 32
	HeaderLen       = 100
)

// SignatureKind distinguishes the four signature variants of spec.md §3.
type SignatureKind uint8

const (
	SigHalfSipHash SignatureKind = iota
	SigK256
	SigK256Unverified
	SigK256Linked
)

func (k SignatureKind) String() string {
	switch k {
	case SigHalfSipHash:
		return "half-siphash"
	case SigK256:
		return "k256"
	case SigK256Unverified:
		return "k256-unverified"
	case SigK256Linked:
		return "k256-linked"
	default:
		return "unknown"
	}
}

// Signature is the tagged union of spec.md §3: four 32-bit per-receiver
// MACs for HalfSipHash, or a 64-byte compact ECDSA signature (verified,
// unverified-pending-release, or absent/linked).
type Signature struct {
	Kind        SignatureKind
	HalfSipHash [4][4]byte
	K256        [64]byte
}

// OrderedMulticast is the wire envelope of spec.md §3: a sequencer-stamped
// message, generic over the inner application message type M.
type OrderedMulticast[M crypto.Digestible] struct {
	SeqNum    uint32
	Signature Signature
	Linked    [32]byte
	Inner     M
}

// Verified reports whether the envelope carries a directly-checkable
// signature, as opposed to one whose authenticity is only implied by a
// later message in the chain (spec.md §4.1, `verified()`).
func (m OrderedMulticast[M]) Verified() bool {
	return m.Signature.Kind == SigHalfSipHash || m.Signature.Kind == SigK256
}

// ClientSerialize produces the datagram a client originator sends to the
// multicast group before the sequencer stamps it: a zeroed header
// carrying the payload's sha-256 digest at the two offsets the sequencer
// reads from (spec.md §4.1: "places the sha-256 digest of the payload in
// two precomputed locations").
func ClientSerialize(digest crypto.Digest, payload []byte) []byte {
	buf := make([]byte, HeaderLen+len(payload))
	copy(buf[20:28], digest[:8])
	copy(buf[68:100], digest[:])
	copy(buf[100:], payload)
	return buf
}

// Encode re-serializes an already-stamped envelope back to wire bytes.
// Used by tests and by loopback delivery paths that skip the network.
func Encode[M crypto.Digestible](m OrderedMulticast[M], encodeInner func(M) []byte) []byte {
	payload := encodeInner(m.Inner)
	buf := make([]byte, HeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[OffsetSeqNum:OffsetSeqNum+4], m.SeqNum)
	switch m.Signature.Kind {
	case SigHalfSipHash:
		for i, code := range m.Signature.HalfSipHash {
			copy(buf[4+4*i:8+4*i], code[:])
		}
	case SigK256:
		sig := m.Signature.K256
		reverse64(&sig)
		copy(buf[OffsetSignature:OffsetSignature+SignatureLen], sig[:])
		copy(buf[OffsetLinked:OffsetLinked+LinkedLen], m.Linked[:])
	case SigK256Unverified:
		// same wire shape as SigK256; the distinction is receiver-local state.
		sig := m.Signature.K256
		reverse64(&sig)
		copy(buf[OffsetSignature:OffsetSignature+SignatureLen], sig[:])
		copy(buf[OffsetLinked:OffsetLinked+LinkedLen], m.Linked[:])
	case SigK256Linked:
		copy(buf[OffsetLinked:OffsetLinked+LinkedLen], m.Linked[:])
	}
	copy(buf[HeaderLen:], payload)
	return buf
}

func reverse64(b *[64]byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// ErrMalformedDatagram is returned when a datagram is too short to carry
// the fixed 100-byte header (spec.md §7, error kind 3).
var ErrMalformedDatagram = fmt.Errorf("multicast: malformed datagram")

func decodeHeader(buf []byte) (seqNum uint32, sigRegion [64]byte, linked [32]byte, err error) {
	if len(buf) < HeaderLen {
		return 0, sigRegion, linked, ErrMalformedDatagram
	}
	seqNum = binary.BigEndian.Uint32(buf[OffsetSeqNum : OffsetSeqNum+4])
	copy(sigRegion[:], buf[OffsetSignature:OffsetSignature+SignatureLen])
	copy(linked[:], buf[OffsetLinked:OffsetLinked+LinkedLen])
	return seqNum, sigRegion, linked, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
