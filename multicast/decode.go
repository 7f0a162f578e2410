package multicast

import (
	"fmt"

	"github.com/hotline-consensus/hotline/crypto"
)

// Decode parses a stamped wire datagram into an OrderedMulticast[M],
// inferring the signature kind from the byte pattern the sequencer and
// delegate agree on: an all-zero signature region means K256Linked; a
// signature region with non-zero bytes under the K256 variant means a
// directly-checkable K256 signature (byte-reversed back to natural
// order); otherwise it is treated as the HalfSipHash 4x4-byte code table.
// The caller supplies decodeInner since M's wire representation is
// application-specific.
func Decode[M crypto.Digestible](buf []byte, halfSipHash bool, decodeInner func([]byte) (M, error)) (OrderedMulticast[M], error) {
	var zero OrderedMulticast[M]
	seqNum, sigRegion, linked, err := decodeHeader(buf)
	if err != nil {
		return zero, err
	}
	inner, err := decodeInner(buf[HeaderLen:])
	if err != nil {
		return zero, fmt.Errorf("multicast: decode payload: %w", err)
	}
	out := OrderedMulticast[M]{SeqNum: seqNum, Inner: inner}
	if halfSipHash {
		out.Signature.Kind = SigHalfSipHash
		for i := 0; i < 4; i++ {
			copy(out.Signature.HalfSipHash[i][:], sigRegion[4*i:4*i+4])
		}
		return out, nil
	}
	if allZero(sigRegion[:]) {
		out.Signature.Kind = SigK256Linked
		out.Linked = linked
		return out, nil
	}
	out.Signature.Kind = SigK256
	out.Linked = linked
	copy(out.Signature.K256[:], sigRegion[:])
	reverse64(&out.Signature.K256)
	return out, nil
}
