package multicast

import (
	"encoding/binary"

	"github.com/hotline-consensus/hotline/crypto"
)

// chainState computes S_i from the previous chained value, the message
// digest, and the sequence number (spec.md §4.1: "S_i := sha256(linked_i ||
// digest_i || seq_num_i)", folded through a fixed 52-byte buffer so the
// digest lands XORed into the middle third rather than simply
// concatenated — grounded on src/context/ordered_multicast.rs's
// `state_internal`).
func chainState(linked crypto.Digest, digest crypto.Digest, seqNum uint32) crypto.Digest {
	var buf [52]byte
	copy(buf[0:32], linked[:])
	for i := 0; i < 32; i++ {
		buf[16+i] ^= digest[i]
	}
	binary.BigEndian.PutUint32(buf[48:52], seqNum)
	return crypto.Sha256(buf[:])
}

// genesisState is S_0, the sequencer's chain value before any message has
// been processed (the finalized digest of an empty accumulator).
func genesisState() crypto.Digest {
	return crypto.Sha256(nil)
}
