package multicast

import (
	"fmt"

	"github.com/hotline-consensus/hotline/crypto"
)

// Sequencer is the trusted stamping authority of spec.md §4.1: it assigns
// monotonic sequence numbers to client datagrams and signs them under one
// of the two variants before they go out to the multicast group.
type Sequencer struct {
	seqNum uint32
	mode   sequencerMode
}

type sequencerMode interface {
	// stamp fills in the signature/linked region(s) of buf (already carrying
	// a client-assigned digest at offsets 20 and 68) and returns one or
	// more ready-to-send datagrams.
	stamp(buf []byte, seqNum uint32, digest crypto.Digest) [][]byte
}

// NewHalfSipHashSequencer builds a sequencer that derives one MAC key per
// replica (via crypto.DeriveMACKey) and emits ⌈numReplica/4⌉ copies of
// every datagram, one per 4-replica block.
func NewHalfSipHashSequencer(master [32]byte, numReplica int) *Sequencer {
	keys := make([]crypto.MACKey, numReplica)
	for i := range keys {
		keys[i] = crypto.DeriveMACKey(master, fmt.Sprintf("multicast-halfsiphash/replica=%d", i))
	}
	return &Sequencer{mode: &halfSipHashMode{keys: keys}}
}

// NewK256Sequencer builds a sequencer that signs with priv and leaves every
// linkEvery-th message unsigned (K256Linked), amortizing ECDSA cost across
// the chain (spec.md §4.1: "may emit some datagrams with the signature
// region all zero"). linkEvery <= 1 signs every message.
func NewK256Sequencer(priv *crypto.PrivateKey, linkEvery int) *Sequencer {
	if linkEvery < 1 {
		linkEvery = 1
	}
	return &Sequencer{mode: &k256Mode{priv: priv, state: genesisState(), linkEvery: linkEvery}}
}

// Process assigns the next sequence number to datagram (a client-originated
// ClientSerialize output) and returns the fully-stamped wire datagram(s) to
// send to the multicast group. It panics if datagram is too short to carry
// the fixed header, a malformed-datagram condition spec.md §7 treats as a
// protocol invariant violation.
func (s *Sequencer) Process(datagram []byte) [][]byte {
	if len(datagram) < HeaderLen {
		panic(ErrMalformedDatagram)
	}
	s.seqNum++
	var digest crypto.Digest
	copy(digest[:], datagram[OffsetLinked:OffsetLinked+LinkedLen])
	buf := make([]byte, len(datagram))
	copy(buf, datagram)
	return s.mode.stamp(buf, s.seqNum, digest)
}

type halfSipHashMode struct {
	keys []crypto.MACKey
}

func (m *halfSipHashMode) stamp(buf []byte, seqNum uint32, digest crypto.Digest) [][]byte {
	var out [][]byte
	for offset := 0; offset < len(m.keys); offset += 4 {
		datagram := append([]byte(nil), buf...)
		writeSeqNum(datagram, seqNum)
		for j := 0; j < 4; j++ {
			idx := offset + j
			var code [4]byte
			if idx < len(m.keys) {
				code = m.keys[idx].MAC(digest)
			}
			start := OffsetSignature + 4*j
			copyInto(datagram, start, code[:])
		}
		out = append(out, datagram)
	}
	return out
}

type k256Mode struct {
	priv      *crypto.PrivateKey
	state     crypto.Digest // S_{i-1}: the chain value before processing this message
	linkEvery int
	count     int
}

func (m *k256Mode) stamp(buf []byte, seqNum uint32, digest crypto.Digest) [][]byte {
	writeSeqNum(buf, seqNum)
	linked := m.state
	next := chainState(linked, digest, seqNum)
	m.count++
	linkedOnly := m.linkEvery > 1 && m.count%m.linkEvery == 0
	copyInto(buf, OffsetLinked, linked[:])
	if linkedOnly {
		copyInto(buf, OffsetSignature, make([]byte, SignatureLen))
	} else {
		sig, err := m.priv.SignDigest(next)
		if err != nil {
			panic("multicast: sequencer signing failed: " + err.Error())
		}
		reverse64(&sig)
		copyInto(buf, OffsetSignature, sig[:])
	}
	m.state = next
	return [][]byte{buf}
}

func writeSeqNum(buf []byte, seqNum uint32) {
	buf[0] = byte(seqNum >> 24)
	buf[1] = byte(seqNum >> 16)
	buf[2] = byte(seqNum >> 8)
	buf[3] = byte(seqNum)
}

func copyInto(buf []byte, offset int, src []byte) {
	copy(buf[offset:offset+len(src)], src)
}
