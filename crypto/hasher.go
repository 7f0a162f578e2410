// Package crypto is the uniform hashing and sign/verify façade used by every
// other package: block digests, vote/generic signatures, and the ordered
// multicast sequencer authenticator all go through here.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"
)

// Digest is a fixed-width sha-256 output. It is the hash type used for block
// digests, payload digests fed to the ordered multicast sequencer, and the
// sequencer's chained state.
type Digest [32]byte

// Hasher accumulates a message's canonical byte representation and reduces
// it to a Digest. Types that want to be hashed or signed implement
// Digestible rather than hand-rolling a byte slice, so the accumulated
// encoding stays consistent between hashing and signing call sites.
type Hasher struct {
	h [32]byte // zero value unused; real state lives in s
	s interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
}

// NewHasher returns a ready-to-use Hasher.
func NewHasher() *Hasher {
	return &Hasher{s: sha256.New()}
}

func (h *Hasher) WriteBytes(b []byte) *Hasher {
	_, _ = h.s.Write(b)
	return h
}

func (h *Hasher) WriteUint8(v uint8) *Hasher {
	return h.WriteBytes([]byte{v})
}

func (h *Hasher) WriteUint16(v uint16) *Hasher {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return h.WriteBytes(b[:])
}

func (h *Hasher) WriteUint32(v uint32) *Hasher {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return h.WriteBytes(b[:])
}

// WriteLenPrefixed writes a 4-byte big-endian length followed by b, so
// variable-length fields (op bytes, request batches) cannot be confused
// with adjacent fixed fields when concatenated in a digest.
func (h *Hasher) WriteLenPrefixed(b []byte) *Hasher {
	h.WriteUint32(uint32(len(b)))
	return h.WriteBytes(b)
}

func (h *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], h.s.Sum(nil))
	return d
}

// Digestible is implemented by every message type that participates in a
// digest (block digesting) or a signature (sign/verify over canonical
// bytes). It never mutates the receiver.
type Digestible interface {
	WriteDigest(h *Hasher)
}

// Sha256 hashes an arbitrary byte slice, used by the ordered multicast wire
// layer to digest a serialized payload (spec.md §4.1).
func Sha256(b []byte) Digest {
	var d Digest
	sum := sha256.Sum256(b)
	copy(d[:], sum[:])
	return d
}

// DigestOf reduces any Digestible to its canonical Digest.
func DigestOf(m Digestible) Digest {
	h := NewHasher()
	m.WriteDigest(h)
	return h.Sum()
}
