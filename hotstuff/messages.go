// Package hotstuff implements the three-chain consensus replica and its
// client (spec.md §4.3, §4.4): proposal, voting, the safe-node rule, the
// three-chain commit walk, and a client that retries until f+1 matching
// replies arrive. Grounded on
// _examples/original_source/crates/permissioned-blockchain/src/hotstuff.rs
// (Message/Replica/Client, read in full), with Chain/Block's own shape
// supplied by the sibling chain package (see its DESIGN.md entry for why
// that file had to be reconstructed from spec.md's prose instead).
package hotstuff

import (
	"encoding/binary"
	"fmt"

	"github.com/hotline-consensus/hotline/chain"
	"github.com/hotline-consensus/hotline/crypto"
)

// Vote endorses a block digest (spec.md §3). Signed publicly so any
// replica can verify it without a pairwise secret.
type Vote struct {
	BlockDigest  crypto.Digest
	ReplicaIndex uint8
}

func (v Vote) WriteDigest(h *crypto.Hasher) {
	h.WriteBytes(v.BlockDigest[:])
	h.WriteUint8(v.ReplicaIndex)
}

// Generic is a proposal: a block plus the quorum certificate endorsing
// the chain's current high point (spec.md §3). The genesis certificate
// is empty by convention.
type Generic struct {
	Block          chain.Block
	CertifiedDigest crypto.Digest
	Certificate    []crypto.Signed[Vote]
	ReplicaIndex   uint8
}

func (g Generic) WriteDigest(h *crypto.Hasher) {
	g.Block.WriteDigest(h)
	h.WriteBytes(g.CertifiedDigest[:])
	h.WriteUint32(uint32(len(g.Certificate)))
	for _, v := range g.Certificate {
		v.WriteDigest(h)
	}
	h.WriteUint8(g.ReplicaIndex)
}

// messageKind tags which variant of Message a wire-encoded buffer holds.
type messageKind uint8

const (
	kindRequest messageKind = iota
	kindReply
	kindGeneric
	kindVote
)

// Message is the tagged union spec.md §3 describes as four message
// shapes — Request, Reply, Generic, Vote — all signed, flowing through
// the same reactor.Receivers[Message] dispatch. Go has no sum type, so
// exactly one field is populated per Kind, matching how the teacher's own
// codebase favors a discriminated struct over an interface{} union for
// wire messages (see DESIGN.md).
type Message struct {
	Kind    messageKind
	Request *crypto.Signed[chain.Request]
	Reply   *crypto.Signed[chain.Reply]
	Generic *crypto.Signed[Generic]
	Vote    *crypto.Signed[Vote]
}

func RequestMessage(s crypto.Signed[chain.Request]) Message { return Message{Kind: kindRequest, Request: &s} }
func ReplyMessage(s crypto.Signed[chain.Reply]) Message     { return Message{Kind: kindReply, Reply: &s} }
func GenericMessage(s crypto.Signed[Generic]) Message       { return Message{Kind: kindGeneric, Generic: &s} }
func VoteMessage(s crypto.Signed[Vote]) Message             { return Message{Kind: kindVote, Vote: &s} }

// Encode renders a Message to its wire form: a 1-byte kind tag followed
// by a hand-rolled, length-prefixed field encoding. Grounded on the
// teacher's own append-based wire writers
// (clients/go/consensus/wire_write.go) rather than a reflection-based
// codec (gob/json), generalized to big-endian to match this repo's own
// crypto.Hasher convention used everywhere else.
func Encode(m Message) []byte {
	buf := []byte{byte(m.Kind)}
	switch m.Kind {
	case kindRequest:
		buf = appendSignedRequest(buf, *m.Request)
	case kindReply:
		buf = appendSignedReply(buf, *m.Reply)
	case kindGeneric:
		buf = appendSignedGeneric(buf, *m.Generic)
	case kindVote:
		buf = appendSignedVote(buf, *m.Vote)
	default:
		panic("hotstuff: encode: unknown message kind")
	}
	return buf
}

// Decode parses a wire-encoded Message. It returns an error (it never
// panics) on truncation or an unknown kind tag, left for the
// reactor's Decoder to turn into a boundary panic per spec.md §7.
func Decode(buf []byte) (Message, error) {
	if len(buf) < 1 {
		return Message{}, fmt.Errorf("hotstuff: empty message buffer")
	}
	kind := messageKind(buf[0])
	rest := buf[1:]
	switch kind {
	case kindRequest:
		s, _, err := readSignedRequest(rest)
		if err != nil {
			return Message{}, err
		}
		return RequestMessage(s), nil
	case kindReply:
		s, _, err := readSignedReply(rest)
		if err != nil {
			return Message{}, err
		}
		return ReplyMessage(s), nil
	case kindGeneric:
		s, _, err := readSignedGeneric(rest)
		if err != nil {
			return Message{}, err
		}
		return GenericMessage(s), nil
	case kindVote:
		s, _, err := readSignedVote(rest)
		if err != nil {
			return Message{}, err
		}
		return VoteMessage(s), nil
	default:
		return Message{}, fmt.Errorf("hotstuff: unknown message kind %d", kind)
	}
}

// --- field-level helpers -----------------------------------------------

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendLenPrefixed(buf []byte, b []byte) []byte {
	buf = appendU32(buf, uint32(len(b)))
	return append(buf, b...)
}

func appendIdentity(buf []byte, id crypto.Identity) []byte {
	buf = append(buf, byte(id.Role))
	return appendU16(buf, id.Index)
}

func appendSignature(buf []byte, sig crypto.Signature) []byte {
	return append(buf, sig.MarshalBinary()...)
}

func appendDigest(buf []byte, d crypto.Digest) []byte { return append(buf, d[:]...) }

type reader struct {
	buf []byte
	off int
}

func (r *reader) need(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, fmt.Errorf("hotstuff: truncated message at offset %d (need %d more bytes)", r.off, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) readU16() (uint16, error) {
	b, err := r.need(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) readU32() (uint32, error) {
	b, err := r.need(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) readLenPrefixed() ([]byte, error) {
	n, err := r.readU32()
	if err != nil {
		return nil, err
	}
	return r.need(int(n))
}

func (r *reader) readDigest() (crypto.Digest, error) {
	b, err := r.need(32)
	if err != nil {
		return crypto.Digest{}, err
	}
	var d crypto.Digest
	copy(d[:], b)
	return d, nil
}

func (r *reader) readIdentity() (crypto.Identity, error) {
	roleB, err := r.need(1)
	if err != nil {
		return crypto.Identity{}, err
	}
	idx, err := r.readU16()
	if err != nil {
		return crypto.Identity{}, err
	}
	return crypto.Identity{Role: crypto.Role(roleB[0]), Index: idx}, nil
}

func (r *reader) readSignature() (crypto.Signature, error) {
	b, err := r.need(69)
	if err != nil {
		return crypto.Signature{}, err
	}
	return crypto.UnmarshalSignature(b)
}

func appendRequest(buf []byte, req chain.Request) []byte {
	buf = appendU16(buf, req.ClientIndex)
	buf = appendU32(buf, req.RequestNum)
	return appendLenPrefixed(buf, req.Op)
}

func (r *reader) readRequest() (chain.Request, error) {
	clientIndex, err := r.readU16()
	if err != nil {
		return chain.Request{}, err
	}
	requestNum, err := r.readU32()
	if err != nil {
		return chain.Request{}, err
	}
	op, err := r.readLenPrefixed()
	if err != nil {
		return chain.Request{}, err
	}
	return chain.Request{ClientIndex: clientIndex, RequestNum: requestNum, Op: append([]byte(nil), op...)}, nil
}

func appendReply(buf []byte, rep chain.Reply) []byte {
	buf = appendU32(buf, rep.RequestNum)
	buf = appendLenPrefixed(buf, rep.Result)
	return append(buf, rep.ReplicaIndex)
}

func (r *reader) readReply() (chain.Reply, error) {
	requestNum, err := r.readU32()
	if err != nil {
		return chain.Reply{}, err
	}
	result, err := r.readLenPrefixed()
	if err != nil {
		return chain.Reply{}, err
	}
	riB, err := r.need(1)
	if err != nil {
		return chain.Reply{}, err
	}
	return chain.Reply{RequestNum: requestNum, Result: append([]byte(nil), result...), ReplicaIndex: riB[0]}, nil
}

func appendBlock(buf []byte, b chain.Block) []byte {
	buf = appendDigest(buf, b.ParentDigest)
	buf = appendU32(buf, b.Height)
	buf = appendU32(buf, uint32(len(b.Requests)))
	for _, req := range b.Requests {
		buf = appendRequest(buf, req)
	}
	return buf
}

func (r *reader) readBlock() (chain.Block, error) {
	parent, err := r.readDigest()
	if err != nil {
		return chain.Block{}, err
	}
	height, err := r.readU32()
	if err != nil {
		return chain.Block{}, err
	}
	n, err := r.readU32()
	if err != nil {
		return chain.Block{}, err
	}
	reqs := make([]chain.Request, 0, n)
	for i := uint32(0); i < n; i++ {
		req, err := r.readRequest()
		if err != nil {
			return chain.Block{}, err
		}
		reqs = append(reqs, req)
	}
	return chain.Block{ParentDigest: parent, Height: height, Requests: reqs}, nil
}

func appendVote(buf []byte, v Vote) []byte {
	buf = appendDigest(buf, v.BlockDigest)
	return append(buf, v.ReplicaIndex)
}

func (r *reader) readVote() (Vote, error) {
	d, err := r.readDigest()
	if err != nil {
		return Vote{}, err
	}
	riB, err := r.need(1)
	if err != nil {
		return Vote{}, err
	}
	return Vote{BlockDigest: d, ReplicaIndex: riB[0]}, nil
}

func appendSignedVote(buf []byte, s crypto.Signed[Vote]) []byte {
	buf = appendVote(buf, s.Inner)
	buf = appendSignature(buf, s.Signature)
	return appendIdentity(buf, s.From)
}

func readSignedVote(buf []byte) (crypto.Signed[Vote], int, error) {
	r := &reader{buf: buf}
	v, err := r.readVote()
	if err != nil {
		return crypto.Signed[Vote]{}, 0, err
	}
	sig, err := r.readSignature()
	if err != nil {
		return crypto.Signed[Vote]{}, 0, err
	}
	from, err := r.readIdentity()
	if err != nil {
		return crypto.Signed[Vote]{}, 0, err
	}
	return crypto.Signed[Vote]{Inner: v, Signature: sig, From: from}, r.off, nil
}

func appendSignedGeneric(buf []byte, s crypto.Signed[Generic]) []byte {
	buf = appendBlock(buf, s.Inner.Block)
	buf = appendDigest(buf, s.Inner.CertifiedDigest)
	buf = appendU32(buf, uint32(len(s.Inner.Certificate)))
	for _, v := range s.Inner.Certificate {
		buf = appendSignedVote(buf, v)
	}
	buf = append(buf, s.Inner.ReplicaIndex)
	buf = appendSignature(buf, s.Signature)
	return appendIdentity(buf, s.From)
}

func readSignedGeneric(buf []byte) (crypto.Signed[Generic], int, error) {
	r := &reader{buf: buf}
	block, err := r.readBlock()
	if err != nil {
		return crypto.Signed[Generic]{}, 0, err
	}
	certified, err := r.readDigest()
	if err != nil {
		return crypto.Signed[Generic]{}, 0, err
	}
	n, err := r.readU32()
	if err != nil {
		return crypto.Signed[Generic]{}, 0, err
	}
	cert := make([]crypto.Signed[Vote], 0, n)
	for i := uint32(0); i < n; i++ {
		v, consumed, err := readSignedVote(r.buf[r.off:])
		if err != nil {
			return crypto.Signed[Generic]{}, 0, err
		}
		r.off += consumed
		cert = append(cert, v)
	}
	riB, err := r.need(1)
	if err != nil {
		return crypto.Signed[Generic]{}, 0, err
	}
	sig, err := r.readSignature()
	if err != nil {
		return crypto.Signed[Generic]{}, 0, err
	}
	from, err := r.readIdentity()
	if err != nil {
		return crypto.Signed[Generic]{}, 0, err
	}
	g := Generic{Block: block, CertifiedDigest: certified, Certificate: cert, ReplicaIndex: riB[0]}
	return crypto.Signed[Generic]{Inner: g, Signature: sig, From: from}, r.off, nil
}

func appendSignedRequest(buf []byte, s crypto.Signed[chain.Request]) []byte {
	buf = appendRequest(buf, s.Inner)
	buf = appendSignature(buf, s.Signature)
	return appendIdentity(buf, s.From)
}

func readSignedRequest(buf []byte) (crypto.Signed[chain.Request], int, error) {
	r := &reader{buf: buf}
	req, err := r.readRequest()
	if err != nil {
		return crypto.Signed[chain.Request]{}, 0, err
	}
	sig, err := r.readSignature()
	if err != nil {
		return crypto.Signed[chain.Request]{}, 0, err
	}
	from, err := r.readIdentity()
	if err != nil {
		return crypto.Signed[chain.Request]{}, 0, err
	}
	return crypto.Signed[chain.Request]{Inner: req, Signature: sig, From: from}, r.off, nil
}

func appendSignedReply(buf []byte, s crypto.Signed[chain.Reply]) []byte {
	buf = appendReply(buf, s.Inner)
	buf = appendSignature(buf, s.Signature)
	return appendIdentity(buf, s.From)
}

func readSignedReply(buf []byte) (crypto.Signed[chain.Reply], int, error) {
	r := &reader{buf: buf}
	rep, err := r.readReply()
	if err != nil {
		return crypto.Signed[chain.Reply]{}, 0, err
	}
	sig, err := r.readSignature()
	if err != nil {
		return crypto.Signed[chain.Reply]{}, 0, err
	}
	from, err := r.readIdentity()
	if err != nil {
		return crypto.Signed[chain.Reply]{}, 0, err
	}
	return crypto.Signed[chain.Reply]{Inner: rep, Signature: sig, From: from}, r.off, nil
}
