// Package chain implements the common block chain (spec.md §4.5): request
// batching, block digesting, parent linkage, and the commit queue the
// hotstuff replica drives through its three-chain update rule.
//
// Grounded on spec.md §3/§4.5's own prose rather than a direct port: the
// retrieved original_source/ corpus captures hotstuff.rs's call sites into
// this package (Chain::genesis, chain.propose, chain.propose_empty,
// chain.commit, chain.next_execute) but not the defining source file
// itself (see DESIGN.md) — it was filtered out of the retrieval pack.
package chain

import "github.com/hotline-consensus/hotline/crypto"

// Request is a client's signed operation, batched into a block by the
// primary (spec.md §3).
type Request struct {
	ClientIndex uint16
	RequestNum  uint32
	Op          []byte
}

func (r Request) WriteDigest(h *crypto.Hasher) {
	h.WriteUint16(r.ClientIndex)
	h.WriteUint32(r.RequestNum)
	h.WriteLenPrefixed(r.Op)
}

// Reply is a replica's signed response to a Request (spec.md §3).
type Reply struct {
	RequestNum   uint32
	Result       []byte
	ReplicaIndex uint8
}

func (r Reply) WriteDigest(h *crypto.Hasher) {
	h.WriteUint32(r.RequestNum)
	h.WriteLenPrefixed(r.Result)
	h.WriteUint8(r.ReplicaIndex)
}
