package chain

import "github.com/hotline-consensus/hotline/crypto"

// GenesisDigest is the well-known constant spec.md §3 calls for: "its
// digest is a well-known constant used to terminate chain walks." Chain
// walks compare against this value directly rather than recomputing a
// hash fixed point, which is what makes the genesis block's self-loop
// (parent_digest == self.digest) well-defined: a block's digest is
// ordinarily a hash over its own parent_digest, so no non-genesis block
// could ever hash to its own parent_digest even by accident, but genesis
// is special-cased to close the loop instead of being hashed.
var GenesisDigest = crypto.Sha256([]byte("hotline-chain-genesis"))

// Block is the chain's unit of agreement (spec.md §3): a batch of
// requests linked to its parent by digest.
type Block struct {
	ParentDigest crypto.Digest
	Height       uint32
	Requests     []Request
}

// Genesis returns the designated genesis block: height 0, no requests,
// and a self-loop parent pointer.
func Genesis() Block {
	return Block{ParentDigest: GenesisDigest, Height: 0, Requests: nil}
}

// IsGenesis reports whether d is the genesis sentinel.
func IsGenesis(d crypto.Digest) bool { return d == GenesisDigest }

func (b Block) WriteDigest(h *crypto.Hasher) {
	h.WriteBytes(b.ParentDigest[:])
	h.WriteUint32(b.Height)
	h.WriteUint32(uint32(len(b.Requests)))
	for _, r := range b.Requests {
		r.WriteDigest(h)
	}
}

// Digest returns the block's canonical digest, closing the genesis
// self-loop by definition rather than by accidental hash collision: the
// genesis block's digest is GenesisDigest itself, exactly the value its
// own ParentDigest already carries.
func (b Block) Digest() crypto.Digest {
	if b.Height == 0 && len(b.Requests) == 0 && b.ParentDigest == GenesisDigest {
		return GenesisDigest
	}
	return crypto.DigestOf(b)
}
