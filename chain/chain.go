package chain

import "github.com/hotline-consensus/hotline/crypto"

// Chain is the deterministic block-construction and commit-queue state
// spec.md §4.5 describes. It does not itself hold the generics map (that
// is the hotstuff replica's job, spec.md §3's "Ownership & lifecycle");
// Chain only needs to know each known block's height, which the replica
// reports via Observe as it learns new proposals.
type Chain struct {
	// DigestParent is the chain's current parent pointer. The replica sets
	// it to digest_certified immediately before calling Propose or
	// ProposeEmpty (spec.md §4.3's do_propose, §4.5's prose).
	DigestParent crypto.Digest

	heights   map[crypto.Digest]uint32
	committed map[crypto.Digest]bool
	queue     []Block
}

// NewChain returns a Chain seeded with the genesis block as its initial
// parent pointer.
func NewChain() *Chain {
	c := &Chain{
		heights:   make(map[crypto.Digest]uint32),
		committed: make(map[crypto.Digest]bool),
	}
	g := Genesis()
	c.heights[g.Digest()] = g.Height
	c.DigestParent = g.Digest()
	return c
}

// Observe records a known block's height, keyed by its digest, so a
// later Propose/ProposeEmpty whose DigestParent points at it can compute
// the next height. The replica calls this once per newly learned Generic
// (spec.md §4.3's insert_generic, step 1: "Store g in generics").
func (c *Chain) Observe(b Block) { c.heights[b.Digest()] = b.Height }

// Height returns the height of a known block digest. Unknown digests
// (never Observed) report height 0; callers only ever query digests
// already known to the replica's generics map.
func (c *Chain) Height(d crypto.Digest) uint32 { return c.heights[d] }

// Propose drains pending into a new block whose parent_digest is the
// chain's current DigestParent and whose height is the parent's height
// plus one (spec.md §4.5). pending is cleared on return.
func (c *Chain) Propose(pending *[]Request) Block {
	reqs := *pending
	*pending = nil
	b := Block{ParentDigest: c.DigestParent, Height: c.Height(c.DigestParent) + 1, Requests: reqs}
	c.Observe(b)
	return b
}

// ProposeEmpty behaves identically to Propose with an empty request list
// (spec.md §4.5), used for the periodic empty-block policy that keeps
// height advancing when no client request is pending.
func (c *Chain) ProposeEmpty() Block {
	b := Block{ParentDigest: c.DigestParent, Height: c.Height(c.DigestParent) + 1}
	c.Observe(b)
	return b
}

// Commit enqueues block for execution. It is idempotent per block digest:
// committing the same block twice enqueues it only once. Returns true on
// success, matching the source's commit(block) -> bool contract (asserted
// true at every do_update call site).
func (c *Chain) Commit(b Block) bool {
	d := b.Digest()
	if c.committed[d] {
		return true
	}
	c.committed[d] = true
	c.queue = append(c.queue, b)
	return true
}

// NextExecute pops the next committed-but-unexecuted block, or reports
// false once the queue is drained. The replica drains it to empty
// immediately after every Commit before resuming event processing.
func (c *Chain) NextExecute() (Block, bool) {
	if len(c.queue) == 0 {
		return Block{}, false
	}
	b := c.queue[0]
	c.queue = c.queue[1:]
	return b, true
}
