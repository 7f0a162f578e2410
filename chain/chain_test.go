package chain

import "testing"

func TestGenesisSelfLoop(t *testing.T) {
	g := Genesis()
	if g.Digest() != g.ParentDigest {
		t.Fatalf("genesis must self-loop: digest %x != parent_digest %x", g.Digest(), g.ParentDigest)
	}
	if !IsGenesis(g.Digest()) {
		t.Fatalf("genesis digest must compare equal to GenesisDigest")
	}
}

func TestProposeAdvancesHeightFromParent(t *testing.T) {
	c := NewChain()
	pending := []Request{{ClientIndex: 0, RequestNum: 1, Op: []byte("x")}}
	b1 := c.Propose(&pending)
	if b1.Height != 1 {
		t.Fatalf("expected height 1 off genesis, got %d", b1.Height)
	}
	if b1.ParentDigest != Genesis().Digest() {
		t.Fatalf("expected parent_digest to be genesis digest")
	}
	if len(pending) != 0 {
		t.Fatalf("expected pending buffer drained")
	}

	c.DigestParent = b1.Digest()
	b2 := c.ProposeEmpty()
	if b2.Height != 2 {
		t.Fatalf("expected height 2, got %d", b2.Height)
	}
	if len(b2.Requests) != 0 {
		t.Fatalf("propose_empty must produce no requests")
	}
}

func TestCommitIsIdempotentAndFeedsExecutionQueue(t *testing.T) {
	c := NewChain()
	b := Block{ParentDigest: Genesis().Digest(), Height: 1, Requests: []Request{{ClientIndex: 1, RequestNum: 1, Op: []byte("y")}}}

	if ok := c.Commit(b); !ok {
		t.Fatalf("commit must report success")
	}
	if ok := c.Commit(b); !ok {
		t.Fatalf("re-committing the same block must still report success")
	}

	got, ok := c.NextExecute()
	if !ok {
		t.Fatalf("expected a block ready to execute")
	}
	if got.Digest() != b.Digest() {
		t.Fatalf("next_execute returned the wrong block")
	}

	if _, ok := c.NextExecute(); ok {
		t.Fatalf("expected the execution queue to be drained after one commit (idempotent commit must not re-enqueue)")
	}
}
