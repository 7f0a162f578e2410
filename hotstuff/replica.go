package hotstuff

import (
	"fmt"
	"log/slog"

	"github.com/hotline-consensus/hotline/app"
	"github.com/hotline-consensus/hotline/chain"
	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/reactor"
)

// genesisReplicaIndex is the sentinel replica index carried by the
// synthetic genesis Generic's signer identity, the Go analogue of the
// source's u8::MAX on that same seeded record — it never corresponds to
// a real replica and exists only so the genesis entry has a well-formed
// From field.
const genesisReplicaIndex = 0xFF

// primaryIndex is fixed: leader rotation and view-change are an explicit
// Non-goal (spec.md §1). A crashed or malicious primary stalls progress
// by design; this repo documents that rather than working around it.
const primaryIndex uint16 = 0

type replyRecord struct {
	requestNum uint32
	reply      *crypto.Signed[chain.Reply]
}

// Replica is the three-chain consensus state machine (spec.md §4.3). It
// implements reactor.Receivers[Message] and is driven exclusively by the
// single goroutine running reactor.Run, so none of its fields need a
// lock (spec.md §5: "no protocol callback runs concurrently with
// another").
type Replica struct {
	context *reactor.Context[Message]
	index   uint16
	table   reactor.Table

	numReplica int
	numFaulty  int

	signer   *crypto.Signer
	verifier *crypto.Verifier
	app      app.App

	viewHeight      uint32
	proposeHeight   uint32
	digestCertified crypto.Digest
	digestLock      crypto.Digest

	pending []chain.Request
	replies map[uint16]replyRecord

	generics  map[crypto.Digest]crypto.Signed[Generic]
	votes     map[crypto.Digest]map[uint8]crypto.Signed[Vote]
	reorder   map[crypto.Digest][]crypto.Signed[Generic]
	chainLink *chain.Chain

	// emptyBlockEvery resolves spec.md §4.3's "or periodic empty-block
	// policy" open question: this repo's concrete choice is to propose an
	// empty block every emptyBlockEvery pace events with no pending
	// request, keeping height (and therefore liveness probes) advancing
	// even under no client load. 0 disables empty-block proposals.
	emptyBlockEvery int
	paceTicks       int

	logger *slog.Logger
}

// NewReplica builds a Replica seeded with the genesis block as its sole
// known proposal, exactly the bootstrap hotstuff.rs's Replica::new
// performs: a self-referential genesis Generic with an empty certificate
// and a Plain (never-verified) signature. logger receives debug records
// for every message handled and info/warn records for commit and
// invariant-adjacent events (SPEC_FULL.md's Logging section); a nil
// logger defaults to slog.Default().
func NewReplica(ctx *reactor.Context[Message], index uint16, table reactor.Table, numFaulty int, signer *crypto.Signer, verifier *crypto.Verifier, application app.App, emptyBlockEvery int, logger *slog.Logger) *Replica {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Replica{
		context:         ctx,
		index:           index,
		table:           table,
		numReplica:      len(table.Replicas),
		numFaulty:       numFaulty,
		signer:          signer,
		verifier:        verifier,
		app:             application,
		digestCertified: chain.GenesisDigest,
		digestLock:      chain.GenesisDigest,
		replies:         make(map[uint16]replyRecord),
		generics:        make(map[crypto.Digest]crypto.Signed[Generic]),
		votes:           make(map[crypto.Digest]map[uint8]crypto.Signed[Vote]),
		reorder:         make(map[crypto.Digest][]crypto.Signed[Generic]),
		chainLink:       chain.NewChain(),
		emptyBlockEvery: emptyBlockEvery,
		logger:          logger,
	}
	genesis := chain.Genesis()
	r.generics[chain.GenesisDigest] = crypto.Signed[Generic]{
		Inner: Generic{
			Block:           genesis,
			CertifiedDigest: chain.GenesisDigest,
			Certificate:     nil,
			ReplicaIndex:    genesisReplicaIndex,
		},
		Signature: crypto.PlainSignature(),
		From:      crypto.Identity{Role: crypto.RoleReplica, Index: genesisReplicaIndex},
	}
	votesForGenesis := map[uint8]crypto.Signed[Vote]{}
	r.votes[chain.GenesisDigest] = votesForGenesis
	return r
}

func (r *Replica) isPrimary() bool { return r.index == primaryIndex }

// Handle dispatches a network-delivered Message (spec.md §4.3).
func (r *Replica) Handle(receiver, remote reactor.Addr, message Message) {
	r.logger.Debug("hotstuff: replica: handle", "index", r.index, "remote", remote, "kind", message.Kind)
	switch message.Kind {
	case kindRequest:
		r.handleRequest(remote, *message.Request)
	case kindGeneric:
		r.doReorderGeneric(*message.Generic)
	case kindVote:
		r.handleVote(*message.Vote)
	default:
		panic(fmt.Sprintf("hotstuff: replica: unexpected message kind %d", message.Kind))
	}
}

// HandleLoopback dispatches a message the replica sent to itself
// (spec.md §4.3: a self-broadcast Generic skips the reorder buffer since
// the proposer already knows its ancestors are present; a self-addressed
// Vote goes straight to the tally).
func (r *Replica) HandleLoopback(receiver reactor.Addr, message Message) {
	r.logger.Debug("hotstuff: replica: handle loopback", "index", r.index, "kind", message.Kind)
	switch message.Kind {
	case kindGeneric:
		r.insertGeneric(*message.Generic)
	case kindVote:
		r.handleVote(*message.Vote)
	default:
		panic(fmt.Sprintf("hotstuff: replica: unexpected loopback kind %d", message.Kind))
	}
}

// OnTimer is unused: with leader rotation out of scope, a replica never
// arms a timer of its own (only the client retransmits). Grounded on
// hotstuff.rs's own Receivers::on_timer, which is todo!() in the source
// for the same reason.
func (r *Replica) OnTimer(receiver reactor.Addr, id reactor.TimerID) {}

// OnPace drives primary proposal at the moment the event queue drains
// (spec.md §4.3).
func (r *Replica) OnPace() {
	if !r.isPrimary() {
		return
	}
	r.paceTicks++
	haveWork := len(r.pending) > 0
	emptyDue := r.emptyBlockEvery > 0 && r.paceTicks >= r.emptyBlockEvery
	if !haveWork && !emptyDue {
		return
	}
	if r.blockHeight(r.digestCertified) < r.proposeHeight {
		return
	}
	r.doPropose()
	r.paceTicks = 0
}

func (r *Replica) doPropose() {
	r.chainLink.DigestParent = r.digestCertified
	var block chain.Block
	if len(r.pending) > 0 {
		block = r.chainLink.Propose(&r.pending)
	} else {
		block = r.chainLink.ProposeEmpty()
	}

	var certificate []crypto.Signed[Vote]
	for _, v := range r.votes[r.digestCertified] {
		certificate = append(certificate, v)
	}

	g := Generic{
		Block:           block,
		CertifiedDigest: r.digestCertified,
		Certificate:     certificate,
		ReplicaIndex:    uint8(r.index),
	}
	signed := crypto.SignPublic(r.signer, g)
	r.context.Send(r.table.AllReplicaWithLoopback(), GenericMessage(signed))
	r.proposeHeight = block.Height
	r.logger.Info("hotstuff: replica: propose", "index", r.index, "height", block.Height, "requests", len(block.Requests))
}

// handleRequest implements spec.md §4.3's Request handling, including the
// idempotent reply cache that makes client retransmission safe.
func (r *Replica) handleRequest(remote reactor.Addr, req crypto.Signed[chain.Request]) {
	ci := req.Inner.ClientIndex
	if rec, ok := r.replies[ci]; ok {
		if rec.requestNum > req.Inner.RequestNum {
			return // stale
		}
		if rec.requestNum == req.Inner.RequestNum {
			if rec.reply != nil {
				r.context.Send(reactor.ToAddr(remote), ReplyMessage(*rec.reply))
			}
			return
		}
	}
	r.replies[ci] = replyRecord{requestNum: req.Inner.RequestNum}
	if r.isPrimary() {
		r.pending = append(r.pending, req.Inner)
	}
}

// doReorderGeneric parks g until both its parent block and its certified
// digest are known, then inserts it and recursively drains anything
// parked on the digest g just resolved (spec.md §4.3's reorder buffer).
func (r *Replica) doReorderGeneric(g crypto.Signed[Generic]) {
	parent := g.Inner.Block.ParentDigest
	certified := g.Inner.CertifiedDigest

	if _, ok := r.generics[parent]; !ok {
		r.reorder[parent] = append(r.reorder[parent], g)
		return
	}
	if _, ok := r.generics[certified]; !ok {
		r.reorder[certified] = append(r.reorder[certified], g)
		return
	}

	r.insertGeneric(g)

	key := g.Inner.Block.Digest()
	waiting := r.reorder[key]
	delete(r.reorder, key)
	for _, child := range waiting {
		r.doReorderGeneric(child)
	}
}

// insertGeneric implements the SafeNode/Vote rule and triggers the
// three-chain update (spec.md §4.3).
func (r *Replica) insertGeneric(g crypto.Signed[Generic]) {
	key := g.Inner.Block.Digest()
	r.generics[key] = g
	r.chainLink.Observe(g.Inner.Block)
	if _, ok := r.votes[key]; !ok {
		r.votes[key] = make(map[uint8]crypto.Signed[Vote])
	}

	if g.Inner.Block.Height > r.viewHeight &&
		(r.extends(key, r.digestLock) || r.blockHeight(g.Inner.CertifiedDigest) > r.blockHeight(r.digestLock)) {
		r.viewHeight = g.Inner.Block.Height
		vote := Vote{BlockDigest: key, ReplicaIndex: uint8(r.index)}
		signed := crypto.SignPublic(r.signer, vote)
		if r.isPrimary() {
			r.handleVote(signed)
		} else {
			r.context.Send(reactor.ToAddr(reactor.Replica(primaryIndex)), VoteMessage(signed))
		}
	}

	r.doUpdate(key)
}

// extends reports whether base lies on from's parent-chain, walking
// parent_digest pointers until reaching base or genesis (spec.md §4.3).
func (r *Replica) extends(from, base crypto.Digest) bool {
	cur := from
	for {
		if cur == base {
			return true
		}
		if chain.IsGenesis(cur) {
			return false
		}
		g, ok := r.generics[cur]
		if !ok {
			return false
		}
		cur = g.Inner.Block.ParentDigest
	}
}

// blockHeight looks up a known digest's height. Every digest ever passed
// here is guaranteed present by spec.md's P5 chain-closure invariant
// (every parent_digest/certified_digest referenced by a stored Generic is
// itself in generics, genesis terminating); a miss is a closure violation.
func (r *Replica) blockHeight(d crypto.Digest) uint32 {
	g, ok := r.generics[d]
	if !ok {
		panic(fmt.Sprintf("hotstuff: chain closure violated: unknown digest %x", d))
	}
	return g.Inner.Block.Height
}

// doUpdate walks the three-chain B3->B2->B1->B0 from a freshly inserted
// proposal and commits B0 once it is linearly certified (spec.md §4.3).
func (r *Replica) doUpdate(b3 crypto.Digest) {
	g3, ok := r.generics[b3]
	if !ok {
		panic("hotstuff: do_update called on unknown digest")
	}
	b2 := g3.Inner.CertifiedDigest
	g2, ok := r.generics[b2]
	if !ok {
		return
	}
	b1 := g2.Inner.CertifiedDigest
	g1, ok := r.generics[b1]
	if !ok {
		return
	}
	b0 := g1.Inner.CertifiedDigest

	if r.blockHeight(b2) > r.blockHeight(r.digestCertified) {
		r.digestCertified = b2
	}
	if r.blockHeight(b1) > r.blockHeight(r.digestLock) {
		r.digestLock = b1
	}

	if g2.Inner.Block.ParentDigest == b1 && g1.Inner.Block.ParentDigest == b0 && !chain.IsGenesis(b0) {
		r.commitBlock(b0)
	}
}

// doUpdateCertified raises digest_certified when a vote tally reaches
// quorum for a digest that was not reached via a fresh proposal's own
// three-chain walk (spec.md §4.3's Vote handler).
func (r *Replica) doUpdateCertified(d crypto.Digest) {
	if r.blockHeight(d) > r.blockHeight(r.digestCertified) {
		r.digestCertified = d
	}
}

// handleVote tallies a vote and, once it reaches quorum (n-f distinct
// signers), raises digest_certified. The quorum check happens before the
// insert: once tally has already reached quorum, every further vote for
// that digest — a resend from an already-counted signer or a fresh one
// arriving late — is dropped rather than added, so tally never grows
// past n-f.
func (r *Replica) handleVote(v crypto.Signed[Vote]) {
	bd := v.Inner.BlockDigest
	tally, ok := r.votes[bd]
	if !ok {
		tally = make(map[uint8]crypto.Signed[Vote])
		r.votes[bd] = tally
	}
	quorum := r.numReplica - r.numFaulty
	if len(tally) >= quorum {
		return
	}
	if _, seen := tally[v.Inner.ReplicaIndex]; seen {
		return
	}
	tally[v.Inner.ReplicaIndex] = v
	if len(tally) == quorum {
		r.logger.Debug("hotstuff: replica: vote quorum reached", "index", r.index, "digest", bd, "quorum", quorum)
		r.doUpdateCertified(bd)
	}
}

// commitBlock executes every request in a newly committed block and
// replies to its client (spec.md §4.3's commit rule).
func (r *Replica) commitBlock(b0 crypto.Digest) {
	g0, ok := r.generics[b0]
	if !ok {
		panic("hotstuff: commit on unknown digest")
	}
	if ok := r.chainLink.Commit(g0.Inner.Block); !ok {
		panic("hotstuff: chain.Commit reported failure")
	}
	r.logger.Info("hotstuff: replica: commit", "index", r.index, "height", g0.Inner.Block.Height)
	for {
		block, ok := r.chainLink.NextExecute()
		if !ok {
			break
		}
		for _, req := range block.Requests {
			result := r.app.Execute(req.Op)
			reply := chain.Reply{RequestNum: req.RequestNum, Result: result, ReplicaIndex: uint8(r.index)}
			signed := crypto.SignPrivateFor(r.signer, req.ClientIndex, reply)
			r.replies[req.ClientIndex] = replyRecord{requestNum: req.RequestNum, reply: &signed}
			r.context.Send(reactor.ToAddr(reactor.Client(req.ClientIndex)), ReplyMessage(signed))
		}
	}
}
