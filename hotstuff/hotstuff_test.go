package hotstuff

import (
	"sync"
	"testing"
	"time"

	"github.com/hotline-consensus/hotline/app"
	"github.com/hotline-consensus/hotline/chain"
	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/reactor"
)

// testDeployment builds the signer/verifier material for numReplica
// replicas and one client sharing a single master secret, mirroring how a
// real deployment's keystore would provision a devnet (spec.md §6).
type testDeployment struct {
	table     reactor.Table
	verifier  *crypto.Verifier
	replicas  []*crypto.Signer
	client    *crypto.Signer
	numFaulty int
}

func newTestDeployment(t *testing.T, numReplica, numFaulty int) *testDeployment {
	t.Helper()
	var master [32]byte
	copy(master[:], []byte("hotstuff-test-master-secret-0001"))

	verifier := crypto.NewVerifier(master)
	table := reactor.Table{Clients: []reactor.Addr{reactor.Client(0)}}
	signers := make([]*crypto.Signer, numReplica)
	for i := 0; i < numReplica; i++ {
		priv, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate replica key: %v", err)
		}
		signers[i] = crypto.NewReplicaSigner(uint16(i), priv, master)
		verifier.AddReplicaKey(uint16(i), priv.Public())
		table.Replicas = append(table.Replicas, reactor.Replica(uint16(i)))
	}
	clientSigner := crypto.NewClientSigner(0, master)

	return &testDeployment{
		table:     table,
		verifier:  verifier,
		replicas:  signers,
		client:    clientSigner,
		numFaulty: numFaulty,
	}
}

type sentRecord struct {
	addr    reactor.Addr
	payload []byte
}

// recordingTransport never forwards anything; it just remembers what was
// sent, for tests that exercise a single Replica's logic directly without
// a live multi-node network.
type recordingTransport struct {
	mu   sync.Mutex
	sent []sentRecord
}

func (t *recordingTransport) SendTo(addr reactor.Addr, payload []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, sentRecord{addr: addr, payload: payload})
}

func (t *recordingTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sent)
}

// TestHandleRequestIdempotency is spec.md §8 scenario 2: a duplicate
// resend of an already-recorded or already-answered request must never
// re-enqueue it for proposal, and once a reply is cached it is resent
// verbatim rather than re-executed.
func TestHandleRequestIdempotency(t *testing.T) {
	d := newTestDeployment(t, 1, 0)
	mp := reactor.New(&recordingTransport{})
	ctx := reactor.Register[Message](mp, reactor.Replica(0), Encode, nil)
	r := NewReplica(ctx, 0, d.table, d.numFaulty, d.replicas[0], d.verifier, app.Echo{}, 0, nil)

	req := crypto.SignPrivate(d.client, chain.Request{ClientIndex: 5, RequestNum: 1, Op: []byte("a")})

	r.handleRequest(reactor.Client(5), req)
	if len(r.pending) != 1 {
		t.Fatalf("expected request buffered, got %d pending", len(r.pending))
	}

	r.handleRequest(reactor.Client(5), req)
	if len(r.pending) != 1 {
		t.Fatalf("duplicate request must not be re-enqueued, got %d pending", len(r.pending))
	}

	stale := crypto.SignPrivate(d.client, chain.Request{ClientIndex: 5, RequestNum: 0, Op: []byte("old")})
	r.handleRequest(reactor.Client(5), stale)
	if len(r.pending) != 1 {
		t.Fatalf("stale request must be dropped, got %d pending", len(r.pending))
	}

	signedReply := crypto.SignPrivateFor(d.replicas[0], 5, chain.Reply{RequestNum: 1, Result: []byte("a"), ReplicaIndex: 0})
	r.replies[5] = replyRecord{requestNum: 1, reply: &signedReply}

	before := len(r.pending)
	r.handleRequest(reactor.Client(5), req)
	if len(r.pending) != before {
		t.Fatalf("a request matching an already-cached reply must not be re-enqueued")
	}
}

// TestReorderGenericBuffering is spec.md §8 scenario 4: a proposal that
// arrives before its parent is known must be parked, not dropped, and
// inserted once the parent resolves.
func TestReorderGenericBuffering(t *testing.T) {
	d := newTestDeployment(t, 4, 1)
	mp := reactor.New(&recordingTransport{})
	ctx := reactor.Register[Message](mp, reactor.Replica(1), Encode, nil)
	r := NewReplica(ctx, 1, d.table, d.numFaulty, d.replicas[1], d.verifier, app.Echo{}, 0, nil)

	block1 := chain.Block{ParentDigest: chain.GenesisDigest, Height: 1}
	g1 := crypto.SignPublic(d.replicas[0], Generic{Block: block1, CertifiedDigest: chain.GenesisDigest, ReplicaIndex: 0})

	block2 := chain.Block{ParentDigest: block1.Digest(), Height: 2}
	g2 := crypto.SignPublic(d.replicas[0], Generic{Block: block2, CertifiedDigest: chain.GenesisDigest, ReplicaIndex: 0})

	r.doReorderGeneric(g2)
	if _, ok := r.generics[block2.Digest()]; ok {
		t.Fatalf("generic with an unknown parent must not be inserted yet")
	}

	r.doReorderGeneric(g1)
	if _, ok := r.generics[block1.Digest()]; !ok {
		t.Fatalf("expected parent generic inserted")
	}
	if _, ok := r.generics[block2.Digest()]; !ok {
		t.Fatalf("expected parked child generic drained and inserted once its parent resolved")
	}
}

// routedTransport forwards every send across a small in-process network
// of Multiplex values keyed by logical Addr, simulating the real UDP
// transport for an integration-level test.
type routedTransport struct {
	local  reactor.Addr
	router map[reactor.Addr]*reactor.Multiplex
}

func (t *routedTransport) SendTo(addr reactor.Addr, payload []byte) {
	target, ok := t.router[addr]
	if !ok {
		return
	}
	target.DeliverInbound(addr, t.local, payload)
}

// TestThreeChainCommitFourReplicas is spec.md §8 scenario 3: four
// replicas, f=1, App=echo. A client's request must commit and be
// answered once the matching three-chain forms.
func TestThreeChainCommitFourReplicas(t *testing.T) {
	d := newTestDeployment(t, 4, 1)
	router := make(map[reactor.Addr]*reactor.Multiplex)

	var handles []reactor.Handle
	for i := 0; i < 4; i++ {
		addr := reactor.Replica(uint16(i))
		transport := &routedTransport{local: addr, router: router}
		mp := reactor.New(transport)
		router[addr] = mp
		ctx := reactor.Register[Message](mp, addr, Encode, nil)
		// emptyBlockEvery=2 lets the chain advance past the first
		// request-bearing block without a second client request, so the
		// three-chain can close.
		r := NewReplica(ctx, uint16(i), d.table, d.numFaulty, d.replicas[i], d.verifier, app.Echo{}, 2, nil)
		dec := reactor.Decoder[Message]{Decode: Decode, Verify: VerifyForReplica(d.verifier)}
		handles = append(handles, mp.Handle())
		go reactor.Run[Message](mp, r, dec)
	}

	clientAddr := reactor.Client(0)
	clientTransport := &routedTransport{local: clientAddr, router: router}
	clientMp := reactor.New(clientTransport)
	router[clientAddr] = clientMp
	clientCtx := reactor.Register[Message](clientMp, clientAddr, Encode, nil)
	client := NewClient(clientCtx, 0, d.client, d.table, d.numFaulty, 50*time.Millisecond, nil)
	clientDec := reactor.Decoder[Message]{Decode: Decode, Verify: VerifyForClient(d.verifier, 0)}
	clientHandle := clientMp.Handle()
	go reactor.Run[Message](clientMp, client, clientDec)

	defer func() {
		for _, h := range handles {
			h.Stop()
		}
		clientHandle.Stop()
	}()

	resultCh := make(chan []byte, 1)
	go func() { resultCh <- client.Invoke([]byte("hello")) }()

	select {
	case result := <-resultCh:
		if string(result) != "hello" {
			t.Fatalf("expected echoed result %q, got %q", "hello", result)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for three-chain commit to produce a client reply")
	}
}
