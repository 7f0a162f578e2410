package hotstuff

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hotline-consensus/hotline/chain"
	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/reactor"
)

// DefaultResendTimeout is the client's retransmission interval (spec.md
// §4.4: "default 100 ms").
const DefaultResendTimeout = 100 * time.Millisecond

type pendingInvoke struct {
	requestNum uint32
	op         []byte
	timerID    reactor.TimerID
	received   map[uint8][]byte
	done       chan []byte
}

// Client is the request/reply façade spec.md §4.4 describes: one
// in-flight operation at a time, retransmitted on a timer until f+1
// replicas report a matching result. Unlike Replica, Client is callable
// from outside the reactor's single dispatch goroutine (spec.md §5:
// "callable from external threads"), so its shared state is guarded by
// mu, held only across short critical sections; the continuation
// (Invoke's return) happens outside the lock.
type Client struct {
	context       *reactor.Context[Message]
	index         uint16
	table         reactor.Table
	numFaulty     int
	signer        *crypto.Signer
	resendTimeout time.Duration

	mu         sync.Mutex
	requestNum uint32
	inflight   *pendingInvoke

	logger *slog.Logger
}

// NewClient builds a Client. logger receives debug records for every
// request broadcast/retransmit and an info record each time an
// invocation completes (SPEC_FULL.md's Logging section); a nil logger
// defaults to slog.Default().
func NewClient(ctx *reactor.Context[Message], index uint16, signer *crypto.Signer, table reactor.Table, numFaulty int, resendTimeout time.Duration, logger *slog.Logger) *Client {
	if resendTimeout <= 0 {
		resendTimeout = DefaultResendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{context: ctx, index: index, table: table, numFaulty: numFaulty, signer: signer, resendTimeout: resendTimeout, logger: logger}
}

// Invoke submits op, blocking until f+1 replicas agree on a result
// (spec.md §4.4). It panics if another invocation is already in flight —
// the single-outstanding-invocation invariant is asserted, not silently
// serialized, because a caller that overlaps invocations has a bug.
func (c *Client) Invoke(op []byte) []byte {
	c.mu.Lock()
	if c.inflight != nil {
		c.mu.Unlock()
		panic("hotstuff: client: only one outstanding invocation is permitted")
	}
	c.requestNum++
	inv := &pendingInvoke{
		requestNum: c.requestNum,
		op:         op,
		received:   make(map[uint8][]byte),
		done:       make(chan []byte, 1),
	}
	c.inflight = inv
	c.mu.Unlock()

	c.broadcastRequest(inv)

	c.mu.Lock()
	inv.timerID = c.context.Set(c.resendTimeout)
	c.mu.Unlock()

	return <-inv.done
}

func (c *Client) broadcastRequest(inv *pendingInvoke) {
	req := chain.Request{ClientIndex: c.index, RequestNum: inv.requestNum, Op: inv.op}
	signed := crypto.SignPrivate(c.signer, req)
	c.logger.Debug("hotstuff: client: broadcast request", "index", c.index, "request_num", inv.requestNum)
	c.context.Send(c.table.AllReplica(), RequestMessage(signed))
}

// Handle is the reactor dispatch entry point: only Reply ever reaches a
// client (VerifyForClient rejects anything else at the decode boundary).
func (c *Client) Handle(receiver, remote reactor.Addr, message Message) {
	if message.Kind != kindReply {
		panic(fmt.Sprintf("hotstuff: client: unexpected message kind %d", message.Kind))
	}
	c.logger.Debug("hotstuff: client: handle", "index", c.index, "remote", remote)
	c.onReply(*message.Reply)
}

func (c *Client) HandleLoopback(receiver reactor.Addr, message Message) {}

// OnTimer re-broadcasts the current request unchanged and rearms the
// timer (spec.md §4.4). A stale timer id (left over from a completed or
// superseded invocation) is ignored.
func (c *Client) OnTimer(receiver reactor.Addr, id reactor.TimerID) {
	c.mu.Lock()
	inv := c.inflight
	if inv == nil || inv.timerID != id {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.broadcastRequest(inv)

	c.mu.Lock()
	if c.inflight == inv {
		inv.timerID = c.context.Set(c.resendTimeout)
	}
	c.mu.Unlock()
}

func (c *Client) OnPace() {}

// onReply merges one replica's reply into the current invocation's tally
// and completes it once f+1 replies agree (spec.md §4.4). More than f+1
// matching replies is asserted never to happen: it would mean more than
// f+1 correct replicas committed conflicting results, a safety violation
// this client treats as fatal rather than silently ignoring.
func (c *Client) onReply(s crypto.Signed[chain.Reply]) {
	c.mu.Lock()
	inv := c.inflight
	if inv == nil || s.Inner.RequestNum != inv.requestNum {
		c.mu.Unlock()
		return
	}
	if _, seen := inv.received[s.Inner.ReplicaIndex]; seen {
		c.mu.Unlock()
		return
	}
	inv.received[s.Inner.ReplicaIndex] = s.Inner.Result

	counts := make(map[string]int, len(inv.received))
	var best string
	bestCount := 0
	for _, result := range inv.received {
		key := string(result)
		counts[key]++
		if counts[key] > bestCount {
			bestCount = counts[key]
			best = key
		}
	}

	threshold := c.numFaulty + 1
	if bestCount > threshold {
		c.mu.Unlock()
		panic("hotstuff: client: more than f+1 matching replies received")
	}
	if bestCount < threshold {
		c.mu.Unlock()
		return
	}

	c.context.Unset(inv.timerID)
	c.inflight = nil
	done := inv.done
	c.mu.Unlock()

	c.logger.Info("hotstuff: client: invocation complete", "index", c.index, "request_num", s.Inner.RequestNum)
	done <- []byte(best)
}
