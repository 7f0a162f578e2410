// Package reactor implements the single-threaded, cooperatively-scheduled
// event multiplex every HotStuff participant runs on (spec.md §4.2):
// message dispatch, loopback delivery, the ordered-multicast receive path,
// and a timer facility engineered to never deliver a cancelled timer.
package reactor

import "fmt"

// addrKind distinguishes the fixed set of logical endpoints this system
// ever addresses (spec.md §4.2's static address table): replicas,
// clients, the ordered-multicast group, and the loopback-only upcall
// target used by internal self-messages.
type addrKind uint8

const (
	addrReplica addrKind = iota
	addrClient
	addrMulticast
	addrUpcall
	addrUnknownRemote
)

// Addr names one endpoint. The zero value equals Replica(0); build an
// Addr with Replica, Client, Multicast, or Upcall.
type Addr struct {
	kind  addrKind
	index uint16
}

func Replica(index uint16) Addr { return Addr{kind: addrReplica, index: index} }
func Client(index uint16) Addr  { return Addr{kind: addrClient, index: index} }

var (
	// Multicast addresses the ordered-multicast group as a single logical
	// destination; the transport fans it out to every registered replica.
	Multicast = Addr{kind: addrMulticast}
	// Upcall is never reachable over the network: sending to it only ever
	// produces a loopback delivery, used for a node talking to its own
	// application layer.
	Upcall = Addr{kind: addrUpcall}
	// UnknownRemote tags an inbound datagram's sender when the transport
	// has no logical Addr to attach (spec.md's replicas/clients identify
	// the remote through the message's own signed Identity, not through
	// network-layer peer address, so this is never itself a valid send
	// target — only ever seen as the `remote` parameter to Handle).
	UnknownRemote = Addr{kind: addrUnknownRemote}
)

func (a Addr) IsReplica() bool   { return a.kind == addrReplica }
func (a Addr) IsClient() bool    { return a.kind == addrClient }
func (a Addr) IsMulticast() bool { return a.kind == addrMulticast }
func (a Addr) IsUpcall() bool    { return a.kind == addrUpcall }

// Index returns the replica or client index. It panics for Multicast and
// Upcall, which carry no index.
func (a Addr) Index() uint16 {
	if a.kind != addrReplica && a.kind != addrClient {
		panic("reactor: Addr has no index")
	}
	return a.index
}

func (a Addr) String() string {
	switch a.kind {
	case addrReplica:
		return fmt.Sprintf("replica(%d)", a.index)
	case addrClient:
		return fmt.Sprintf("client(%d)", a.index)
	case addrMulticast:
		return "multicast"
	case addrUpcall:
		return "upcall"
	case addrUnknownRemote:
		return "unknown-remote"
	default:
		return "invalid"
	}
}

// toKind distinguishes the shapes a send destination can take.
type toKind uint8

const (
	toAddr toKind = iota
	toAddrs
	toAddrsWithLoopback
	toLoopback
)

// To is a send destination: one address, a set of addresses, a set of
// addresses that also loops back to the sender, or loopback alone.
type To struct {
	kind  toKind
	addr  Addr
	addrs []Addr
}

func ToAddr(a Addr) To                 { return To{kind: toAddr, addr: a} }
func ToAddrs(addrs []Addr) To          { return To{kind: toAddrs, addrs: addrs} }
func ToAddrsWithLoopback(addrs []Addr) To {
	return To{kind: toAddrsWithLoopback, addrs: addrs}
}

var ToLoopback = To{kind: toLoopback}

// Table is the static address table a deployment is configured with: the
// full replica and client address sets, used to build AllReplica-style
// destinations without each caller re-deriving them.
type Table struct {
	Replicas []Addr
	Clients  []Addr
}

// AllReplica addresses every replica, without looping back to the sender.
func (t Table) AllReplica() To { return ToAddrs(t.Replicas) }

// AllReplicaWithLoopback addresses every replica and also delivers a copy
// to the sender itself — the common case for a replica broadcasting a
// Generic it also needs to process locally.
func (t Table) AllReplicaWithLoopback() To { return ToAddrsWithLoopback(t.Replicas) }

func (t Table) NumReplica() int { return len(t.Replicas) }
func (t Table) NumClient() int  { return len(t.Clients) }
