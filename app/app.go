// Package app defines the pluggable replicated state machine every
// committed request is executed against (spec.md §1: "a pluggable App
// exposing execute(op) -> result", explicitly out of scope for the core
// itself but needed as a narrow collaborator contract to drive the
// hotstuff replica's commit path end to end).
package app

// App is deterministic: given the same sequence of operations, every
// correct replica must produce the same sequence of results. The
// hotstuff replica never calls Execute concurrently with itself (spec.md
// §5: single-threaded cooperative dispatch), so implementations need no
// internal locking.
type App interface {
	Execute(op []byte) []byte
}

// Echo is the reference App used by tests and the benchmark control
// plane's default configuration: it returns its input unchanged. Grounded
// on spec.md §8 scenario 3's "App = echo".
type Echo struct{}

func (Echo) Execute(op []byte) []byte {
	out := make([]byte, len(op))
	copy(out, op)
	return out
}
