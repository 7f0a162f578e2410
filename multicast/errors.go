package multicast

import "errors"

var (
	// errNotAddressed signals "this copy's block is not for me" in
	// HalfSipHash mode. It is deliberately not exported as a panic-worthy
	// condition: see VerifyHalfSipHash.
	errNotAddressed = errors.New("multicast: datagram not addressed to this receiver")
	// errAuthFailed is a genuine cryptographic authentication failure
	// (spec.md §7, error kind 1): callers at the reactor boundary panic on it.
	errAuthFailed = errors.New("multicast: signature authentication failed")
)

func invalidConfig(reason string) error {
	return errors.New("multicast: " + reason)
}
