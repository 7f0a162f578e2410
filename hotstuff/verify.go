package hotstuff

import (
	"fmt"

	"github.com/hotline-consensus/hotline/chain"
	"github.com/hotline-consensus/hotline/crypto"
)

// VerifyForReplica returns a Decoder.Verify suitable for a replica's
// reactor registration: Request (client-signed), Generic and Vote
// (replica-signed, publicly verifiable). Grounded on hotstuff.rs's
// Verify<ReplicaIndex> impl for Message, which verifies a Generic's own
// signature and every vote in its certificate unless certified_digest is
// the genesis digest (the genesis certificate is empty by convention,
// spec.md §3).
func VerifyForReplica(v *crypto.Verifier) func(Message) error {
	return func(m Message) error {
		switch m.Kind {
		case kindRequest:
			return crypto.VerifyRequest(v, *m.Request)
		case kindGeneric:
			return verifyGeneric(v, *m.Generic)
		case kindVote:
			return crypto.VerifyPublic(v, *m.Vote)
		default:
			return fmt.Errorf("hotstuff: replica received unexpected message kind %d", m.Kind)
		}
	}
}

func verifyGeneric(v *crypto.Verifier, s crypto.Signed[Generic]) error {
	if err := crypto.VerifyPublic(v, s); err != nil {
		return err
	}
	if chain.IsGenesis(s.Inner.CertifiedDigest) {
		return nil
	}
	for _, vote := range s.Inner.Certificate {
		if err := crypto.VerifyPublic(v, vote); err != nil {
			return fmt.Errorf("hotstuff: generic certificate: %w", err)
		}
	}
	return nil
}

// VerifyForClient returns a Decoder.Verify suitable for a client's
// reactor registration: only Reply ever arrives there, verified against
// the client's own private reply-MAC key.
func VerifyForClient(v *crypto.Verifier, clientIndex uint16) func(Message) error {
	return func(m Message) error {
		if m.Kind != kindReply {
			return fmt.Errorf("hotstuff: client received unexpected message kind %d", m.Kind)
		}
		return crypto.VerifyReply(v, clientIndex, *m.Reply)
	}
}
