package crypto

import (
	"errors"
	"fmt"
)

// Invalid reports why a signature failed to verify (spec.md §7, error
// kinds 1 and 2). It is returned by library code; binaries at the reactor
// boundary turn it into a panic per the core's error-handling policy.
type Invalid struct {
	Private bool // true: symmetric MAC mismatch / signer identity unknown
	Reason  string
}

func (e *Invalid) Error() string {
	kind := "public"
	if e.Private {
		kind = "private"
	}
	return fmt.Sprintf("crypto: invalid %s signature: %s", kind, e.Reason)
}

// Unwrap exposes the matching sentinel so errors.Is can classify e.
func (e *Invalid) Unwrap() error {
	if e.Private {
		return ErrInvalidSignaturePrivate
	}
	return ErrInvalidSignaturePublic
}

var (
	// ErrInvalidSignaturePrivate is wrapped into Invalid{Private: true}.
	ErrInvalidSignaturePrivate = errors.New("invalid private signature")
	// ErrInvalidSignaturePublic is wrapped into Invalid{Private: false}.
	ErrInvalidSignaturePublic = errors.New("invalid public signature")
)

func invalidPrivate(reason string) *Invalid { return &Invalid{Private: true, Reason: reason} }
func invalidPublic(reason string) *Invalid  { return &Invalid{Private: false, Reason: reason} }

// Role distinguishes the three kinds of participants that ever sign a
// message in this system.
type Role uint8

const (
	RoleClient Role = iota
	RoleReplica
	RoleSequencer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleReplica:
		return "replica"
	case RoleSequencer:
		return "sequencer"
	default:
		return "unknown"
	}
}

// Identity tags a signer: client index, replica index, or the sequencer.
// Carrying it alongside a signature is what spec.md §1 calls "signer
// identity tagging".
type Identity struct {
	Role  Role
	Index uint16
}

func ClientIdentity(index uint16) Identity  { return Identity{Role: RoleClient, Index: index} }
func ReplicaIdentity(index uint16) Identity { return Identity{Role: RoleReplica, Index: index} }

// sigKind distinguishes a message's signing scheme. On the wire it is the
// one-byte tag MarshalBinary writes ahead of the signature body; Plain
// is only used for the synthetic genesis certificate (spec.md §3, "the
// genesis certificate is empty by convention").
type sigKind uint8

const (
	sigPlain sigKind = iota
	sigPrivate
	sigPublic
)

// Signature is the tagged union satisfied by every Signed[T]: either a
// 4-byte private MAC tag, a 64-byte public ECDSA signature, or Plain (the
// genesis sentinel).
type Signature struct {
	kind sigKind
	mac  [4]byte
	pub  [64]byte
}

func (s Signature) Kind() string {
	switch s.kind {
	case sigPlain:
		return "plain"
	case sigPrivate:
		return "private"
	case sigPublic:
		return "public"
	default:
		return "unknown"
	}
}

// PlainSignature is the placeholder signature on the genesis Generic: it
// is never verified, mirroring the Rust source's Signature::Plain on the
// synthetic genesis record.
func PlainSignature() Signature { return Signature{kind: sigPlain} }

// Signed pairs a message with its signature and the identity that
// produced it. The Go analogue of the Rust source's Signed<T> wrapper;
// Inner is never mutated once constructed (spec.md §3, "Ownership &
// lifecycle").
type Signed[T Digestible] struct {
	Inner     T
	Signature Signature
	From      Identity
}

// WriteDigest makes Signed[T] itself Digestible, so a Generic's
// certificate (a list of Signed[Vote]) can be folded into the Generic's
// own digest without any other package needing to reach into
// Signature's unexported fields. Grounded on the source's Signed<T>
// participating in bincode-derived digests the same way its Inner does.
func (s Signed[T]) WriteDigest(h *Hasher) {
	s.Inner.WriteDigest(h)
	h.WriteUint8(uint8(s.Signature.kind))
	h.WriteBytes(s.Signature.mac[:])
	h.WriteBytes(s.Signature.pub[:])
	h.WriteUint8(uint8(s.From.Role))
	h.WriteUint16(s.From.Index)
}

// Signer holds the key material one participant (a client, a replica, or
// the sequencer) uses to produce signatures. A Signer never verifies;
// that is the Verifier's job, keeping the sign/verify capability split
// the narrow interfaces spec.md's Design Notes call for.
type Signer struct {
	identity  Identity
	ecdsaPriv *PrivateKey // used for public signatures (replicas only)
	master    [32]byte    // master secret for deriving private-signing MAC keys
}

func NewClientSigner(index uint16, master [32]byte) *Signer {
	return &Signer{identity: ClientIdentity(index), master: master}
}

func NewReplicaSigner(index uint16, ecdsaPriv *PrivateKey, master [32]byte) *Signer {
	return &Signer{identity: ReplicaIdentity(index), ecdsaPriv: ecdsaPriv, master: master}
}

func (s *Signer) Identity() Identity { return s.identity }

func requestMACKey(master [32]byte, clientIndex uint16) MACKey {
	return DeriveMACKey(master, fmt.Sprintf("request-mac/client=%d", clientIndex))
}

func replyMACKey(master [32]byte, clientIndex uint16) MACKey {
	return DeriveMACKey(master, fmt.Sprintf("reply-mac/client=%d", clientIndex))
}

// SignPrivate signs a Request with the symmetric (fast,
// non-publicly-verifiable) scheme used by its issuing client (spec.md §3:
// "Signed by the issuing client"). Only clients call this; a replica
// signing a Reply must use SignPrivateFor, since the private scheme is
// pairwise and needs to know which client will verify it.
func SignPrivate[T Digestible](s *Signer, inner T) Signed[T] {
	if s.identity.Role != RoleClient {
		panic("crypto: SignPrivate is for client signers; replicas use SignPrivateFor")
	}
	digest := DigestOf(inner)
	key := requestMACKey(s.master, s.identity.Index)
	return Signed[T]{Inner: inner, Signature: Signature{kind: sigPrivate, mac: key.MAC(digest)}, From: s.identity}
}

// SignPrivateFor signs a Reply addressed to a specific client: the
// replica derives that client's reply-MAC key, since the private scheme
// is pairwise rather than broadcast-verifiable.
func SignPrivateFor[T Digestible](s *Signer, clientIndex uint16, inner T) Signed[T] {
	digest := DigestOf(inner)
	key := replyMACKey(s.master, clientIndex)
	return Signed[T]{Inner: inner, Signature: Signature{kind: sigPrivate, mac: key.MAC(digest)}, From: s.identity}
}

// SignPublic signs inner with ECDSA so any replica can verify it without
// a pairwise shared secret (spec.md §3: "Signed publicly (verifiable by
// all replicas)" — used for Generic and Vote).
func SignPublic[T Digestible](s *Signer, inner T) Signed[T] {
	if s.ecdsaPriv == nil {
		panic("crypto: signer has no ECDSA key for public signing")
	}
	digest := DigestOf(inner)
	sig, err := s.ecdsaPriv.SignDigest(digest)
	if err != nil {
		panic("crypto: ecdsa sign failed: " + err.Error())
	}
	return Signed[T]{Inner: inner, Signature: Signature{kind: sigPublic, pub: sig}, From: s.identity}
}

// signatureWireLen is the fixed-width wire encoding of a Signature: a
// 1-byte kind tag, the 4-byte private MAC slot, and the 64-byte public
// ECDSA slot, one of which is always zero-filled depending on kind. Fixed
// width keeps the reactor's hand-rolled message framing simple, the same
// tradeoff the ordered multicast envelope makes for its own header.
const signatureWireLen = 1 + 4 + 64

// MarshalBinary renders a Signature to its fixed-width wire form.
func (s Signature) MarshalBinary() []byte {
	buf := make([]byte, signatureWireLen)
	buf[0] = byte(s.kind)
	copy(buf[1:5], s.mac[:])
	copy(buf[5:69], s.pub[:])
	return buf
}

// UnmarshalSignature reconstructs a Signature from its wire form.
func UnmarshalSignature(buf []byte) (Signature, error) {
	if len(buf) != signatureWireLen {
		return Signature{}, fmt.Errorf("crypto: signature wire length %d, want %d", len(buf), signatureWireLen)
	}
	var s Signature
	s.kind = sigKind(buf[0])
	copy(s.mac[:], buf[1:5])
	copy(s.pub[:], buf[5:69])
	return s, nil
}

// Verifier holds what's needed to authenticate any signed message in the
// system: the shared master secret (to recompute private MAC keys) and
// the public key of every replica (for public signatures).
type Verifier struct {
	master      [32]byte
	replicaKeys map[uint16]*PublicKey
}

func NewVerifier(master [32]byte) *Verifier {
	return &Verifier{master: master, replicaKeys: make(map[uint16]*PublicKey)}
}

func (v *Verifier) AddReplicaKey(index uint16, pub *PublicKey) {
	v.replicaKeys[index] = pub
}

// VerifyRequest checks a client-signed Request's MAC.
func VerifyRequest[T Digestible](v *Verifier, s Signed[T]) error {
	if s.Signature.kind != sigPrivate {
		return invalidPrivate("expected private signature")
	}
	key := requestMACKey(v.master, s.From.Index)
	if key.MAC(DigestOf(s.Inner)) != s.Signature.mac {
		return invalidPrivate("request MAC mismatch")
	}
	return nil
}

// VerifyReply checks a replica-signed Reply's MAC, from the perspective
// of the client addressed by clientIndex.
func VerifyReply[T Digestible](v *Verifier, clientIndex uint16, s Signed[T]) error {
	if s.Signature.kind != sigPrivate {
		return invalidPrivate("expected private signature")
	}
	key := replyMACKey(v.master, clientIndex)
	if key.MAC(DigestOf(s.Inner)) != s.Signature.mac {
		return invalidPrivate("reply MAC mismatch")
	}
	return nil
}

// VerifyPublic checks an ECDSA-signed message (Generic or Vote) against
// the claimed signer's registered public key.
func VerifyPublic[T Digestible](v *Verifier, s Signed[T]) error {
	if s.Signature.kind != sigPlain {
		if s.Signature.kind != sigPublic {
			return invalidPublic("expected public signature")
		}
		pub, ok := v.replicaKeys[s.From.Index]
		if !ok {
			return invalidPublic(fmt.Sprintf("unknown replica index %d", s.From.Index))
		}
		if !pub.VerifyDigest(DigestOf(s.Inner), s.Signature.pub) {
			return invalidPublic("ecdsa verify failed")
		}
	}
	return nil
}

