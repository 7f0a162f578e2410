package crypto

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/hkdf"
)

// PrivateKey wraps a secp256k1 scalar. Signatures are produced with the
// standard library's crypto/ecdsa over the curve from btcec, the same
// secp256k1 family the bitcoin-lineage tooling in this corpus already
// depends on (spec.md §6: "ECDSA over the secp256k1 curve").
type PrivateKey struct {
	sk *ecdsa.PrivateKey
}

// PublicKey wraps the corresponding secp256k1 point.
type PublicKey struct {
	pk *ecdsa.PublicKey
}

// GenerateKey produces a fresh random key pair, used by devnet bring-up and
// tests. Production deployments load a provisioned key via keystore.
func GenerateKey() (*PrivateKey, error) {
	sk, err := ecdsa.GenerateKey(btcec.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{sk: sk}, nil
}

// PrivateKeyFromBytes loads a 32-byte big-endian scalar, the format the
// sequencer's key blob and keystore both use.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != 32 {
		return nil, errors.New("crypto: private key must be 32 bytes")
	}
	curve := btcec.S256()
	d := new(big.Int).SetBytes(b)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("crypto: private key out of range")
	}
	x, y := curve.ScalarBaseMult(b)
	return &PrivateKey{sk: &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}}, nil
}

func (k *PrivateKey) Bytes() []byte {
	out := make([]byte, 32)
	k.sk.D.FillBytes(out)
	return out
}

func (k *PrivateKey) Public() *PublicKey {
	return &PublicKey{pk: &k.sk.PublicKey}
}

// SignDigest produces a 64-byte compact (R||S, each big-endian, 32 bytes)
// ECDSA signature over digest. Callers that must match spec.md's wire
// layout (§6: "stored byte-reversed") are responsible for the reversal;
// this method always returns R||S in natural byte order.
func (k *PrivateKey) SignDigest(digest Digest) ([64]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, k.sk, digest[:])
	if err != nil {
		return [64]byte{}, err
	}
	var out [64]byte
	r.FillBytes(out[0:32])
	s.FillBytes(out[32:64])
	return out, nil
}

// VerifyDigest checks a 64-byte compact (R||S) signature.
func (k *PublicKey) VerifyDigest(digest Digest, sig [64]byte) bool {
	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	return ecdsa.Verify(k.pk, digest[:], r, s)
}

// PublicKeyFromBytes parses a compressed or uncompressed secp256k1 point.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	pk, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, err
	}
	return &PublicKey{pk: pk.ToECDSA()}, nil
}

func (k *PublicKey) Bytes() []byte {
	pub := btcec.NewPublicKey(k.pk.X, k.pk.Y)
	return pub.SerializeCompressed()
}

// MACKey is a shared 256-bit secret used for the "private" signing scheme
// (HMAC-SHA256, truncated) and for HalfSipHash-style multicast MACs.
//
// spec.md's Open Questions leave "the true MAC key management and
// per-replica key distribution" unspecified. This resolves it: every
// derived key comes from HKDF-SHA256 over one master secret, labelled by
// role and index, rather than a separately provisioned key per pair.
type MACKey [32]byte

// DeriveMACKey derives a labelled subkey from a master secret via
// HKDF-SHA256 (golang.org/x/crypto/hkdf), so the sequencer and every
// receiver can independently compute the same per-recipient key without
// exchanging anything beyond the shared master secret out of band.
func DeriveMACKey(master [32]byte, label string) MACKey {
	r := hkdf.New(sha256.New, master[:], nil, []byte(label))
	var out MACKey
	if _, err := io.ReadFull(r, out[:]); err != nil {
		panic("crypto: hkdf expand failed: " + err.Error())
	}
	return out
}

// MAC computes a truncated HMAC-SHA256 tag. HalfSipHash is specified as a
// placeholder "standard hash" in the source this core is grounded on
// (std::collections::hash_map::RandomState there); no siphash dependency
// appears anywhere in this corpus, so HMAC-SHA256/truncated — already a
// stdlib primitive used throughout the teacher's own crypto package — is
// the substitute, keeping the same "fast, symmetric, not collision-hard"
// shape the spec calls for.
func (k MACKey) MAC(payloadDigest Digest) [4]byte {
	mac := hmac.New(sha256.New, k[:])
	mac.Write(payloadDigest[:])
	sum := mac.Sum(nil)
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}
