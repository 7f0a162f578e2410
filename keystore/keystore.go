// Package keystore is the at-rest key material store a deployment uses to
// provision replica and client identities (spec.md §6's "Open Questions:
// the true MAC key management and per-replica key distribution"). It
// persists AES-256-KW wrapped ECDSA private keys and the HKDF master
// secret in a bbolt database, following the bucket-per-kind layout the
// source's node/store/db.go uses for its own chain state, and the
// wrapped-JSON-record shape node/keymgr.go uses for its dev keystore CLI.
package keystore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hotline-consensus/hotline/crypto"
)

var (
	bucketIdentities = []byte("identities_by_label")
	bucketMaster     = []byte("master_secret")
)

const masterSecretKey = "hkdf-master"

// recordV1 is the on-disk shape of one wrapped private key, mirroring the
// source's KeyStoreV1 JSON keystore (Version/SuiteID/PubkeyHex/KeyIDHex/
// WrapAlg/WrappedSKHex) with a distinct version tag for this domain.
type recordV1 struct {
	Version       string `json:"version"`
	SuiteID       uint8  `json:"suite_id"`
	PubkeyHex     string `json:"pubkey_hex"`
	WrapAlg       string `json:"wrap_alg"`
	WrappedSKHex  string `json:"wrapped_sk_hex"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

const (
	recordVersion  = "HLKSv1"
	suiteSecp256k1 = uint8(1)
	wrapAlgAESKW   = "AES-256-KW"
)

// Store is a bbolt-backed key material store. All keys at rest are
// wrapped under a 256-bit key-encrypting key supplied by the caller
// (e.g. derived from an operator passphrase or supplied by a secrets
// manager); Store never sees or stores that key itself.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a keystore database at path, matching
// the source's Open(datadir, chainIDHex) shape but scoped to one file
// since keystore has no per-chain namespacing to do.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("keystore: open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketIdentities, bucketMaster} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutIdentityKey wraps priv under kek and stores it labelled (so a
// replica's key and a client's key never collide even if both happen to
// use index 0; label is typically "replica-3" or "client-0").
func (s *Store) PutIdentityKey(label string, priv *crypto.PrivateKey, kek [32]byte) error {
	wrapped, err := wrapKey(kek[:], priv.Bytes())
	if err != nil {
		return fmt.Errorf("keystore: wrap %s: %w", label, err)
	}
	rec := recordV1{
		Version:       recordVersion,
		SuiteID:       suiteSecp256k1,
		PubkeyHex:     hex.EncodeToString(priv.Public().Bytes()),
		WrapAlg:       wrapAlgAESKW,
		WrappedSKHex:  hex.EncodeToString(wrapped),
		CreatedAtUnix: 0,
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("keystore: marshal record for %s: %w", label, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdentities).Put([]byte(label), buf)
	})
}

// GetIdentityKey loads and unwraps the private key stored under label.
// It returns an error, never a zero key, if kek is wrong: unwrapKey's
// integrity check catches that before any forged key material could be
// handed back to a caller.
func (s *Store) GetIdentityKey(label string, kek [32]byte) (*crypto.PrivateKey, error) {
	rec, err := s.readRecord(bucketIdentities, label)
	if err != nil {
		return nil, err
	}
	if rec.WrapAlg != wrapAlgAESKW {
		return nil, fmt.Errorf("keystore: unsupported wrap algorithm %q for %s", rec.WrapAlg, label)
	}
	wrapped, err := hex.DecodeString(rec.WrappedSKHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: decode wrapped key for %s: %w", label, err)
	}
	skBytes, err := unwrapKey(kek[:], wrapped)
	if err != nil {
		return nil, fmt.Errorf("keystore: unwrap %s: %w", label, err)
	}
	priv, err := crypto.PrivateKeyFromBytes(skBytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: reconstruct key for %s: %w", label, err)
	}
	wantPub, err := hex.DecodeString(rec.PubkeyHex)
	if err != nil {
		return nil, fmt.Errorf("keystore: decode recorded pubkey for %s: %w", label, err)
	}
	if hex.EncodeToString(priv.Public().Bytes()) != hex.EncodeToString(wantPub) {
		return nil, fmt.Errorf("keystore: unwrapped key for %s does not match its recorded public key", label)
	}
	return priv, nil
}

// PutMasterSecret wraps and stores the HKDF master secret every replica
// and client derives its MAC subkeys from (crypto.DeriveMACKey).
func (s *Store) PutMasterSecret(secret [32]byte, kek [32]byte) error {
	wrapped, err := wrapKey(kek[:], secret[:])
	if err != nil {
		return fmt.Errorf("keystore: wrap master secret: %w", err)
	}
	rec := recordV1{
		Version:      recordVersion,
		SuiteID:      suiteSecp256k1,
		WrapAlg:      wrapAlgAESKW,
		WrappedSKHex: hex.EncodeToString(wrapped),
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("keystore: marshal master secret record: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMaster).Put([]byte(masterSecretKey), buf)
	})
}

func (s *Store) GetMasterSecret(kek [32]byte) ([32]byte, error) {
	var out [32]byte
	rec, err := s.readRecord(bucketMaster, masterSecretKey)
	if err != nil {
		return out, err
	}
	wrapped, err := hex.DecodeString(rec.WrappedSKHex)
	if err != nil {
		return out, fmt.Errorf("keystore: decode wrapped master secret: %w", err)
	}
	secret, err := unwrapKey(kek[:], wrapped)
	if err != nil {
		return out, fmt.Errorf("keystore: unwrap master secret: %w", err)
	}
	if len(secret) != 32 {
		return out, fmt.Errorf("keystore: unwrapped master secret has length %d, want 32", len(secret))
	}
	copy(out[:], secret)
	return out, nil
}

func (s *Store) readRecord(bucket []byte, key string) (recordV1, error) {
	var rec recordV1
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return recordV1{}, fmt.Errorf("keystore: read %s: %w", key, err)
	}
	if !found {
		return recordV1{}, fmt.Errorf("keystore: no record for %q", key)
	}
	if rec.Version != recordVersion {
		return recordV1{}, fmt.Errorf("keystore: record %q has unsupported version %q", key, rec.Version)
	}
	return rec, nil
}
