package keystore

import (
	"path/filepath"
	"testing"

	"github.com/hotline-consensus/hotline/crypto"
)

func TestIdentityKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var kek [32]byte
	copy(kek[:], []byte("operator-supplied-passphrase-ke"))

	if err := s.PutIdentityKey("replica-0", priv, kek); err != nil {
		t.Fatalf("PutIdentityKey: %v", err)
	}

	got, err := s.GetIdentityKey("replica-0", kek)
	if err != nil {
		t.Fatalf("GetIdentityKey: %v", err)
	}
	if string(got.Bytes()) != string(priv.Bytes()) {
		t.Fatalf("round-tripped key does not match original")
	}
}

func TestIdentityKeyWrongPassphraseRejected(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var kek [32]byte
	copy(kek[:], []byte("operator-supplied-passphrase-ke"))
	if err := s.PutIdentityKey("client-0", priv, kek); err != nil {
		t.Fatalf("PutIdentityKey: %v", err)
	}

	var wrongKek [32]byte
	copy(wrongKek[:], []byte("a-completely-different-key-mate"))
	if _, err := s.GetIdentityKey("client-0", wrongKek); err == nil {
		t.Fatalf("expected failure unwrapping with the wrong passphrase-derived key")
	}
}

func TestMasterSecretRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var secret [32]byte
	copy(secret[:], []byte("hotstuff-devnet-master-secret-01"))
	var kek [32]byte
	copy(kek[:], []byte("operator-supplied-passphrase-ke"))

	if err := s.PutMasterSecret(secret, kek); err != nil {
		t.Fatalf("PutMasterSecret: %v", err)
	}
	got, err := s.GetMasterSecret(kek)
	if err != nil {
		t.Fatalf("GetMasterSecret: %v", err)
	}
	if got != secret {
		t.Fatalf("round-tripped master secret mismatch")
	}
}

func TestMissingRecordIsAnError(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "keys.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var kek [32]byte
	if _, err := s.GetIdentityKey("nonexistent", kek); err == nil {
		t.Fatalf("expected an error loading a label that was never stored")
	}
}
