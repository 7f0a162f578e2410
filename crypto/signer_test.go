package crypto

import "testing"

type testMessage struct {
	value uint32
}

func (m testMessage) WriteDigest(h *Hasher) { h.WriteUint32(m.value) }

func TestSignPrivateRequestRoundTrip(t *testing.T) {
	master := DefaultMasterSecret
	client := NewClientSigner(7, master)
	signed := SignPrivate(client, testMessage{value: 42})

	v := NewVerifier(master)
	if err := VerifyRequest(v, signed); err != nil {
		t.Fatalf("expected valid request MAC, got %v", err)
	}

	tampered := signed
	tampered.Inner.value = 43
	if err := VerifyRequest(v, tampered); err == nil {
		t.Fatalf("expected tampered request to fail verification")
	}
}

func TestSignPrivateForReplyRoundTrip(t *testing.T) {
	master := DefaultMasterSecret
	replicaPriv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	replica := NewReplicaSigner(0, replicaPriv, master)
	signed := SignPrivateFor(replica, 7, testMessage{value: 1})

	v := NewVerifier(master)
	if err := VerifyReply(v, 7, signed); err != nil {
		t.Fatalf("expected valid reply MAC, got %v", err)
	}
	if err := VerifyReply(v, 8, signed); err == nil {
		t.Fatalf("expected reply verification to fail for the wrong client")
	}
}

func TestSignPublicGenericVote(t *testing.T) {
	master := DefaultMasterSecret
	replicaPriv, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	replica := NewReplicaSigner(2, replicaPriv, master)
	signed := SignPublic(replica, testMessage{value: 99})

	v := NewVerifier(master)
	v.AddReplicaKey(2, replicaPriv.Public())
	if err := VerifyPublic(v, signed); err != nil {
		t.Fatalf("expected valid public signature, got %v", err)
	}

	v2 := NewVerifier(master) // no registered key for replica 2
	if err := VerifyPublic(v2, signed); err == nil {
		t.Fatalf("expected verification to fail without a registered key")
	}
}

func TestPlainSignatureAlwaysVerifies(t *testing.T) {
	v := NewVerifier(DefaultMasterSecret)
	signed := Signed[testMessage]{Inner: testMessage{value: 0}, Signature: PlainSignature(), From: ReplicaIdentity(0)}
	if err := VerifyPublic(v, signed); err != nil {
		t.Fatalf("plain signature (genesis sentinel) must verify unconditionally, got %v", err)
	}
}

func TestMACKeyDerivationIsDeterministicAndDistinctPerLabel(t *testing.T) {
	k1 := DeriveMACKey(DefaultMasterSecret, "a")
	k2 := DeriveMACKey(DefaultMasterSecret, "a")
	k3 := DeriveMACKey(DefaultMasterSecret, "b")
	if k1 != k2 {
		t.Fatalf("expected deterministic derivation for the same label")
	}
	if k1 == k3 {
		t.Fatalf("expected different labels to derive different keys")
	}
}

func TestPrivateKeyFromBytesRoundTrip(t *testing.T) {
	sk, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	sk2, err := PrivateKeyFromBytes(sk.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	digest := Sha256([]byte("hello"))
	sig, err := sk2.SignDigest(digest)
	if err != nil {
		t.Fatal(err)
	}
	if !sk.Public().VerifyDigest(digest, sig) {
		t.Fatalf("expected signature produced by reloaded key to verify against original public key")
	}
}
