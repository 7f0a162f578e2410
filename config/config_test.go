package config

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejectsInsufficientReplicas(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Replicas = cfg.Replicas[:2] // n=2 cannot satisfy n >= 3f+1 for f=1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected rejection of a replica set too small for num_faulty")
	}
}

func TestValidateRejectsDuplicateReplicaIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Replicas[1].Index = cfg.Replicas[0].Index
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected rejection of duplicate replica index")
	}
}

func TestValidateRejectsBadVariant(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = "bogus"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected rejection of unknown multicast variant")
	}
}

func TestValidateRejectsShortMasterSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MasterSecretHex = "deadbeef"
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected rejection of a master secret that isn't 32 bytes")
	}
}

func TestMasterSecretRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MasterSecretHex = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	secret, err := cfg.MasterSecret()
	if err != nil {
		t.Fatalf("MasterSecret: %v", err)
	}
	if len(secret) != 32 {
		t.Fatalf("expected 32-byte secret")
	}
}
