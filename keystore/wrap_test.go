package keystore

import (
	"bytes"
	"testing"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	var kek [32]byte
	copy(kek[:], []byte("0123456789abcdef0123456789abcde"))

	key := []byte("thirty-two-byte-test-key-material")[:32]
	wrapped, err := wrapKey(kek[:], key)
	if err != nil {
		t.Fatalf("wrapKey: %v", err)
	}
	if len(wrapped) != len(key)+8 {
		t.Fatalf("wrapped length = %d, want %d", len(wrapped), len(key)+8)
	}

	got, err := unwrapKey(kek[:], wrapped)
	if err != nil {
		t.Fatalf("unwrapKey: %v", err)
	}
	if !bytes.Equal(got, key) {
		t.Fatalf("round-trip mismatch: got %x want %x", got, key)
	}
}

func TestUnwrapDetectsWrongKey(t *testing.T) {
	var kek [32]byte
	copy(kek[:], []byte("0123456789abcdef0123456789abcde"))
	var wrongKek [32]byte
	copy(wrongKek[:], []byte("fedcba9876543210fedcba9876543210"))

	key := make([]byte, 32)
	wrapped, err := wrapKey(kek[:], key)
	if err != nil {
		t.Fatalf("wrapKey: %v", err)
	}

	if _, err := unwrapKey(wrongKek[:], wrapped); err == nil {
		t.Fatalf("expected integrity failure with wrong key-encrypting key")
	}
}
