package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	hotlineconfig "github.com/hotline-consensus/hotline/config"
)

func TestDecodeKEKRejectsWrongLength(t *testing.T) {
	var kek [32]byte
	if err := decodeKEK(strings.Repeat("ab", 16), &kek); err == nil {
		t.Fatalf("expected an error for a 16-byte kek")
	}
}

func TestDecodeKEKAcceptsThirtyTwoBytes(t *testing.T) {
	var kek [32]byte
	if err := decodeKEK(strings.Repeat("ab", 32), &kek); err != nil {
		t.Fatalf("decodeKEK: %v", err)
	}
	if kek[0] != 0xab {
		t.Fatalf("kek not decoded correctly: %x", kek)
	}
}

func TestLoadConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	want := hotlineconfig.DefaultConfig()
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if got.Network != want.Network || len(got.Replicas) != len(want.Replicas) {
		t.Fatalf("loadConfig produced %+v, want %+v", got, want)
	}
}

func TestLoadConfigMissingFileIsAnError(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}

func TestReplicaControllerIsInert(t *testing.T) {
	var rc replicaController
	if err := rc.Task([]byte("anything")); err != nil {
		t.Fatalf("Task: %v", err)
	}
	if err := rc.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if rc.Benchmark() != nil {
		t.Fatalf("expected a nil Benchmark for a replica controller")
	}
}
