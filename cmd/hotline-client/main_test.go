package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	hotlineconfig "github.com/hotline-consensus/hotline/config"
	"github.com/hotline-consensus/hotline/control"
)

func TestDecodeKEKRejectsWrongLength(t *testing.T) {
	var kek [32]byte
	if err := decodeKEK(strings.Repeat("ab", 16), &kek); err == nil {
		t.Fatalf("expected an error for a 16-byte kek")
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
	if len(got.Clients) != len(want.Clients) {
		t.Fatalf("loadConfig produced %+v, want %+v", got, want)
	}
}

func TestBenchmarkControllerRejectsZeroIterations(t *testing.T) {
	b := &benchmarkController{}
	if err := b.Task([]byte(`{"iterations":0}`)); err == nil {
		t.Fatalf("expected an error for zero iterations")
	}
}

func TestBenchmarkControllerReportsNilUntilARunCompletes(t *testing.T) {
	b := &benchmarkController{}
	if b.Benchmark() != nil {
		t.Fatalf("expected a nil benchmark before any /task runs")
	}
}

func TestBenchmarkControllerResetClearsStats(t *testing.T) {
	b := &benchmarkController{}
	b.mu.Lock()
	b.stats = &control.BenchmarkStats{Throughput: 1, AverageLatencyNs: 1}
	b.mu.Unlock()

	if err := b.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if b.Benchmark() != nil {
		t.Fatalf("expected Reset to clear stats")
	}
}
