package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateIdentityThenShowPubkeyAgree(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "keys.db")
	kek := strings.Repeat("ab", 32)

	var genOut, errOut bytes.Buffer
	if code := run([]string{"generate-identity", "--store", store, "--label", "replica-0", "--kek-hex", kek}, &genOut, &errOut); code != 0 {
		t.Fatalf("generate-identity exited %d: %s", code, errOut.String())
	}
	generatedPub := strings.TrimSpace(genOut.String())

	var showOut bytes.Buffer
	if code := run([]string{"show-pubkey", "--store", store, "--label", "replica-0", "--kek-hex", kek}, &showOut, &errOut); code != 0 {
		t.Fatalf("show-pubkey exited %d: %s", code, errOut.String())
	}
	if strings.TrimSpace(showOut.String()) != generatedPub {
		t.Fatalf("show-pubkey reported %q, want %q", showOut.String(), generatedPub)
	}
}

func TestGenerateMasterProducesThirtyTwoBytes(t *testing.T) {
	dir := t.TempDir()
	store := filepath.Join(dir, "keys.db")
	kek := strings.Repeat("cd", 32)

	var out, errOut bytes.Buffer
	if code := run([]string{"generate-master", "--store", store, "--kek-hex", kek}, &out, &errOut); code != 0 {
		t.Fatalf("generate-master exited %d: %s", code, errOut.String())
	}
	if len(strings.TrimSpace(out.String())) != 64 {
		t.Fatalf("expected 64 hex chars (32 bytes), got %q", out.String())
	}
}

func TestMissingFlagsReportUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"generate-identity"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2 for missing flags, got %d", code)
	}
}

func TestUnknownSubcommandReportsUsageError(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("expected exit code 2 for an unknown subcommand, got %d", code)
	}
}
