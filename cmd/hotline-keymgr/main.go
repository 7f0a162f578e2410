// Command hotline-keymgr provisions and inspects keystore records,
// following the source's cmd/rubin-node keymgr subcommand tooling:
// flag.NewFlagSet per subcommand, a testable run(argv, stdout, stderr)
// int entry point, subcommand dispatch on argv[0].
package main

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/keystore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(argv []string, stdout, stderr io.Writer) int {
	if len(argv) < 1 {
		fmt.Fprintln(stderr, "usage: hotline-keymgr <generate-identity|generate-master|show-pubkey> [flags]")
		return 2
	}
	sub, subargv := argv[0], argv[1:]

	switch sub {
	case "generate-identity":
		return cmdGenerateIdentity(subargv, stdout, stderr)
	case "generate-master":
		return cmdGenerateMaster(subargv, stdout, stderr)
	case "show-pubkey":
		return cmdShowPubkey(subargv, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown subcommand %q\n", sub)
		return 2
	}
}

func parseKEK(kekHex string) ([32]byte, error) {
	var kek [32]byte
	b, err := hex.DecodeString(kekHex)
	if err != nil {
		return kek, fmt.Errorf("kek-hex: %w", err)
	}
	if len(b) != 32 {
		return kek, fmt.Errorf("kek-hex must decode to 32 bytes, got %d", len(b))
	}
	copy(kek[:], b)
	return kek, nil
}

// cmdGenerateIdentity generates a fresh ECDSA identity key, wraps it
// under --kek-hex, and stores it in the keystore under --label, printing
// the public key so it can be copied into every peer's config.
func cmdGenerateIdentity(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate-identity", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "keystore db path")
	label := fs.String("label", "", "identity label, e.g. replica-0 or client-0")
	kekHex := fs.String("kek-hex", "", "AES-256 key-encrypting key (32 bytes hex)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if *store == "" || *label == "" || *kekHex == "" {
		fmt.Fprintln(stderr, "missing required flags: --store --label --kek-hex")
		return 2
	}
	kek, err := parseKEK(*kekHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	priv, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintln(stderr, "generate key:", err)
		return 1
	}
	ks, err := keystore.Open(*store)
	if err != nil {
		fmt.Fprintln(stderr, "open keystore:", err)
		return 1
	}
	defer ks.Close()
	if err := ks.PutIdentityKey(*label, priv, kek); err != nil {
		fmt.Fprintln(stderr, "store identity key:", err)
		return 1
	}
	fmt.Fprintln(stdout, hex.EncodeToString(priv.Public().Bytes()))
	return 0
}

// cmdGenerateMaster generates a fresh HKDF master secret, wraps it under
// --kek-hex, and stores it in the keystore.
func cmdGenerateMaster(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate-master", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "keystore db path")
	kekHex := fs.String("kek-hex", "", "AES-256 key-encrypting key (32 bytes hex)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if *store == "" || *kekHex == "" {
		fmt.Fprintln(stderr, "missing required flags: --store --kek-hex")
		return 2
	}
	kek, err := parseKEK(*kekHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var secret [32]byte
	if _, err := io.ReadFull(cryptorand.Reader, secret[:]); err != nil {
		fmt.Fprintln(stderr, "generate master secret:", err)
		return 1
	}
	ks, err := keystore.Open(*store)
	if err != nil {
		fmt.Fprintln(stderr, "open keystore:", err)
		return 1
	}
	defer ks.Close()
	if err := ks.PutMasterSecret(secret, kek); err != nil {
		fmt.Fprintln(stderr, "store master secret:", err)
		return 1
	}
	fmt.Fprintln(stdout, hex.EncodeToString(secret[:]))
	return 0
}

// cmdShowPubkey unwraps a stored identity key and prints its public key,
// for confirming a keystore record matches what's in a deployment's config.
func cmdShowPubkey(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("show-pubkey", flag.ContinueOnError)
	fs.SetOutput(stderr)
	store := fs.String("store", "", "keystore db path")
	label := fs.String("label", "", "identity label, e.g. replica-0")
	kekHex := fs.String("kek-hex", "", "AES-256 key-encrypting key (32 bytes hex)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	if *store == "" || *label == "" || *kekHex == "" {
		fmt.Fprintln(stderr, "missing required flags: --store --label --kek-hex")
		return 2
	}
	kek, err := parseKEK(*kekHex)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ks, err := keystore.Open(*store)
	if err != nil {
		fmt.Fprintln(stderr, "open keystore:", err)
		return 1
	}
	defer ks.Close()
	priv, err := ks.GetIdentityKey(*label, kek)
	if err != nil {
		fmt.Fprintln(stderr, "load identity key:", err)
		return 1
	}
	fmt.Fprintln(stdout, hex.EncodeToString(priv.Public().Bytes()))
	return 0
}
