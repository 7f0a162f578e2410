// Package config is the deployment configuration layer every
// cmd/hotline-* binary loads before bringing up a reactor.Multiplex,
// adapted from the source's node.Config (flat struct, DefaultConfig,
// ValidateConfig/validateAddr) and extended with the replica/client
// address table, ordered-multicast variant selector, and retransmission
// timeout this system's Open Questions leave to deployment choice.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MulticastVariant selects which of spec.md §4.1's two authentication
// schemes the sequencer and every replica are configured with.
type MulticastVariant string

const (
	VariantHalfSipHash MulticastVariant = "halfsiphash"
	VariantK256        MulticastVariant = "k256"
)

var allowedVariants = map[MulticastVariant]struct{}{
	VariantHalfSipHash: {},
	VariantK256:        {},
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// ReplicaEndpoint is one replica's network identity: its index into the
// address table, the UDP addresses it listens on for point-to-point
// messages and for the ordered-multicast group, its operator control
// surface address, and its public key (so every peer can build a
// crypto.Verifier from config alone, without a shared keystore).
type ReplicaEndpoint struct {
	Index       uint16 `json:"index"`
	BindAddr    string `json:"bind_addr"`
	MulticastIn string `json:"multicast_in"`
	ControlAddr string `json:"control_addr"`
	PubKeyHex   string `json:"pubkey_hex"`
}

// ClientEndpoint is one client's network identity.
type ClientEndpoint struct {
	Index       uint16 `json:"index"`
	BindAddr    string `json:"bind_addr"`
	ControlAddr string `json:"control_addr"`
}

// Config is the full configuration one process loads, covering both the
// ambient concerns node.Config already modelled (network name, data
// directory, log level) and the domain-specific address table, fault
// threshold, multicast variant, and master-secret hex this system adds.
type Config struct {
	Network  string `json:"network"`
	DataDir  string `json:"data_dir"`
	LogLevel string `json:"log_level"`

	Replicas  []ReplicaEndpoint `json:"replicas"`
	Clients   []ClientEndpoint  `json:"clients"`
	NumFaulty int               `json:"num_faulty"`

	MulticastGroupAddr string           `json:"multicast_group_addr"`
	Variant            MulticastVariant `json:"variant"`
	MasterSecretHex    string           `json:"master_secret_hex"`

	ResendTimeout   time.Duration `json:"resend_timeout"`
	EmptyBlockEvery int           `json:"empty_block_every"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".hotline"
	}
	return filepath.Join(home, ".hotline")
}

// DefaultConfig returns the four-replica, one-client, f=1 devnet shape
// spec.md §8's scenarios exercise, listening on loopback.
func DefaultConfig() Config {
	return Config{
		Network:  "devnet",
		DataDir:  DefaultDataDir(),
		LogLevel: "info",
		Replicas: []ReplicaEndpoint{
			{Index: 0, BindAddr: "127.0.0.1:17000", MulticastIn: "239.0.0.1:17100"},
			{Index: 1, BindAddr: "127.0.0.1:17001", MulticastIn: "239.0.0.1:17100"},
			{Index: 2, BindAddr: "127.0.0.1:17002", MulticastIn: "239.0.0.1:17100"},
			{Index: 3, BindAddr: "127.0.0.1:17003", MulticastIn: "239.0.0.1:17100"},
		},
		Clients:            []ClientEndpoint{{Index: 0, BindAddr: "127.0.0.1:17200"}},
		NumFaulty:          1,
		MulticastGroupAddr: "239.0.0.1:17100",
		Variant:            VariantHalfSipHash,
		ResendTimeout:      100 * time.Millisecond,
		EmptyBlockEvery:    0,
	}
}

// Validate checks every field for internal consistency, following the
// source's own style of one explicit check per field rather than a
// struct-tag validation library (none appears anywhere in the pack).
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}

	n := len(cfg.Replicas)
	if n == 0 {
		return errors.New("at least one replica is required")
	}
	if cfg.NumFaulty < 0 {
		return errors.New("num_faulty must be >= 0")
	}
	if n < 3*cfg.NumFaulty+1 {
		return fmt.Errorf("replica count %d does not satisfy n >= 3f+1 for f=%d", n, cfg.NumFaulty)
	}
	seen := make(map[uint16]struct{}, n)
	for _, r := range cfg.Replicas {
		if _, dup := seen[r.Index]; dup {
			return fmt.Errorf("duplicate replica index %d", r.Index)
		}
		seen[r.Index] = struct{}{}
		if err := validateAddr(r.BindAddr); err != nil {
			return fmt.Errorf("invalid replica %d bind_addr: %w", r.Index, err)
		}
		if err := validateAddr(r.MulticastIn); err != nil {
			return fmt.Errorf("invalid replica %d multicast_in: %w", r.Index, err)
		}
		if r.PubKeyHex != "" {
			if _, err := hex.DecodeString(r.PubKeyHex); err != nil {
				return fmt.Errorf("invalid replica %d pubkey_hex: %w", r.Index, err)
			}
		}
	}

	seenClients := make(map[uint16]struct{}, len(cfg.Clients))
	for _, c := range cfg.Clients {
		if _, dup := seenClients[c.Index]; dup {
			return fmt.Errorf("duplicate client index %d", c.Index)
		}
		seenClients[c.Index] = struct{}{}
		if err := validateAddr(c.BindAddr); err != nil {
			return fmt.Errorf("invalid client %d bind_addr: %w", c.Index, err)
		}
	}

	if err := validateAddr(cfg.MulticastGroupAddr); err != nil {
		return fmt.Errorf("invalid multicast_group_addr: %w", err)
	}
	if _, ok := allowedVariants[cfg.Variant]; !ok {
		return fmt.Errorf("invalid variant %q", cfg.Variant)
	}
	if cfg.MasterSecretHex != "" {
		b, err := hex.DecodeString(cfg.MasterSecretHex)
		if err != nil {
			return fmt.Errorf("invalid master_secret_hex: %w", err)
		}
		if len(b) != 32 {
			return fmt.Errorf("master_secret_hex must decode to 32 bytes, got %d", len(b))
		}
	}
	if cfg.ResendTimeout <= 0 {
		return errors.New("resend_timeout must be > 0")
	}
	if cfg.EmptyBlockEvery < 0 {
		return errors.New("empty_block_every must be >= 0")
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

// MasterSecret decodes MasterSecretHex, which Validate already confirmed
// is well-formed when non-empty.
func (c Config) MasterSecret() ([32]byte, error) {
	var out [32]byte
	if c.MasterSecretHex == "" {
		return out, errors.New("config: master_secret_hex not set")
	}
	b, err := hex.DecodeString(c.MasterSecretHex)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}
