package config

import (
	"encoding/hex"
	"fmt"
	"net"

	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/reactor"
)

// Table builds the static reactor.Table every Context/Replica/Client in a
// deployment shares, from this config's replica and client index lists.
func (c Config) Table() reactor.Table {
	var t reactor.Table
	for _, r := range c.Replicas {
		t.Replicas = append(t.Replicas, reactor.Replica(r.Index))
	}
	for _, cl := range c.Clients {
		t.Clients = append(t.Clients, reactor.Client(cl.Index))
	}
	return t
}

// Verifier builds a crypto.Verifier carrying every replica's public key
// listed in config, so any participant (replica or client) can verify
// signed Generic/Vote/Reply messages without its own keystore knowing
// about peers' key material.
func (c Config) Verifier() (*crypto.Verifier, error) {
	master, err := c.MasterSecret()
	if err != nil {
		return nil, err
	}
	v := crypto.NewVerifier(master)
	for _, r := range c.Replicas {
		if r.PubKeyHex == "" {
			return nil, fmt.Errorf("config: replica %d has no pubkey_hex configured", r.Index)
		}
		raw, err := hex.DecodeString(r.PubKeyHex)
		if err != nil {
			return nil, fmt.Errorf("config: replica %d pubkey_hex: %w", r.Index, err)
		}
		pub, err := crypto.PublicKeyFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("config: replica %d pubkey: %w", r.Index, err)
		}
		v.AddReplicaKey(r.Index, pub)
	}
	return v, nil
}

// ReplicaByIndex finds the endpoint entry for a given replica index.
func (c Config) ReplicaByIndex(index uint16) (ReplicaEndpoint, bool) {
	for _, r := range c.Replicas {
		if r.Index == index {
			return r, true
		}
	}
	return ReplicaEndpoint{}, false
}

// ClientByIndex finds the endpoint entry for a given client index.
func (c Config) ClientByIndex(index uint16) (ClientEndpoint, bool) {
	for _, cl := range c.Clients {
		if cl.Index == index {
			return cl, true
		}
	}
	return ClientEndpoint{}, false
}

// Resolver builds the Addr-to-network-address function reactor.UDPTransport
// needs, resolving every replica and client in config up front so a
// lookup at send time never fails on a malformed address.
func (c Config) Resolver() (func(reactor.Addr) *net.UDPAddr, error) {
	byAddr := make(map[reactor.Addr]*net.UDPAddr, len(c.Replicas)+len(c.Clients))
	for _, r := range c.Replicas {
		udpAddr, err := net.ResolveUDPAddr("udp", r.BindAddr)
		if err != nil {
			return nil, fmt.Errorf("config: resolve replica %d bind_addr: %w", r.Index, err)
		}
		byAddr[reactor.Replica(r.Index)] = udpAddr
	}
	for _, cl := range c.Clients {
		udpAddr, err := net.ResolveUDPAddr("udp", cl.BindAddr)
		if err != nil {
			return nil, fmt.Errorf("config: resolve client %d bind_addr: %w", cl.Index, err)
		}
		byAddr[reactor.Client(cl.Index)] = udpAddr
	}
	return func(addr reactor.Addr) *net.UDPAddr { return byAddr[addr] }, nil
}
