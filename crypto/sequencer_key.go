package crypto

// DefaultSequencerKey is the devnet sequencer private key, the Go
// analogue of the Rust source's `include_bytes!("ordered_multicast_signing_key")`
// (src/context/ordered_multicast.rs). Production deployments should load
// a provisioned key from the keystore package instead; this exists so
// tests and devnets have a known-good key without a keystore on disk.
var DefaultSequencerKey = [32]byte{
	0x3e, 0x1c, 0x9d, 0x27, 0x6b, 0x4f, 0x81, 0x0a,
	0x5d, 0xc2, 0x44, 0x99, 0x7a, 0x6e, 0x0b, 0x53,
	0x1f, 0x8a, 0x2c, 0x96, 0x0d, 0x71, 0xe4, 0x38,
	0xb6, 0x05, 0xaf, 0x3d, 0x92, 0x1b, 0x77, 0x64,
}

// DefaultMasterSecret seeds the devnet HKDF master secret from which every
// private-signing and HalfSipHash MAC key is derived. A real deployment
// provisions this per-cluster via keystore rather than compiling it in.
var DefaultMasterSecret = [32]byte{
	0x9a, 0x01, 0x44, 0x2e, 0x5d, 0xb8, 0x73, 0xc1,
	0x2f, 0x60, 0xe9, 0x34, 0xab, 0x15, 0xd7, 0x4c,
	0x88, 0x3a, 0x6b, 0x0f, 0x52, 0xc4, 0x9e, 0x1d,
	0x67, 0xf0, 0x23, 0xb9, 0x4a, 0xd6, 0x81, 0x3e,
}
