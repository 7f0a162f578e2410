// Command hotline-sequencer runs the trusted ordered-multicast stamping
// authority of spec.md §4.1: it receives client-originated datagrams on
// a UDP socket and re-emits sequencer-stamped copies to the multicast
// group, using the multicast package's Sequencer for the actual framing
// and authentication logic.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/multicast"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("hotline-sequencer", flag.ContinueOnError)
	listenAddr := fs.String("listen", "0.0.0.0:16000", "UDP address receiving client-originated datagrams")
	multicastAddr := fs.String("multicast-addr", "239.0.0.1:17100", "UDP multicast group address")
	variant := fs.String("variant", "halfsiphash", "halfsiphash or k256")
	numReplica := fs.Int("num-replica", 4, "replica count (halfsiphash variant)")
	masterSecretHex := fs.String("master-secret-hex", "", "32-byte hex HKDF master secret (halfsiphash variant)")
	privKeyHex := fs.String("priv-key-hex", "", "32-byte hex ECDSA private key (k256 variant)")
	linkEvery := fs.Int("link-every", 1, "emit a K256Linked datagram every N messages (k256 variant, 1 = sign every message)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	logger := slog.Default()
	seq, err := buildSequencer(*variant, *numReplica, *masterSecretHex, *privKeyHex, *linkEvery)
	if err != nil {
		logger.Error("hotline-sequencer: configure sequencer", "error", err)
		return 1
	}

	udpListen, err := net.ResolveUDPAddr("udp", *listenAddr)
	if err != nil {
		logger.Error("hotline-sequencer: resolve listen addr", "error", err)
		return 1
	}
	conn, err := net.ListenUDP("udp", udpListen)
	if err != nil {
		logger.Error("hotline-sequencer: listen", "error", err)
		return 1
	}
	defer conn.Close()

	udpGroup, err := net.ResolveUDPAddr("udp", *multicastAddr)
	if err != nil {
		logger.Error("hotline-sequencer: resolve multicast addr", "error", err)
		return 1
	}
	sendConn, err := net.DialUDP("udp", nil, udpGroup)
	if err != nil {
		logger.Error("hotline-sequencer: dial multicast group", "error", err)
		return 1
	}
	defer sendConn.Close()

	logger.Info("hotline-sequencer: listening", "listen", *listenAddr, "multicast", *multicastAddr, "variant", *variant)

	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			logger.Error("hotline-sequencer: read", "error", err)
			return 1
		}
		datagram := append([]byte(nil), buf[:n]...)
		stamped := seq.Process(datagram)
		for _, out := range stamped {
			if _, err := sendConn.Write(out); err != nil {
				logger.Error("hotline-sequencer: send", "error", err)
			}
		}
	}
}

func buildSequencer(variant string, numReplica int, masterSecretHex, privKeyHex string, linkEvery int) (*multicast.Sequencer, error) {
	switch variant {
	case "halfsiphash":
		if masterSecretHex == "" {
			return nil, fmt.Errorf("--master-secret-hex is required for the halfsiphash variant")
		}
		b, err := hex.DecodeString(masterSecretHex)
		if err != nil || len(b) != 32 {
			return nil, fmt.Errorf("--master-secret-hex must decode to 32 bytes")
		}
		var master [32]byte
		copy(master[:], b)
		return multicast.NewHalfSipHashSequencer(master, numReplica), nil
	case "k256":
		if privKeyHex == "" {
			return nil, fmt.Errorf("--priv-key-hex is required for the k256 variant")
		}
		b, err := hex.DecodeString(privKeyHex)
		if err != nil {
			return nil, fmt.Errorf("--priv-key-hex: %w", err)
		}
		priv, err := crypto.PrivateKeyFromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("--priv-key-hex: %w", err)
		}
		return multicast.NewK256Sequencer(priv, linkEvery), nil
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
}
