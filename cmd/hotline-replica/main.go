// Command hotline-replica runs one HotStuff replica (spec.md §4.3): it
// loads its identity from a keystore, its peers' public keys and address
// table from config, and serves both the reactor's UDP transport and the
// operator control surface (spec.md §6).
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotline-consensus/hotline/app"
	hotlineconfig "github.com/hotline-consensus/hotline/config"
	"github.com/hotline-consensus/hotline/control"
	"github.com/hotline-consensus/hotline/crypto"
	"github.com/hotline-consensus/hotline/hotstuff"
	"github.com/hotline-consensus/hotline/keystore"
	"github.com/hotline-consensus/hotline/reactor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a config.Config JSON file")
	index := flag.Uint("index", 0, "this replica's index")
	keystorePath := flag.String("keystore", "", "keystore db path")
	kekHex := flag.String("kek-hex", "", "AES-256 key-encrypting key (32 bytes hex) unlocking the keystore")
	flag.Parse()

	logger := slog.Default()
	if *configPath == "" || *keystorePath == "" || *kekHex == "" {
		fmt.Fprintln(os.Stderr, "usage: hotline-replica --config path --index N --keystore path --kek-hex hex")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("hotline-replica: load config", "error", err)
		return 1
	}
	if err := hotlineconfig.Validate(cfg); err != nil {
		logger.Error("hotline-replica: invalid config", "error", err)
		return 1
	}

	replicaIndex := uint16(*index)
	endpoint, ok := cfg.ReplicaByIndex(replicaIndex)
	if !ok {
		logger.Error("hotline-replica: index not present in config", "index", replicaIndex)
		return 1
	}

	var kek [32]byte
	if err := decodeKEK(*kekHex, &kek); err != nil {
		logger.Error("hotline-replica: kek-hex", "error", err)
		return 1
	}
	ks, err := keystore.Open(*keystorePath)
	if err != nil {
		logger.Error("hotline-replica: open keystore", "error", err)
		return 1
	}
	defer ks.Close()

	priv, err := ks.GetIdentityKey(fmt.Sprintf("replica-%d", replicaIndex), kek)
	if err != nil {
		logger.Error("hotline-replica: load identity key", "error", err)
		return 1
	}
	master, err := ks.GetMasterSecret(kek)
	if err != nil {
		logger.Error("hotline-replica: load master secret", "error", err)
		return 1
	}

	verifier, err := cfg.Verifier()
	if err != nil {
		logger.Error("hotline-replica: build verifier", "error", err)
		return 1
	}
	signer := crypto.NewReplicaSigner(replicaIndex, priv, master)
	table := cfg.Table()

	resolver, err := cfg.Resolver()
	if err != nil {
		logger.Error("hotline-replica: build address resolver", "error", err)
		return 1
	}

	mp := reactor.New(nil)
	transport, err := reactor.NewUDPTransport(mp, reactor.Replica(replicaIndex), endpoint.BindAddr, resolver)
	if err != nil {
		logger.Error("hotline-replica: bind UDP transport", "error", err)
		return 1
	}
	defer transport.Close()
	mp.SetTransport(transport)

	ctx := reactor.Register[hotstuff.Message](mp, reactor.Replica(replicaIndex), hotstuff.Encode, logger)
	replica := hotstuff.NewReplica(ctx, replicaIndex, table, cfg.NumFaulty, signer, verifier, app.Echo{}, cfg.EmptyBlockEvery, logger)
	dec := reactor.Decoder[hotstuff.Message]{Decode: hotstuff.Decode, Verify: hotstuff.VerifyForReplica(verifier)}

	handle := mp.Handle()
	go reactor.Run[hotstuff.Message](mp, replica, dec)

	var ctrl *control.Server
	if endpoint.ControlAddr != "" {
		ctrl = control.NewServer(endpoint.ControlAddr, replicaController{}, logger)
		go func() {
			if err := ctrl.ListenAndServe(); err != nil {
				logger.Error("hotline-replica: control server", "error", err)
			}
		}()
	}

	logger.Info("hotline-replica: running", "index", replicaIndex, "bind_addr", endpoint.BindAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("hotline-replica: shutting down")
	handle.Stop()
	if ctrl != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctrl.Shutdown(shutdownCtx)
	}
	return 0
}

func loadConfig(path string) (hotlineconfig.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return hotlineconfig.Config{}, err
	}
	defer f.Close()
	var cfg hotlineconfig.Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return hotlineconfig.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func decodeKEK(kekHex string, out *[32]byte) error {
	b, err := hex.DecodeString(kekHex)
	if err != nil {
		return err
	}
	if len(b) != 32 {
		return fmt.Errorf("kek-hex must decode to 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return nil
}

// replicaController answers the control surface for a replica. A replica
// has no per-run benchmark state of its own (only the client side does,
// per scripts/control/src/main.rs's BenchmarkClient/BenchmarkStats
// split), so Task and Reset are no-ops once the replica is already
// serving — both exist so the same four-route surface works uniformly
// whether the process is a replica or a client.
type replicaController struct{}

func (replicaController) Task(body []byte) error             { return nil }
func (replicaController) Reset() error                       { return nil }
func (replicaController) Benchmark() *control.BenchmarkStats { return nil }
