// Command hotline-client runs one HotStuff client (spec.md §4.4): it
// loads the shared master secret from a keystore and the replica address
// table from config, then serves an operator control surface (spec.md
// §6) whose /task endpoint drives a benchmark run of repeated Invoke
// calls and whose /benchmark endpoint reports the resulting throughput
// and latency, following scripts/control/src/main.rs's BenchmarkClient
// role.
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
	"sync"
	"syscall"
	"time"

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
	index := flag.Uint("index", 0, "this client's index")
	keystorePath := flag.String("keystore", "", "keystore db path")
	kekHex := flag.String("kek-hex", "", "AES-256 key-encrypting key (32 bytes hex) unlocking the keystore")
	flag.Parse()

	logger := slog.Default()
	if *configPath == "" || *keystorePath == "" || *kekHex == "" {
		fmt.Fprintln(os.Stderr, "usage: hotline-client --config path --index N --keystore path --kek-hex hex")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("hotline-client: load config", "error", err)
		return 1
	}
	if err := hotlineconfig.Validate(cfg); err != nil {
		logger.Error("hotline-client: invalid config", "error", err)
		return 1
	}

	clientIndex := uint16(*index)
	endpoint, ok := cfg.ClientByIndex(clientIndex)
	if !ok {
		logger.Error("hotline-client: index not present in config", "index", clientIndex)
		return 1
	}

	var kek [32]byte
	if err := decodeKEK(*kekHex, &kek); err != nil {
		logger.Error("hotline-client: kek-hex", "error", err)
		return 1
	}
	ks, err := keystore.Open(*keystorePath)
	if err != nil {
		logger.Error("hotline-client: open keystore", "error", err)
		return 1
	}
	defer ks.Close()

	master, err := ks.GetMasterSecret(kek)
	if err != nil {
		logger.Error("hotline-client: load master secret", "error", err)
		return 1
	}

	signer := crypto.NewClientSigner(clientIndex, master)
	table := cfg.Table()

	resolver, err := cfg.Resolver()
	if err != nil {
		logger.Error("hotline-client: build address resolver", "error", err)
		return 1
	}

	mp := reactor.New(nil)
	transport, err := reactor.NewUDPTransport(mp, reactor.Client(clientIndex), endpoint.BindAddr, resolver)
	if err != nil {
		logger.Error("hotline-client: bind UDP transport", "error", err)
		return 1
	}
	defer transport.Close()
	mp.SetTransport(transport)

	ctx := reactor.Register[hotstuff.Message](mp, reactor.Client(clientIndex), hotstuff.Encode, logger)
	client := hotstuff.NewClient(ctx, clientIndex, signer, table, cfg.NumFaulty, cfg.ResendTimeout, logger)

	verifier, err := cfg.Verifier()
	if err != nil {
		logger.Error("hotline-client: build verifier", "error", err)
		return 1
	}
	dec := reactor.Decoder[hotstuff.Message]{Decode: hotstuff.Decode, Verify: hotstuff.VerifyForClient(verifier, clientIndex)}

	handle := mp.Handle()
	go reactor.Run[hotstuff.Message](mp, client, dec)

	bench := &benchmarkController{client: client}
	var ctrl *control.Server
	if endpoint.ControlAddr != "" {
		ctrl = control.NewServer(endpoint.ControlAddr, bench, logger)
		go func() {
			if err := ctrl.ListenAndServe(); err != nil {
				logger.Error("hotline-client: control server", "error", err)
			}
		}()
	}

	logger.Info("hotline-client: running", "index", clientIndex, "bind_addr", endpoint.BindAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("hotline-client: shutting down")
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

// benchTask is the JSON body /task expects: how many Invoke calls to run
// back to back, and what operation payload to submit each time.
type benchTask struct {
	Iterations int    `json:"iterations"`
	OpHex      string `json:"op_hex"`
}

// benchmarkController drives repeated hotstuff.Client.Invoke calls on
// /task and reports the resulting throughput and latency on /benchmark,
// mirroring scripts/control/src/main.rs's BenchmarkClient role (a
// replica has no equivalent state, see replicaController in
// cmd/hotline-replica).
type benchmarkController struct {
	client *hotstuff.Client

	mu    sync.Mutex
	stats *control.BenchmarkStats
}

func (b *benchmarkController) Task(body []byte) error {
	var task benchTask
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("decode task: %w", err)
	}
	if task.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive")
	}
	op := []byte("ping")
	if task.OpHex != "" {
		decoded, err := hex.DecodeString(task.OpHex)
		if err != nil {
			return fmt.Errorf("op_hex: %w", err)
		}
		op = decoded
	}

	start := time.Now()
	for i := 0; i < task.Iterations; i++ {
		b.client.Invoke(op)
	}
	elapsed := time.Since(start)

	stats := &control.BenchmarkStats{
		Throughput:       float64(task.Iterations) / elapsed.Seconds(),
		AverageLatencyNs: elapsed.Nanoseconds() / int64(task.Iterations),
	}
	b.mu.Lock()
	b.stats = stats
	b.mu.Unlock()
	return nil
}

func (b *benchmarkController) Reset() error {
	b.mu.Lock()
	b.stats = nil
	b.mu.Unlock()
	return nil
}

func (b *benchmarkController) Benchmark() *control.BenchmarkStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
