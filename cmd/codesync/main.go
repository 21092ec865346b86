// Codesync keeps workspace codebases synchronized with a remote
// semantic indexing backend.
//
// It walks each configured workspace, builds a Merkle hash tree over
// the file tree, diffs it against remote-tracked state, and uploads
// only diverging file content — re-syncing on file saves, creations,
// deletions, and git state changes.
//
// Usage:
//
//	# Start the daemon with defaults
//	codesync
//
//	# Configure via environment
//	BACKEND_HOST=https://app.example.com BACKEND_API_KEY=... codesync
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codesync/internal/backend"
	"github.com/fyrsmithlabs/codesync/internal/config"
	"github.com/fyrsmithlabs/codesync/internal/fsx"
	"github.com/fyrsmithlabs/codesync/internal/indexer"
	"github.com/fyrsmithlabs/codesync/internal/logging"
	"github.com/fyrsmithlabs/codesync/internal/obfuscate"
	"github.com/fyrsmithlabs/codesync/internal/secrets"
	"github.com/fyrsmithlabs/codesync/internal/state"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			fmt.Printf("codesync %s (%s)\n", version, gitCommit)
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  codesync           Start the sync daemon\n")
			fmt.Fprintf(os.Stderr, "  codesync version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("codesync: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	secretStore, err := secrets.NewFileStore(filepath.Join(configDir, "secrets"))
	if err != nil {
		return fmt.Errorf("initializing secret store: %w", err)
	}

	stateStore, err := state.Open(filepath.Join(configDir, "state.json"))
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	ix := indexer.New(
		cfg.Sync,
		backend.NewClient(cfg.Backend),
		stateStore,
		fsx.OS{},
		obfuscate.New(secretStore),
		nil,
		logger,
	)

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	logger.Info("starting codesync",
		zap.String("version", version),
		zap.Strings("workspaces", cfg.Sync.Workspaces))

	if err := ix.Init(ctx); err != nil {
		return fmt.Errorf("initializing indexer: %w", err)
	}
	defer ix.Close()

	<-ctx.Done()
	logger.Info("codesync stopped")
	return nil
}

func serveMetrics(addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics endpoint failed", zap.Error(err))
	}
}
