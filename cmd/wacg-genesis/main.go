package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wacgbridge/cmd/internal/nodeenv"
	"wacgbridge/config"
	"wacgbridge/core"
	"wacgbridge/native/bridge"
	"wacgbridge/observability/logging"
)

func main() {
	configPath := flag.String("config", "./config.toml", "Path to the configuration file")
	outPath := flag.String("out", "", "Deployment record path (default <DataDir>/deployment.yaml)")
	flag.Parse()

	logger := logging.Setup("wacg-genesis", strings.TrimSpace(os.Getenv("WACG_ENV")))
	if err := run(*configPath, *outPath, logger); err != nil {
		logger.Error("genesis failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath, outPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage == config.StorageMemory {
		return errors.New("genesis needs persistent storage; set Storage = \"leveldb\"")
	}
	params, err := cfg.BridgeParams()
	if err != nil {
		return fmt.Errorf("bridge parameters: %w", err)
	}
	db, err := nodeenv.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()

	node, err := core.InitNode(db, params, core.WithLogger(logger))
	if errors.Is(err, bridge.ErrAlreadyInitialised) {
		return fmt.Errorf("controller state already exists in %s", cfg.StatePath())
	}
	if err != nil {
		return fmt.Errorf("initialise controller: %w", err)
	}

	if outPath == "" {
		outPath = filepath.Join(cfg.DataDir, "deployment.yaml")
	}
	record := newDeployment(cfg.Bridge.Network, params, node.Metadata(), time.Now())
	record.StatePath = cfg.StatePath()
	if err := writeDeployment(outPath, record); err != nil {
		return err
	}
	logger.Info("controller initialised",
		slog.String("controller", record.Controller),
		slog.String("network", record.Network),
		slog.Uint64("chain_id", record.ChainID),
		slog.String("record", outPath))
	return nil
}
