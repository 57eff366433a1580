package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"wacgbridge/cmd/internal/nodeenv"
	"wacgbridge/config"
	"wacgbridge/core"
	"wacgbridge/core/events"
	"wacgbridge/observability"
	"wacgbridge/observability/logging"
	telemetry "wacgbridge/observability/otel"
	"wacgbridge/rpc"
	"wacgbridge/storage/archive"
)

const serviceName = "wacgd"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	initialise := flag.Bool("init", false, "Write the controller state from the Bridge section when the store is empty")
	flag.Parse()

	if err := run(*configFile, *initialise); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(configFile string, initialise bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env := cfg.Env
	if fromEnv := strings.TrimSpace(os.Getenv("WACG_ENV")); fromEnv != "" {
		env = fromEnv
	}
	logger, logCloser := logging.New(logging.Options{
		Service:    serviceName,
		Env:        env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	db, err := nodeenv.OpenDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer db.Close()
	if cfg.Storage == config.StorageMemory {
		logger.Warn("controller state is held in memory and lost on exit")
		initialise = true
	}

	arc, err := archive.Open(cfg.ArchivePath, logger)
	if err != nil {
		return fmt.Errorf("open event archive: %w", err)
	}
	defer arc.Close()

	eventMetrics := observability.Events()
	node, err := nodeenv.OpenNode(cfg, db, initialise,
		core.WithLogger(logger),
		core.WithMetrics(observability.Bridge()),
		core.WithEmitters(arc, eventMetrics),
	)
	if err != nil {
		return fmt.Errorf("open controller: %w", err)
	}
	stats, err := node.Stats()
	if err != nil {
		return fmt.Errorf("read controller stats: %w", err)
	}
	eventMetrics.SetSupply(events.TokenSupply{
		Total:        stats.TotalSupply,
		WrappedIn:    stats.TotalWrappedIn,
		UnwrappedOut: stats.TotalUnwrappedOut,
		Emergency:    stats.TotalEmergencyMinted,
		AdminBurned:  stats.TotalAdminBurned,
	})
	eventMetrics.SetPaused(stats.Paused)
	params, err := node.Params()
	if err != nil {
		return fmt.Errorf("read controller params: %w", err)
	}
	logger.Info("controller ready",
		slog.String("controller", params.Controller.Hex()),
		slog.Uint64("chain_id", params.ChainID),
		slog.String("outbound_mode", string(params.OutboundMode)),
		slog.Bool("paused", stats.Paused),
		slog.String("total_supply", stats.TotalSupply.String()))

	var seen rpc.SeenStore
	if cfg.Storage != config.StorageMemory {
		boltSeen, err := rpc.OpenBoltSeen(filepath.Join(cfg.DataDir, "rpc-seen.db"))
		if err != nil {
			return err
		}
		defer boltSeen.Close()
		seen = boltSeen
	}
	server, err := rpc.NewServer(rpc.Config{
		ListenAddress:      cfg.RPCAddress,
		RateLimitPerSecond: cfg.RPC.RateLimitPerSecond,
		Burst:              cfg.RPC.Burst,
		SignatureWindow:    time.Duration(cfg.RPC.SignatureWindowSeconds) * time.Second,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeoutSeconds) * time.Second,
		Seen:               seen,
	}, node, logger, observability.Bridge(), nil)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Run(groupCtx) })
	if addr := strings.TrimSpace(cfg.MetricsAddress); addr != "" {
		group.Go(func() error { return serveMetrics(groupCtx, addr, logger) })
	}
	err = group.Wait()
	if archiveErr := arc.Err(); archiveErr != nil {
		logger.Error("event archive reported failures", slog.Any("error", archiveErr))
	}
	logger.Info("shutdown complete")
	return err
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("metrics listening", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
