// Battled serves winner predictions for simulated battles between two named
// pokemon.
//
// At startup it loads a trained model and an attribute table (from a file or
// Redis), checks that their shapes agree, and serves the prediction API over
// HTTP until SIGINT or SIGTERM.
//
// Usage:
//
//	# Start the daemon
//	battled --config /etc/battled/config.yaml
//
//	# Override settings via environment
//	BATTLED_SERVER_HTTP_PORT=8080 battled
//
//	# Push a stats file into Redis for daemons using stats_source: redis
//	battled seed --config config.yaml --stats stats.json
//
//	# Show version information
//	battled version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/battled/internal/battle"
	"github.com/fyrsmithlabs/battled/internal/config"
	httpserver "github.com/fyrsmithlabs/battled/internal/http"
	"github.com/fyrsmithlabs/battled/internal/logging"
	"github.com/fyrsmithlabs/battled/internal/model"
	"github.com/fyrsmithlabs/battled/internal/stats"
	"github.com/fyrsmithlabs/battled/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion(os.Stdout)
			return
		case "seed":
			if err := runSeed(ctx, *configPath, args[1:], os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "seed: %v\n", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  battled [--config path]                  Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  battled [--config path] seed --stats f   Push a stats file into Redis\n")
			fmt.Fprintf(os.Stderr, "  battled version                          Show version information\n")
			os.Exit(1)
		}
	}

	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "battled: %v\n", err)
		os.Exit(1)
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "battled\n")
	fmt.Fprintf(w, "Version:    %s\n", version)
	fmt.Fprintf(w, "Commit:     %s\n", gitCommit)
	fmt.Fprintf(w, "Build Date: %s\n", buildDate)
}

// run starts battled and blocks until ctx is cancelled.
//
//  1. Loads and validates configuration
//  2. Initializes telemetry and the logger
//  3. Loads the model and the attribute table concurrently
//  4. Builds the resolver, which checks the two shapes agree
//  5. Serves HTTP until ctx is cancelled, then shuts down gracefully
//
// Any failure before step 5 returns without opening the listener.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		_ = tel.Shutdown(context.Background())
	}()

	logger, err := initLogger(cfg, tel)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded, continuing without export", zap.Error(h.LastErr))
	}

	logger.Info(ctx, "starting battled",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("stats_source", string(cfg.Snapshots.StatsSource)),
		zap.Bool("telemetry", tel.IsEnabled()),
	)

	store, scorer, err := loadSnapshots(ctx, cfg, logger)
	if err != nil {
		return err
	}

	resolver, err := battle.NewResolver(store, scorer, logger,
		battle.WithTracerProvider(tel.TracerProvider()))
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	srv, err := httpserver.NewServer(resolver,
		httpserver.Info{Entities: store.Len(), Model: scorer.Name()},
		logger,
		&httpserver.Config{
			Host:            cfg.Server.Host,
			Port:            cfg.Server.Port,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			RateLimit:       cfg.Server.RateLimit,
			RateBurst:       cfg.Server.RateBurst,
			MeterProvider:   tel.MeterProvider(),
		})
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	logger.Info(ctx, "snapshots loaded",
		zap.Int("entities", store.Len()),
		zap.Strings("columns", store.Columns()),
		zap.String("model", scorer.Name()),
		zap.Int("features", scorer.NumFeatures()),
	)

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info(context.Background(), "server shutdown complete")
	return nil
}

// initLogger builds the process logger. Logs are bridged to OTEL when
// telemetry is on.
func initLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logCfg.Output.OTEL = tel.IsEnabled()
	return logging.NewLogger(logCfg, tel.LoggerProvider())
}

// loadSnapshots loads the attribute table and the model in parallel.
func loadSnapshots(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stats.MemoryStore, model.Scorer, error) {
	var (
		store  *stats.MemoryStore
		scorer model.Scorer
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		scorer, err = model.LoadFile(cfg.Snapshots.ModelPath)
		return err
	})
	g.Go(func() error {
		var err error
		store, err = loadStats(gctx, cfg, logger)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return store, scorer, nil
}

func loadStats(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*stats.MemoryStore, error) {
	switch cfg.Snapshots.StatsSource {
	case config.SourceFile:
		return stats.LoadFile(cfg.Snapshots.StatsPath)
	case config.SourceRedis:
		client, err := stats.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		defer client.Close()

		logger.Info(ctx, "loading stats from redis",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("key_prefix", cfg.Redis.KeyPrefix),
			logging.Secret("password", cfg.Redis.Password),
		)
		return stats.LoadRedis(ctx, client, cfg.Redis.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown stats source %q", cfg.Snapshots.StatsSource)
	}
}

// runSeed pushes a stats file into Redis.
func runSeed(ctx context.Context, configPath string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	statsPath := fs.String("stats", "", "stats snapshot to upload (default: snapshots.stats_path)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}

	path := *statsPath
	if path == "" {
		path = cfg.Snapshots.StatsPath
	}
	if path == "" {
		return errors.New("--stats is required")
	}

	store, err := stats.LoadFile(path)
	if err != nil {
		return err
	}

	client, err := stats.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer client.Close()

	return seed(ctx, client, cfg.Redis.KeyPrefix, store, out)
}

func seed(ctx context.Context, client stats.RedisClient, prefix string, store *stats.MemoryStore, out io.Writer) error {
	written, removed, err := stats.SeedRedis(ctx, client, prefix, store)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d entities (%d columns) under %q, removed %d stale\n",
		written, store.Width(), prefix, removed)
	return nil
}
