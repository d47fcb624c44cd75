package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hfi/pii-anonymizer/internal/audit"
	"github.com/hfi/pii-anonymizer/internal/config"
	"github.com/hfi/pii-anonymizer/internal/engine"
	"github.com/hfi/pii-anonymizer/internal/keys"
	"github.com/hfi/pii-anonymizer/internal/server"
	"github.com/hfi/pii-anonymizer/internal/storage"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("PII Anonymizer %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging.Level)
	logger.Info().
		Str("version", Version).
		Str("storage", cfg.Storage.Type).
		Msg("pii-anonymizer starting")

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing store")
		}
	}()

	keyProvider, err := keys.NewProvider(cfg.Hashing.Key, logger)
	if err != nil {
		return fmt.Errorf("hashing key: %w", err)
	}

	auditLog, err := audit.NewLogger(cfg.Audit)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer auditLog.Close()

	eng, err := engine.New(engine.Config{
		Keys:   keyProvider,
		Store:  store,
		TTL:    cfg.Storage.TTL.Std(),
		Logger: logger,
		Audit:  auditLog,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	srv := server.New(&server.Config{
		Addr:        cfg.Server.Addr,
		MetricsPath: cfg.Server.MetricsPath,
		HealthPath:  cfg.Server.HealthPath,
		Version:     Version,
	}, eng)
	srv.RegisterHealthCheck("store", func() (bool, string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := store.Stats(ctx); err != nil {
			return false, err.Error()
		}
		return true, "connected"
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr()).Msg("ops server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepLoop(sweepCtx, eng, cfg.Sweep.Interval.Std(), logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	}

	stopSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn().Err(err).Msg("ops server shutdown")
	}

	return nil
}

// sweepLoop purges expired mappings on a fixed interval. A zero or
// negative interval disables sweeping; expired rows still become
// invisible via lazy expiry on read.
func sweepLoop(ctx context.Context, eng *engine.Engine, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		logger.Info().Msg("expiry sweep disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := eng.CleanupExpiredMappings(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if purged > 0 {
				logger.Info().Int("purged", purged).Msg("expired mappings purged")
			}
		}
	}
}

func openStore(cfg *config.Config) (storage.MappingStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "bolt":
		return storage.NewBoltStore(cfg.Storage.Path)
	case "redis":
		return storage.NewRedisStore(cfg.Storage.Redis.Address, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
