package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gftdcojp/tng-client/internal/archive"
	"github.com/gftdcojp/tng-client/internal/config"
	"github.com/gftdcojp/tng-client/internal/logging"
	"github.com/gftdcojp/tng-client/internal/metrics"
	"github.com/gftdcojp/tng-client/internal/serve"
	"github.com/gftdcojp/tng-client/pkg/natsutil"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tng-gateway %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(cfg.Observability.Logging, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	defer logger.Sync()

	if err := run(cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("fatal error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := archive.Open(ctx, cfg, logger, archive.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	resolver, err := serve.NewResolver(a.Client, cfg.Gateway.NodeCacheSize, logger)
	if err != nil {
		return err
	}

	var nc *nats.Conn
	if cfg.Gateway.NATS.Enabled {
		nc, err = natsutil.Connect(cfg.Gateway.NATS, logger)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Gateway.HTTP.Enabled {
		g.Go(func() error {
			return serve.RunHTTP(gctx, cfg.Gateway.HTTP, resolver, logger.Named("api"))
		})
	}

	if nc != nil {
		g.Go(func() error {
			return serve.RunNATSResponder(gctx, nc, cfg.Gateway.NATS.SubjectPrefix, resolver, logger)
		})
	}

	if expiry := a.Expiry(cfg.Cache, logger.Named("lifecycle")); expiry != nil {
		g.Go(func() error { return expiry.Run(gctx, cfg.Cache.PruneInterval.Duration()) })
	}

	if cfg.Observability.Metrics.Enabled {
		g.Go(func() error { return metrics.RunServer(gctx, cfg.Observability.Metrics) })
	}

	if cfg.Observability.Health.Enabled {
		healthChecker := metrics.NewHealthChecker(nc, a.CacheStore(), a.S3)
		g.Go(func() error {
			return metrics.RunHealthServer(gctx, cfg.Observability.Health, healthChecker)
		})
	}

	mirror := "disabled"
	if a.S3 != nil {
		mirror = a.S3.Location()
	}
	logger.Info("tng-gateway started",
		zap.String("version", version),
		zap.String("base_url", a.Client.BaseURL()),
		zap.Bool("http", cfg.Gateway.HTTP.Enabled),
		zap.Bool("nats", nc != nil),
		zap.Bool("cache", a.Cache != nil),
		zap.Bool("memory_cache", a.Memory != nil),
		zap.String("mirror", mirror),
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutting down")
	return nil
}
