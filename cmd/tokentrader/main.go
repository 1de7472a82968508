package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"tokentrader/internal/application/usecase/trade"
	"tokentrader/internal/infrastructure/config"
	"tokentrader/internal/infrastructure/logger"
	"tokentrader/internal/infrastructure/svc"
)

func main() {
	// Secrets come from the environment; .env is a development convenience.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env load failed")
	}

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("service context initialization failed")
	}
	defer func() { _ = sc.Close() }()

	deps := sc.BuildTradeServiceDeps()

	// Recover open positions from disk, then reconcile against trade history
	// before the first tick.
	if err := deps.Book.Recover(ctx, sc.Snapshots()); err != nil {
		log.Fatal().Err(err).Msg("position recovery failed")
	}
	deps.Book.Reconcile(ctx, sc.Ledger())

	engine := trade.NewService(deps)

	log.Info().
		Str("config", *configPath).
		Int("recovered_positions", deps.Book.Len()).
		Msg("tokentrader started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	if feed := sc.StreamFeed(); feed != nil {
		g.Go(func() error {
			return feed.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("engine exited")
	}
	log.Info().Msg("tokentrader stopped")
}
