package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
	"tokentrader/internal/application/service"
	"tokentrader/internal/application/usecase/trade"
	"tokentrader/internal/infrastructure/config"
	"tokentrader/internal/infrastructure/oracle"
	"tokentrader/internal/infrastructure/oracle/dexhttp"
	"tokentrader/internal/infrastructure/oracle/stream"
	compositerepo "tokentrader/internal/infrastructure/storage/composite"
	postgresrepo "tokentrader/internal/infrastructure/storage/postgres"
	redisrepo "tokentrader/internal/infrastructure/storage/redis"
	"tokentrader/internal/infrastructure/storage/snapshot"
	sqliterepo "tokentrader/internal/infrastructure/storage/sqlite"
	"tokentrader/internal/infrastructure/venue/uniswap"
)

// ServiceContext owns every process-wide dependency. It is the single place
// where infrastructure is constructed, in dependency order, and torn down in
// reverse on shutdown.
type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	snapshots   *snapshot.Store
	sqliteRepo  *sqliterepo.Repo
	ledger      port.Ledger
	candidates  *sqliterepo.CandidateRepo
	redisClient *redisclient.Client
	events      port.EventPublisher

	oracle     port.PriceOracle
	streamFeed *stream.Feed // non-nil only when the ws oracle is configured
	venue      port.ExecutionVenue
	mode       *config.FileModeProvider

	closerChain []func() error
}

// New builds the full dependency graph. Any partial initialization is torn
// down before the error is returned.
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		mode:        config.NewFileModeProvider(cfg.App.ModeFile),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initStorage(); err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	if err := sc.initOracle(); err != nil {
		return fmt.Errorf("oracle initialization failed: %w", err)
	}
	if err := sc.initVenue(); err != nil {
		return fmt.Errorf("venue initialization failed: %w", err)
	}
	log.Info().Msg("✓ All components initialized")
	return nil
}

func (sc *ServiceContext) initStorage() error {
	store, err := snapshot.New(sc.Config.Snapshot.Dir)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	sc.snapshots = store
	log.Info().Str("dir", sc.Config.Snapshot.Dir).Msg("✓ Snapshot store initialized")

	repo, err := sqliterepo.New(sc.Config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo: %w", err)
	}
	sc.sqliteRepo = repo
	sc.candidates = sqliterepo.NewCandidateRepo(repo.GetDB())
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})
	log.Info().Str("path", sc.Config.SQLite.Path).Msg("✓ SQLite initialized")

	sqliteLedger := sqliterepo.NewLedgerRepo(repo.GetDB())
	sc.ledger = sqliteLedger

	if sc.Config.Postgres.Enabled {
		pg, err := postgresrepo.New(sc.Config.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("postgres repo: %w", err)
		}
		sc.closerChain = append(sc.closerChain, func() error {
			log.Info().Msg("closing postgres connection")
			return pg.Close()
		})
		// SQLite stays authoritative; postgres is a mirror for reporting.
		sc.ledger = compositerepo.New(sqliteLedger, pg)
		log.Info().Msg("✓ Postgres mirror initialized")
	}

	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	sc.redisClient = rdb
	sc.events = redisrepo.New(rdb, sc.Config.Redis.Prefix, sc.Config.Redis.Stream, sc.Config.Redis.Channel)
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initOracle wires the price sources: the streaming feed when a ws URL is
// configured, the HTTP client when an http URL is, and a fallback chain when
// both are.
func (sc *ServiceContext) initOracle() error {
	var oracles []port.PriceOracle

	if sc.Config.Oracle.WsURL != "" {
		feed := stream.New(sc.Config.Oracle.WsURL, time.Duration(sc.Config.Oracle.StaleAfterMs)*time.Millisecond)
		sc.streamFeed = feed
		oracles = append(oracles, feed)
		log.Info().Str("url", sc.Config.Oracle.WsURL).Msg("✓ Streaming oracle initialized")
	}
	if sc.Config.Oracle.HTTPURL != "" {
		oracles = append(oracles, dexhttp.New(sc.Config.Oracle.HTTPURL))
		log.Info().Str("url", sc.Config.Oracle.HTTPURL).Msg("✓ HTTP oracle initialized")
	}

	switch len(oracles) {
	case 0:
		return ErrNoOracle
	case 1:
		sc.oracle = oracles[0]
	default:
		sc.oracle = oracle.NewChain(oracles...)
	}
	return nil
}

// initVenue constructs the on-chain venue when a signing key is present.
// Without one the engine can still run paper mode; a real-mode settlement
// attempt fails loudly instead of panicking.
func (sc *ServiceContext) initVenue() error {
	if sc.Config.Venue.PrivateKey == "" {
		log.Warn().Msg("no private key configured, real-mode settlement disabled")
		sc.venue = unavailableVenue{}
		return nil
	}

	v, err := uniswap.New(sc.Ctx, uniswap.Config{
		RPCURL:          sc.Config.Venue.RPCURL,
		RouterAddress:   sc.Config.Venue.RouterAddress,
		WrappedNative:   sc.Config.Venue.WrappedNative,
		ChainID:         sc.Config.Venue.ChainID,
		PoolFee:         sc.Config.Venue.PoolFee,
		SlippagePercent: sc.Config.Venue.SlippagePercent,
		DeadlineSec:     sc.Config.Venue.DeadlineSec,
		PrivateKey:      sc.Config.Venue.PrivateKey,
	}, sc.oracle)
	if err != nil {
		return err
	}
	sc.venue = v
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing venue rpc connection")
		return v.Shutdown()
	})
	log.Info().Str("rpc", sc.Config.Venue.RPCURL).Msg("✓ Venue initialized")
	return nil
}

// StreamFeed returns the streaming oracle, nil when not configured. The
// caller runs its reconnect loop alongside the engine.
func (sc *ServiceContext) StreamFeed() *stream.Feed {
	return sc.streamFeed
}

// Snapshots exposes the recovery store for startup recovery.
func (sc *ServiceContext) Snapshots() *snapshot.Store {
	return sc.snapshots
}

// Ledger exposes the trade history port for startup reconciliation.
func (sc *ServiceContext) Ledger() port.Ledger {
	return sc.ledger
}

// BuildTradeServiceDeps assembles the complete dependency set for the run
// loop. Called once from main after New succeeds.
func (sc *ServiceContext) BuildTradeServiceDeps() trade.ServiceDeps {
	cfg := sc.Config

	feed := service.NewPriceFeed(sc.oracle, cfg.Oracle.RetryTries, time.Duration(cfg.Oracle.RetryDelayMs)*time.Millisecond)
	exec := service.NewExecutor(sc.venue, sc.ledger, sc.snapshots, sc.events)

	return trade.ServiceDeps{
		Book:       trade.NewBook(),
		Feed:       feed,
		Exec:       exec,
		Candidates: sc.candidates,
		Snapshots:  sc.snapshots,
		Mode:       sc.mode,

		Policy: service.TimeExitPolicy{
			StagnationHours:      cfg.TimeExit.StagnationHours,
			StagnationMinProfit:  cfg.TimeExit.StagnationMinProfit,
			LowMomentumHours:     cfg.TimeExit.LowMomentumHours,
			LowMomentumMinProfit: cfg.TimeExit.LowMomentumMinProfit,
			MaximumHours:         cfg.TimeExit.MaximumHours,
			EmergencyHours:       cfg.TimeExit.EmergencyHours,
		},
		Trailing:    cfg.TrailingConfig(),
		StopLossPct: cfg.Trading.StopLossPercent,

		MaxPositions:     cfg.Trading.MaxPositions,
		MaxTradesPerDay:  cfg.Trading.MaxTradesPerDay,
		PositionSizeBase: cfg.Trading.PositionSizeBase,
		TickInterval:     time.Duration(cfg.App.TickIntervalMs) * time.Millisecond,
		StatusEveryTicks: cfg.App.StatusEveryTicks,
	}
}

// Close releases all resources in reverse initialization order.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	return nil
}

// unavailableVenue rejects every settlement. Installed when no signing key
// is configured so paper mode keeps working.
type unavailableVenue struct{}

func (unavailableVenue) Open(context.Context, string, float64) (port.Fill, error) {
	return port.Fill{}, ErrVenueUnavailable
}

func (unavailableVenue) Approve(context.Context, string) error {
	return ErrVenueUnavailable
}

func (unavailableVenue) Close(context.Context, string, float64) (port.Fill, error) {
	return port.Fill{}, ErrVenueUnavailable
}
