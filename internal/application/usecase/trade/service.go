package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
	"tokentrader/internal/application/service"
	"tokentrader/internal/domain/model"
)

// ServiceDeps carries everything the run loop needs. All collaborators are
// called synchronously from the single loop goroutine.
type ServiceDeps struct {
	Book       *Book
	Feed       *service.PriceFeed
	Exec       *service.Executor
	Candidates port.CandidateSource
	Snapshots  port.SnapshotStore
	Mode       port.ModeProvider

	Policy      service.TimeExitPolicy
	Trailing    model.TrailingConfig
	StopLossPct float64

	MaxPositions     int
	MaxTradesPerDay  int
	PositionSizeBase float64
	TickInterval     time.Duration
	StatusEveryTicks int
}

// Service is the single-threaded cooperative scheduler: one tick evaluates
// every open position and then tries to admit one new candidate.
type Service struct {
	deps ServiceDeps

	dailyTrades  int
	lastTradeDay time.Time
	metrics      Metrics
	tickCount    int

	now func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	if deps.TickInterval <= 0 {
		deps.TickInterval = time.Second
	}
	if deps.StatusEveryTicks <= 0 {
		deps.StatusEveryTicks = 10
	}
	return &Service{deps: deps, now: time.Now}
}

// Run drives the engine until ctx is cancelled. Cancellation is cooperative:
// the loop flushes all snapshots before returning.
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Book == nil || s.deps.Feed == nil || s.deps.Exec == nil {
		return errors.New("trade service misconfigured")
	}

	log.Info().
		Int("max_positions", s.deps.MaxPositions).
		Int("max_trades_per_day", s.deps.MaxTradesPerDay).
		Float64("stop_loss_pct", s.deps.StopLossPct).
		Float64("trailing_activation_pct", s.deps.Trailing.ActivationThreshold).
		Dur("tick", s.deps.TickInterval).
		Msg("trade loop started")

	ticker := time.NewTicker(s.deps.TickInterval)
	defer ticker.Stop()

	perfTicker := time.NewTicker(time.Hour)
	defer perfTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown requested, flushing snapshots")
			s.metrics.Log()
			// Flush with a fresh context: the loop context is already gone.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.deps.Book.Flush(flushCtx, s.deps.Snapshots)
			cancel()
			return ctx.Err()

		case <-perfTicker.C:
			s.metrics.Log()

		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one full evaluation pass. Faults in a single position never stop
// the others from being evaluated.
func (s *Service) tick(ctx context.Context) {
	mode := s.currentMode()
	s.tickCount++
	logStatus := s.tickCount%s.deps.StatusEveryTicks == 0

	for _, pos := range s.deps.Book.Ordered() {
		s.evaluate(ctx, mode, pos)
	}
	if logStatus {
		s.logStatus()
	}

	s.rollTradeDay()
	s.admit(ctx, mode)
}

// evaluate refreshes one position's price and applies the exit checks in
// fixed precedence: time-exit, stop-loss, trailing advance, trailing breach.
// The first verdict wins; nothing else is checked for this position this
// tick.
func (s *Service) evaluate(ctx context.Context, mode string, pos *model.Position) {
	price, err := s.deps.Feed.Refresh(ctx, pos)
	if err != nil {
		// Transient data error: keep prior state, no risk evaluation.
		log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("price refresh failed, skipping tick for position")
		return
	}
	pos.CurrentPrice = price

	now := s.now()
	profitPct := pos.ProfitPercent()

	// 1. Time exit.
	if exit, reason := s.deps.Policy.Evaluate(pos.HoursHeld(now), profitPct); exit {
		s.close(ctx, mode, pos, reason, exitTime)
		return
	}

	// 2. Fixed stop-loss.
	if profitPct <= -s.deps.StopLossPct {
		s.close(ctx, mode, pos, fmt.Sprintf("stop loss (%+.1f%%)", profitPct), exitStopLoss)
		return
	}

	// 3. Trailing advance; persist only when stop or tier moved.
	prevTier := pos.Tier
	res := service.AdvanceTrailing(pos, price)
	if res.Activated {
		log.Info().
			Str("symbol", pos.Symbol).
			Float64("profit_pct", pos.ProfitPercent()).
			Float64("price", pos.CurrentPrice).
			Msg("trailing activated")
	}
	if res.Changed {
		log.Info().
			Str("symbol", pos.Symbol).
			Int("tier", pos.Tier).
			Float64("stop_price", pos.StopPrice).
			Float64("highest_price", pos.HighestPrice).
			Float64("profit_pct", pos.ProfitPercent()).
			Msg("trailing advanced")
		if pos.Tier > prevTier {
			s.deps.Exec.AnnounceTierPromotion(ctx, mode, pos)
		}
		if err := s.deps.Snapshots.Save(ctx, pos); err != nil {
			// Persistence error: state stays in memory, retried on the next
			// change.
			log.Error().Err(err).Str("symbol", pos.Symbol).Msg("snapshot write failed")
		}
	}

	// 4. Trailing breach.
	if service.TrailingBreached(pos) {
		s.close(ctx, mode, pos, fmt.Sprintf("trailing tier %d", pos.Tier), exitTrailing)
	}
}

func (s *Service) close(ctx context.Context, mode string, pos *model.Position, reason string, kind exitKind) {
	if err := s.deps.Exec.ClosePosition(ctx, mode, pos, reason); err != nil {
		// Settlement error: position stays open and unmodified, retried by a
		// later tick.
		return
	}
	s.metrics.RecordExit(pos.ProfitPercent(), kind)
	s.deps.Book.Remove(pos.TokenAddress)
}

// admit pops one candidate when there is room under the position and daily
// trade caps. Price validity is checked before committing capital.
func (s *Service) admit(ctx context.Context, mode string) {
	if s.deps.Candidates == nil {
		return
	}
	if s.deps.Book.Len() >= s.deps.MaxPositions || s.dailyTrades >= s.deps.MaxTradesPerDay {
		return
	}

	c, err := s.deps.Candidates.Next(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("candidate fetch failed")
		return
	}
	if c == nil {
		return
	}
	if !c.Valid() {
		log.Warn().Str("symbol", c.Symbol).Str("address", c.Address).Msg("candidate with invalid price, skipped")
		return
	}
	if s.deps.Book.Has(c.Address) {
		// The source contract excludes held tokens; a hit here is a health
		// signal, not a fault.
		log.Warn().Str("symbol", c.Symbol).Msg("candidate already held, skipped")
		return
	}

	log.Info().
		Str("symbol", c.Symbol).
		Float64("price_usd", c.PriceUSD).
		Float64("liquidity", c.Liquidity).
		Float64("volume_24h", c.Volume24h).
		Float64("score", c.Score).
		Msg("candidate admitted")

	pos, err := s.deps.Exec.OpenPosition(ctx, mode, c, s.deps.PositionSizeBase, s.deps.StopLossPct, s.deps.Trailing)
	if err != nil {
		log.Error().Err(err).Str("symbol", c.Symbol).Msg("open failed")
		return
	}
	s.deps.Book.Add(pos)
	s.dailyTrades++
	log.Info().
		Int("positions", s.deps.Book.Len()).
		Int("max_positions", s.deps.MaxPositions).
		Int("trades_today", s.dailyTrades).
		Int("max_trades_per_day", s.deps.MaxTradesPerDay).
		Msg("trade budget")
}

func (s *Service) rollTradeDay() {
	today := s.now().Truncate(24 * time.Hour)
	if !today.Equal(s.lastTradeDay) {
		s.dailyTrades = 0
		s.lastTradeDay = today
		log.Info().Int("max_trades_per_day", s.deps.MaxTradesPerDay).Msg("new trading day")
	}
}

func (s *Service) currentMode() string {
	if s.deps.Mode == nil {
		return model.ModePaper
	}
	return s.deps.Mode.Mode()
}

func (s *Service) logStatus() {
	now := s.now()
	for _, p := range s.deps.Book.Ordered() {
		log.Info().
			Str("symbol", p.Symbol).
			Float64("profit_pct", p.ProfitPercent()).
			Float64("hours_held", p.HoursHeld(now)).
			Float64("stop_price", p.StopPrice).
			Int("tier", p.Tier).
			Bool("trailing_active", p.TrailingActive).
			Msg("position status")
	}
}
