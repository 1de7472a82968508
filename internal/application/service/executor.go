package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// Executor orchestrates open and close settlement against the venue and keeps
// the ledger and snapshot store in step with engine state. In paper mode no
// venue call is made: a synthetic fill is recorded at the feed's last price.
//
// A settlement failure leaves the position open and unmodified; the next tick
// retries from scratch. The executor never retries settlement within a tick,
// to avoid duplicate spend authorization.
type Executor struct {
	venue     port.ExecutionVenue
	ledger    port.Ledger
	snapshots port.SnapshotStore
	events    port.EventPublisher // optional
	now       func() time.Time
}

func NewExecutor(venue port.ExecutionVenue, ledger port.Ledger, snapshots port.SnapshotStore, events port.EventPublisher) *Executor {
	return &Executor{
		venue:     venue,
		ledger:    ledger,
		snapshots: snapshots,
		events:    events,
		now:       time.Now,
	}
}

// OpenPosition commits capital to a candidate. In real mode the venue swap
// must settle before any state is written; in paper mode the fill is
// synthetic. On success the position exists in memory, in the snapshot store
// and as an open ledger row.
func (e *Executor) OpenPosition(ctx context.Context, mode string, c *model.Candidate, amountBase, stopLossPct float64, trailing model.TrailingConfig) (*model.Position, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("open %s: invalid candidate", c.Symbol)
	}

	var fill port.Fill
	switch mode {
	case model.ModeReal:
		var err error
		fill, err = e.venue.Open(ctx, c.Address, amountBase)
		if err != nil {
			return nil, fmt.Errorf("open settlement for %s: %w", c.Symbol, err)
		}
	default:
		// Paper fill: quantity implied by the candidate's quoted price.
		fill = port.Fill{
			Quantity:      amountBase / c.PriceUSD,
			SettlementRef: "paper-" + uuid.NewString(),
		}
	}

	pos := model.NewPosition(c.Address, c.Symbol, c.PriceUSD, fill.Quantity, amountBase, stopLossPct, trailing, e.now())

	entry := &model.LedgerEntry{
		TokenAddress: pos.TokenAddress,
		Symbol:       pos.Symbol,
		EntryPrice:   pos.EntryPrice,
		Quantity:     pos.Quantity,
		AmountBase:   pos.AmountBase,
		EntryTime:    pos.EntryTime,
		Mode:         mode,
		OpenRef:      fill.SettlementRef,
	}
	if err := e.ledger.RecordOpen(ctx, entry); err != nil {
		// The swap settled; state must survive even if history lags.
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("ledger open write failed")
	}
	if err := e.snapshots.Save(ctx, pos); err != nil {
		log.Error().Err(err).Str("symbol", pos.Symbol).Msg("snapshot write failed, retried on next state change")
	}

	log.Info().
		Str("mode", mode).
		Str("symbol", pos.Symbol).
		Float64("entry_price", pos.EntryPrice).
		Float64("amount_base", amountBase).
		Str("ref", fill.SettlementRef).
		Msg("position opened")

	e.publish(ctx, &model.TradeEvent{
		Type:         model.EventOpen,
		TokenAddress: pos.TokenAddress,
		Symbol:       pos.Symbol,
		Mode:         mode,
		Ts:           e.now().UnixMilli(),
	})
	return pos, nil
}

// ClosePosition settles a close and retires the position: ledger close row,
// snapshot deletion and removal from the caller's book happen together. The
// returned error means nothing was modified and the same close will be
// retried by a later tick.
func (e *Executor) ClosePosition(ctx context.Context, mode string, p *model.Position, reason string) error {
	profitPct := p.ProfitPercent()

	var fill port.Fill
	switch mode {
	case model.ModeReal:
		// Two-phase settlement: allowance first, then the swap. A failed
		// swap after a granted allowance still leaves the position open.
		if err := e.venue.Approve(ctx, p.TokenAddress); err != nil {
			log.Error().Err(err).Str("symbol", p.Symbol).Float64("profit_pct", profitPct).Msg("close approval failed")
			return fmt.Errorf("approve %s: %w", p.Symbol, err)
		}
		var err error
		fill, err = e.venue.Close(ctx, p.TokenAddress, p.Quantity)
		if err != nil {
			log.Error().Err(err).Str("symbol", p.Symbol).Float64("profit_pct", profitPct).Msg("close settlement failed")
			return fmt.Errorf("close settlement for %s: %w", p.Symbol, err)
		}
	default:
		fill = port.Fill{
			Quantity:      p.Quantity,
			ProceedsBase:  p.AmountBase * (1 + profitPct/100),
			SettlementRef: "paper-" + uuid.NewString(),
		}
	}

	if err := e.ledger.RecordClose(ctx, p.TokenAddress, profitPct, reason, fill.SettlementRef); err != nil {
		log.Error().Err(err).Str("symbol", p.Symbol).Msg("ledger close write failed")
	}
	if p.TrailingActive {
		if err := e.ledger.RecordTierStats(ctx, p.TokenAddress, p.Tier, p.HighestPrice, p.StopPrice); err != nil {
			log.Error().Err(err).Str("symbol", p.Symbol).Msg("tier stats write failed")
		}
	}
	if err := e.snapshots.Delete(ctx, p.TokenAddress); err != nil {
		log.Error().Err(err).Str("symbol", p.Symbol).Msg("snapshot delete failed")
	}

	log.Info().
		Str("mode", mode).
		Str("symbol", p.Symbol).
		Str("reason", reason).
		Float64("profit_pct", profitPct).
		Int("tier", p.Tier).
		Str("ref", fill.SettlementRef).
		Msg("position closed")

	e.publish(ctx, &model.TradeEvent{
		Type:          model.EventClose,
		TokenAddress:  p.TokenAddress,
		Symbol:        p.Symbol,
		Reason:        reason,
		ProfitPercent: profitPct,
		Tier:          p.Tier,
		Mode:          mode,
		Ts:            e.now().UnixMilli(),
	})
	return nil
}

// AnnounceTierPromotion emits the reporting event for a tier change.
// Observational only.
func (e *Executor) AnnounceTierPromotion(ctx context.Context, mode string, p *model.Position) {
	e.publish(ctx, &model.TradeEvent{
		Type:          model.EventTierPromotion,
		TokenAddress:  p.TokenAddress,
		Symbol:        p.Symbol,
		ProfitPercent: p.ProfitPercent(),
		Tier:          p.Tier,
		Mode:          mode,
		Ts:            e.now().UnixMilli(),
	})
}

func (e *Executor) publish(ctx context.Context, ev *model.TradeEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.PublishTradeEvent(ctx, ev); err != nil {
		log.Warn().Err(err).Str("type", ev.Type).Msg("trade event publish failed")
	}
}
