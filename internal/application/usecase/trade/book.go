package trade

import (
	"context"
	"sort"

	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// Book is the in-memory set of open positions, owned exclusively by the run
// loop. No other goroutine ever touches it, so it carries no lock.
type Book struct {
	positions map[string]*model.Position
}

func NewBook() *Book {
	return &Book{positions: make(map[string]*model.Position)}
}

func (b *Book) Len() int { return len(b.positions) }

func (b *Book) Get(address string) *model.Position { return b.positions[address] }

func (b *Book) Has(address string) bool {
	_, ok := b.positions[address]
	return ok
}

func (b *Book) Add(p *model.Position) { b.positions[p.TokenAddress] = p }

func (b *Book) Remove(address string) { delete(b.positions, address) }

// Ordered returns positions sorted by token address: an arbitrary but stable
// per-tick evaluation order.
func (b *Book) Ordered() []*model.Position {
	out := make([]*model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out
}

// Recover rebuilds the book from the snapshot store. This is the sole
// recovery path after a crash; the ledger is not consulted because it may lag
// behind the last in-memory update.
func (b *Book) Recover(ctx context.Context, snapshots port.SnapshotStore) error {
	loaded, err := snapshots.LoadAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range loaded {
		b.positions[p.TokenAddress] = p
		log.Info().
			Str("symbol", p.Symbol).
			Float64("entry_price", p.EntryPrice).
			Float64("stop_price", p.StopPrice).
			Int("tier", p.Tier).
			Bool("trailing_active", p.TrailingActive).
			Msg("position recovered from snapshot")
	}
	if len(loaded) > 0 {
		log.Info().Int("count", len(loaded)).Msg("crash recovery complete")
	}
	return nil
}

// Reconcile cross-checks the recovered book against the ledger's open rows.
// Mismatches are a health signal only; the snapshot store stays authoritative
// for "is open" and the ledger for history.
func (b *Book) Reconcile(ctx context.Context, ledger port.Ledger) {
	open, err := ledger.OpenAddresses(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ledger reconciliation skipped")
		return
	}
	inLedger := make(map[string]struct{}, len(open))
	for _, addr := range open {
		inLedger[addr] = struct{}{}
		if !b.Has(addr) {
			log.Warn().Str("address", addr).Msg("ledger row open but no snapshot: position not recovered")
		}
	}
	for addr, p := range b.positions {
		if _, ok := inLedger[addr]; !ok {
			log.Warn().Str("address", addr).Str("symbol", p.Symbol).Msg("snapshot present but no open ledger row")
		}
	}
}

// Flush writes every position's snapshot, best effort. Used on shutdown and
// after loop-level faults.
func (b *Book) Flush(ctx context.Context, snapshots port.SnapshotStore) {
	for _, p := range b.positions {
		if err := snapshots.Save(ctx, p); err != nil {
			log.Error().Err(err).Str("symbol", p.Symbol).Msg("snapshot flush failed")
		}
	}
}
