package composite

import (
	"context"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// Ledger fans writes out to several ledgers. The first is primary: reads go
// to it alone, and its error is the one surfaced when multiple writes fail.
type Ledger struct {
	ledgers []port.Ledger
}

func New(ledgers ...port.Ledger) *Ledger {
	// nil ledgers are allowed; filter in constructor for safety
	out := make([]port.Ledger, 0, len(ledgers))
	for _, l := range ledgers {
		if l != nil {
			out = append(out, l)
		}
	}
	return &Ledger{ledgers: out}
}

func (c *Ledger) RecordOpen(ctx context.Context, e *model.LedgerEntry) error {
	var firstErr error
	for _, l := range c.ledgers {
		if err := l.RecordOpen(ctx, e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Ledger) RecordClose(ctx context.Context, address string, profitPct float64, reason, closeRef string) error {
	var firstErr error
	for _, l := range c.ledgers {
		if err := l.RecordClose(ctx, address, profitPct, reason, closeRef); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Ledger) OpenAddresses(ctx context.Context) ([]string, error) {
	if len(c.ledgers) == 0 {
		return nil, nil
	}
	return c.ledgers[0].OpenAddresses(ctx)
}

func (c *Ledger) RecordTierStats(ctx context.Context, address string, tier int, highestPrice, stopPrice float64) error {
	var firstErr error
	for _, l := range c.ledgers {
		if err := l.RecordTierStats(ctx, address, tier, highestPrice, stopPrice); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Ledger = (*Ledger)(nil)
