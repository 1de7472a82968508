package port

import (
	"context"

	"tokentrader/internal/domain/model"
)

// SnapshotStore holds one durable, idempotently-overwritable record per open
// position. It is the sole crash-recovery path: on startup every snapshot is
// reconstructed into an in-memory position before the run loop starts.
type SnapshotStore interface {
	Save(ctx context.Context, p *model.Position) error
	Delete(ctx context.Context, address string) error
	LoadAll(ctx context.Context) ([]*model.Position, error)
}

// Ledger is the system of record for completed history. Open rows are
// mutated exactly once when the trade closes; exit_time IS NULL is the sole
// external predicate for "still open".
type Ledger interface {
	RecordOpen(ctx context.Context, e *model.LedgerEntry) error
	RecordClose(ctx context.Context, address string, profitPct float64, reason, closeRef string) error
	OpenAddresses(ctx context.Context) ([]string, error)
	RecordTierStats(ctx context.Context, address string, tier int, highestPrice, stopPrice float64) error
}

// CandidateSource is the ranked admission queue. Next must never return a
// token currently held or open in the ledger; it returns nil when the queue
// is empty.
type CandidateSource interface {
	Next(ctx context.Context) (*model.Candidate, error)
}

// EventPublisher pushes trade events to the reporting surface. Implementations
// must be loss-tolerant: a publish failure is logged, never propagated into
// engine state.
type EventPublisher interface {
	PublishTradeEvent(ctx context.Context, ev *model.TradeEvent) error
}

// ModeProvider returns the active trading mode. It is consulted every tick so
// operators can flip a running engine between paper and real.
type ModeProvider interface {
	Mode() string
}
