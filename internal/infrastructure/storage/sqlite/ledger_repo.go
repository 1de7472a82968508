package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// LedgerRepo is the trade history table: one row per trade, opened at entry
// and mutated exactly once on close. exit_time IS NULL is the external
// contract for "still open".
type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (lr *LedgerRepo) RecordOpen(ctx context.Context, e *model.LedgerEntry) error {
	now := time.Now().UnixMilli()
	_, err := lr.db.ExecContext(ctx, `
		INSERT INTO trade_history(
			token_address, symbol, entry_price, quantity, amount_base,
			entry_time, mode, open_ref, created_at, updated_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TokenAddress, e.Symbol, e.EntryPrice, e.Quantity, e.AmountBase,
		e.EntryTime.UnixMilli(), e.Mode, e.OpenRef, now, now)
	return err
}

func (lr *LedgerRepo) RecordClose(ctx context.Context, address string, profitPct float64, reason, closeRef string) error {
	now := time.Now().UnixMilli()
	res, err := lr.db.ExecContext(ctx, `
		UPDATE trade_history SET
			exit_time=?, profit_percent=?, exit_reason=?, close_ref=?, updated_at=?
		WHERE token_address=? AND exit_time IS NULL
	`, now, profitPct, reason, closeRef, now, address)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no open trade_history row for %s", address)
	}
	return nil
}

func (lr *LedgerRepo) OpenAddresses(ctx context.Context) ([]string, error) {
	rows, err := lr.db.QueryContext(ctx, `
		SELECT token_address FROM trade_history WHERE exit_time IS NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (lr *LedgerRepo) RecordTierStats(ctx context.Context, address string, tier int, highestPrice, stopPrice float64) error {
	_, err := lr.db.ExecContext(ctx, `
		INSERT INTO tier_stats(token_address, tier, highest_price, stop_price, created_at)
		VALUES(?, ?, ?, ?, ?)
	`, address, tier, highestPrice, stopPrice, time.Now().UnixMilli())
	return err
}

// GetEntry returns the most recent trade_history row for the token, used by
// tests and the reporting surface.
func (lr *LedgerRepo) GetEntry(ctx context.Context, address string) (*model.LedgerEntry, error) {
	row := lr.db.QueryRowContext(ctx, `
		SELECT token_address, symbol, entry_price, quantity, amount_base,
		       entry_time, mode, open_ref, exit_time, profit_percent, exit_reason, close_ref
		FROM trade_history
		WHERE token_address=?
		ORDER BY id DESC
		LIMIT 1
	`, address)

	var e model.LedgerEntry
	var entryMs int64
	var exitMs sql.NullInt64
	var profit sql.NullFloat64
	var reason, closeRef sql.NullString
	err := row.Scan(&e.TokenAddress, &e.Symbol, &e.EntryPrice, &e.Quantity, &e.AmountBase,
		&entryMs, &e.Mode, &e.OpenRef, &exitMs, &profit, &reason, &closeRef)
	if err != nil {
		return nil, err
	}
	e.EntryTime = time.UnixMilli(entryMs)
	if exitMs.Valid {
		t := time.UnixMilli(exitMs.Int64)
		e.ExitTime = &t
	}
	if profit.Valid {
		p := profit.Float64
		e.ProfitPercent = &p
	}
	e.ExitReason = reason.String
	e.CloseRef = closeRef.String
	return &e, nil
}

var _ port.Ledger = (*LedgerRepo)(nil)
