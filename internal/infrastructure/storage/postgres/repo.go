package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// Repo mirrors the trade ledger into Postgres for the reporting surface. The
// local SQLite ledger stays authoritative; this mirror is write-only from the
// engine's point of view.
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS trade_history (
  id BIGSERIAL PRIMARY KEY,
  token_address TEXT NOT NULL,
  symbol TEXT NOT NULL,
  entry_price DOUBLE PRECISION NOT NULL,
  quantity DOUBLE PRECISION NOT NULL,
  amount_base DOUBLE PRECISION NOT NULL,
  entry_time BIGINT NOT NULL,
  mode TEXT NOT NULL,
  open_ref TEXT NOT NULL DEFAULT '',
  exit_time BIGINT,
  profit_percent DOUBLE PRECISION,
  exit_reason TEXT,
  close_ref TEXT,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_history_token ON trade_history(token_address);
CREATE INDEX IF NOT EXISTS idx_trade_history_open ON trade_history(exit_time);

CREATE TABLE IF NOT EXISTS tier_stats (
  id BIGSERIAL PRIMARY KEY,
  token_address TEXT NOT NULL,
  tier INT NOT NULL,
  highest_price DOUBLE PRECISION NOT NULL,
  stop_price DOUBLE PRECISION NOT NULL,
  created_at BIGINT NOT NULL
);
`)
	return err
}

func (r *Repo) RecordOpen(ctx context.Context, e *model.LedgerEntry) error {
	now := time.Now().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO trade_history(
			token_address, symbol, entry_price, quantity, amount_base,
			entry_time, mode, open_ref, updated_at
		) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.TokenAddress, e.Symbol, e.EntryPrice, e.Quantity, e.AmountBase,
		e.EntryTime.UnixMilli(), e.Mode, e.OpenRef, now)
	return err
}

func (r *Repo) RecordClose(ctx context.Context, address string, profitPct float64, reason, closeRef string) error {
	now := time.Now().UnixMilli()
	res, err := r.db.ExecContext(ctx, `
		UPDATE trade_history SET
			exit_time=$1, profit_percent=$2, exit_reason=$3, close_ref=$4, updated_at=$5
		WHERE token_address=$6 AND exit_time IS NULL
	`, now, profitPct, reason, closeRef, now, address)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no open trade_history row for %s", address)
	}
	return nil
}

func (r *Repo) OpenAddresses(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT token_address FROM trade_history WHERE exit_time IS NULL`)
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

func (r *Repo) RecordTierStats(ctx context.Context, address string, tier int, highestPrice, stopPrice float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tier_stats(token_address, tier, highest_price, stop_price, created_at)
		VALUES($1, $2, $3, $4, $5)
	`, address, tier, highestPrice, stopPrice, time.Now().UnixMilli())
	return err
}

var _ port.Ledger = (*Repo)(nil)
