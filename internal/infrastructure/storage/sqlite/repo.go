package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS trade_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  token_address TEXT NOT NULL,
  symbol TEXT NOT NULL,
  entry_price REAL NOT NULL,
  quantity REAL NOT NULL,
  amount_base REAL NOT NULL,
  entry_time INTEGER NOT NULL,
  mode TEXT NOT NULL,
  open_ref TEXT NOT NULL DEFAULT '',
  exit_time INTEGER,
  profit_percent REAL,
  exit_reason TEXT,
  close_ref TEXT,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_history_token ON trade_history(token_address);
CREATE INDEX IF NOT EXISTS idx_trade_history_open ON trade_history(exit_time);

CREATE TABLE IF NOT EXISTS approved_tokens (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  token_address TEXT NOT NULL UNIQUE,
  symbol TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  score REAL NOT NULL DEFAULT 0,
  price_usd REAL NOT NULL DEFAULT 0,
  liquidity REAL NOT NULL DEFAULT 0,
  volume_24h REAL NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_approved_tokens_score ON approved_tokens(score);

CREATE TABLE IF NOT EXISTS tier_stats (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  token_address TEXT NOT NULL,
  tier INTEGER NOT NULL,
  highest_price REAL NOT NULL,
  stop_price REAL NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tier_stats_token ON tier_stats(token_address);
`)
	return err
}
