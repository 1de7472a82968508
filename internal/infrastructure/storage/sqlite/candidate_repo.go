package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// CandidateRepo serves the admission queue from the approved_tokens table,
// ranked by score then recency. Tokens with an open trade_history row are
// excluded, which keeps the source contract: never hand out a token that is
// currently held or closed-but-unsettled.
type CandidateRepo struct {
	db *sql.DB
}

func NewCandidateRepo(db *sql.DB) *CandidateRepo {
	return &CandidateRepo{db: db}
}

func (cr *CandidateRepo) Next(ctx context.Context) (*model.Candidate, error) {
	row := cr.db.QueryRowContext(ctx, `
		SELECT token_address, symbol, name, score, price_usd, liquidity, volume_24h
		FROM approved_tokens
		WHERE token_address NOT IN (
			SELECT token_address FROM trade_history WHERE exit_time IS NULL
		)
		ORDER BY score DESC, created_at DESC
		LIMIT 1
	`)

	var c model.Candidate
	err := row.Scan(&c.Address, &c.Symbol, &c.Name, &c.Score, &c.PriceUSD, &c.Liquidity, &c.Volume24h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Enqueue inserts or refreshes an approved token. The upstream filter writes
// through this; tests use it directly.
func (cr *CandidateRepo) Enqueue(ctx context.Context, c *model.Candidate) error {
	_, err := cr.db.ExecContext(ctx, `
		INSERT INTO approved_tokens(token_address, symbol, name, score, price_usd, liquidity, volume_24h, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token_address) DO UPDATE SET
		symbol=excluded.symbol, name=excluded.name, score=excluded.score,
		price_usd=excluded.price_usd, liquidity=excluded.liquidity, volume_24h=excluded.volume_24h
	`, c.Address, c.Symbol, c.Name, c.Score, c.PriceUSD, c.Liquidity, c.Volume24h, time.Now().UnixMilli())
	return err
}

var _ port.CandidateSource = (*CandidateRepo)(nil)
