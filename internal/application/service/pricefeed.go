package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// Ratio bounds for the outlier guard: a quote implying more than 1000x gain
// or less than 0.001x of the entry price is a feed glitch, not a market move.
const (
	outlierUpperRatio = 1000.0
	outlierLowerRatio = 0.001
)

// PriceFeed wraps the external oracle with bounded retry and outlier
// rejection. A total fetch failure is returned to the caller, who must keep
// using the last known price; zero is never substituted.
type PriceFeed struct {
	oracle   port.PriceOracle
	maxTries uint
	delay    time.Duration
}

func NewPriceFeed(oracle port.PriceOracle, maxTries int, delay time.Duration) *PriceFeed {
	if maxTries <= 0 {
		maxTries = 3
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &PriceFeed{oracle: oracle, maxTries: uint(maxTries), delay: delay}
}

// Refresh fetches a current price for the position's token. On success it
// returns the accepted price: the fresh quote, or the last known good price
// when the quote fails the outlier guard. On total failure it returns an
// error and the position must be left untouched for this tick.
func (f *PriceFeed) Refresh(ctx context.Context, p *model.Position) (float64, error) {
	operation := func() (port.Quote, error) {
		q, err := f.oracle.Price(ctx, p.TokenAddress)
		if err != nil {
			return port.Quote{}, err
		}
		if q.PriceUSD <= 0 {
			return port.Quote{}, fmt.Errorf("non-positive quote %.12f", q.PriceUSD)
		}
		return q, nil
	}
	notify := func(err error, d time.Duration) {
		log.Warn().Err(err).Str("symbol", p.Symbol).Dur("backoff", d).Msg("price fetch retry")
	}

	quote, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(f.delay)),
		backoff.WithMaxTries(f.maxTries),
		backoff.WithNotify(notify))
	if err != nil {
		return 0, fmt.Errorf("price fetch for %s: %w", p.Symbol, err)
	}

	if p.EntryPrice > 0 {
		ratio := quote.PriceUSD / p.EntryPrice
		if ratio > outlierUpperRatio || ratio < outlierLowerRatio {
			log.Warn().
				Str("symbol", p.Symbol).
				Float64("entry", p.EntryPrice).
				Float64("quote", quote.PriceUSD).
				Float64("ratio", ratio).
				Msg("outlier price rejected, keeping last known")
			return p.CurrentPrice, nil
		}
	}
	return quote.PriceUSD, nil
}
