package port

import "context"

// Quote is a single price observation for a token.
type Quote struct {
	Address  string
	Symbol   string
	PriceUSD float64
	Ts       int64 // unix ms
}

// PriceOracle is the external best-effort price source. It can fail, return
// stale data, or disappear; callers own retry and outlier handling.
type PriceOracle interface {
	Name() string
	Price(ctx context.Context, address string) (Quote, error)
}
