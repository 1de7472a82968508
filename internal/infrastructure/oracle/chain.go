package oracle

import (
	"context"
	"errors"

	"tokentrader/internal/application/port"
)

// Chain tries each oracle in order and returns the first usable quote. Used
// to put the streaming cache in front of the REST oracle: cache misses and
// stale entries fall through to a pull request.
type Chain struct {
	oracles []port.PriceOracle
}

func NewChain(oracles ...port.PriceOracle) *Chain {
	out := make([]port.PriceOracle, 0, len(oracles))
	for _, o := range oracles {
		if o != nil {
			out = append(out, o)
		}
	}
	return &Chain{oracles: out}
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) Price(ctx context.Context, address string) (port.Quote, error) {
	var errs []error
	for _, o := range c.oracles {
		q, err := o.Price(ctx, address)
		if err == nil && q.PriceUSD > 0 {
			return q, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return port.Quote{}, errors.New("oracle chain: no oracles configured")
	}
	return port.Quote{}, errors.Join(errs...)
}

var _ port.PriceOracle = (*Chain)(nil)
