package service

import (
	"tokentrader/internal/domain/model"
)

// TrailingResult reports what Advance did to a position. Changed is true only
// when the stop or tier actually moved, so callers can skip redundant
// snapshot writes on quiet ticks.
type TrailingResult struct {
	Stop      float64
	Tier      int
	Activated bool // trailing switched on during this call
	Changed   bool
}

// AdvanceTrailing ingests a new price into the position and recomputes the
// trailing stop. It is the only writer of HighestPrice, StopPrice, Tier and
// TrailingActive, and it maintains the ratchet: once trailing is active the
// stop only ever moves up, and the tier only ever increases.
//
// Tier selection uses entry-relative profit against the configured
// [min, max) bands; the tier's distance produces a candidate stop from the
// peak, and a candidate below the current stop is discarded. A pullback into
// a lower band can therefore never loosen or tighten protection past the
// level the peak earned.
func AdvanceTrailing(p *model.Position, newPrice float64) TrailingResult {
	res := TrailingResult{Stop: p.StopPrice, Tier: p.Tier}
	if p.EntryPrice <= 0 || newPrice <= 0 {
		return res
	}

	p.CurrentPrice = newPrice
	if newPrice > p.HighestPrice {
		p.HighestPrice = newPrice
	}

	profitPct := p.ProfitPercent()

	if !p.TrailingActive && profitPct >= p.Trailing.ActivationThreshold {
		p.TrailingActive = true
		res.Activated = true
	}
	if !p.TrailingActive {
		return res
	}

	if len(p.Trailing.Bands) == 0 {
		return res
	}

	tier := p.Tier
	for i, band := range p.Trailing.Bands {
		if profitPct >= band.MinProfit && profitPct < band.MaxProfit {
			if i+1 > tier {
				tier = i + 1
			}
			break
		}
	}

	// The distance follows the tier, not the instantaneous band: a pullback
	// into a lower band keeps the higher tier's distance, so the stop holds
	// at the level earned at the peak instead of tightening past it.
	distance := p.Trailing.Bands[0].Distance
	if tier > 0 && tier <= len(p.Trailing.Bands) {
		distance = p.Trailing.Bands[tier-1].Distance
	}

	candidate := p.HighestPrice * (1 - distance/100)
	stop := p.StopPrice
	if candidate > stop {
		stop = candidate
	}

	res.Changed = res.Activated || stop != p.StopPrice || tier != p.Tier
	p.StopPrice = stop
	p.Tier = tier
	res.Stop = stop
	res.Tier = tier
	return res
}

// TrailingBreached reports whether the current price has fallen to or below
// the trailing stop. Only meaningful once trailing is active; before that the
// fixed stop-loss owns the downside.
func TrailingBreached(p *model.Position) bool {
	return p.TrailingActive && p.CurrentPrice <= p.StopPrice
}
