package service

import (
	"testing"
	"time"

	"tokentrader/internal/domain/model"
)

func testTrailing() model.TrailingConfig {
	return model.TrailingConfig{
		ActivationThreshold: 12,
		Bands: []model.TierBand{
			{MinProfit: 12, MaxProfit: 30, Distance: 3},
			{MinProfit: 30, MaxProfit: 100, Distance: 5},
			{MinProfit: 100, MaxProfit: 300, Distance: 10},
			{MinProfit: 300, MaxProfit: 99999, Distance: 30},
		},
	}
}

func newTestPosition(entry float64) *model.Position {
	return model.NewPosition("0xabc", "TEST", entry, 1000, 0.15, 5, testTrailing(), time.Now())
}

func TestTrailingActivationAndRatchet(t *testing.T) {
	p := newTestPosition(1.00)

	// Below activation threshold: nothing moves.
	res := AdvanceTrailing(p, 1.05)
	if p.TrailingActive || res.Activated {
		t.Fatal("trailing should not activate at +5%")
	}
	if p.StopPrice != 0.95 {
		t.Errorf("fixed stop expected 0.95, got %v", p.StopPrice)
	}

	// +13% crosses the 12% threshold: tier 1, stop trails 3% off the peak.
	res = AdvanceTrailing(p, 1.13)
	if !res.Activated || !p.TrailingActive {
		t.Fatal("trailing should activate at +13%")
	}
	if p.Tier != 1 {
		t.Errorf("tier expected 1, got %d", p.Tier)
	}
	if !almostEqual(p.StopPrice, 1.0961) {
		t.Errorf("stop expected 1.0961, got %v", p.StopPrice)
	}

	// +35% promotes to tier 2, 5% distance.
	res = AdvanceTrailing(p, 1.35)
	if p.Tier != 2 {
		t.Errorf("tier expected 2, got %d", p.Tier)
	}
	if !almostEqual(p.StopPrice, 1.2825) {
		t.Errorf("stop expected 1.2825, got %v", p.StopPrice)
	}
	if !res.Changed {
		t.Error("promotion must report a change")
	}

	// Pullback to 1.20: tier and stop hold, highest price holds.
	res = AdvanceTrailing(p, 1.20)
	if p.Tier != 2 {
		t.Errorf("tier must not regress, got %d", p.Tier)
	}
	if !almostEqual(p.StopPrice, 1.2825) {
		t.Errorf("stop must hold at 1.2825 on pullback, got %v", p.StopPrice)
	}
	if p.HighestPrice != 1.35 {
		t.Errorf("highest price must hold at 1.35, got %v", p.HighestPrice)
	}
	if res.Changed {
		t.Error("quiet pullback must not report a change")
	}
	if !TrailingBreached(p) {
		t.Error("1.20 is below the 1.2825 stop, breach expected")
	}
}

func TestTrailingStopMonotone(t *testing.T) {
	p := newTestPosition(1.00)

	prices := []float64{1.13, 1.50, 1.10, 2.50, 1.80, 4.20, 1.15}
	lastStop := 0.0
	lastTier := 0
	for _, price := range prices {
		AdvanceTrailing(p, price)
		if p.StopPrice < lastStop {
			t.Fatalf("stop regressed from %v to %v at price %v", lastStop, p.StopPrice, price)
		}
		if p.Tier < lastTier {
			t.Fatalf("tier regressed from %d to %d at price %v", lastTier, p.Tier, price)
		}
		if p.HighestPrice < p.EntryPrice {
			t.Fatalf("highest price %v below entry", p.HighestPrice)
		}
		lastStop = p.StopPrice
		lastTier = p.Tier
	}
}

func TestTrailingBandBoundaries(t *testing.T) {
	// Exactly min_profit belongs to the band; exactly max_profit to the next.
	p := newTestPosition(1.00)
	AdvanceTrailing(p, 1.30)
	if p.Tier != 2 {
		t.Errorf("+30%% is the [30,100) band, tier expected 2, got %d", p.Tier)
	}

	p2 := newTestPosition(1.00)
	AdvanceTrailing(p2, 1.2999)
	if p2.Tier != 1 {
		t.Errorf("+29.99%% is the [12,30) band, tier expected 1, got %d", p2.Tier)
	}
}

func TestTrailingInactiveBelowThreshold(t *testing.T) {
	p := newTestPosition(1.00)
	AdvanceTrailing(p, 1.11)
	if p.TrailingActive {
		t.Fatal("11% is below the 12% threshold")
	}
	if TrailingBreached(p) {
		t.Fatal("breach is undefined while trailing is inactive")
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
