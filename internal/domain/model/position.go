package model

import "time"

// TierBand maps an entry-relative profit range [MinProfit, MaxProfit) to the
// trailing distance used while profit sits inside that range. Bands are
// ordered by MinProfit; higher bands carry tighter protection relative to the
// peak only through the ratchet, the distance itself may be wider.
type TierBand struct {
	MinProfit float64 `json:"min_profit" toml:"min_profit"`
	MaxProfit float64 `json:"max_profit" toml:"max_profit"`
	Distance  float64 `json:"distance" toml:"distance"`
}

// TrailingConfig is the trailing-stop configuration snapshotted into a
// position when it opens. Changing the live config never retroactively
// affects positions already holding a snapshot.
type TrailingConfig struct {
	ActivationThreshold float64    `json:"activation_threshold" toml:"activation_threshold"`
	Bands               []TierBand `json:"bands" toml:"bands"`
}

// Position is one open trade, keyed by token address. The engine never holds
// two concurrent positions in the same token.
//
// Invariants maintained by the trailing engine:
//   - StopPrice never decreases once TrailingActive is true
//   - Tier never decreases
//   - HighestPrice >= EntryPrice, updated before any stop recomputation
type Position struct {
	TokenAddress string    `json:"token_address"`
	Symbol       string    `json:"symbol"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	HighestPrice float64   `json:"highest_price"`
	Quantity     float64   `json:"quantity"`
	AmountBase   float64   `json:"amount_base"` // base currency committed at entry
	EntryTime    time.Time `json:"entry_time"`

	StopPrice      float64        `json:"stop_price"`
	Tier           int            `json:"tier"`
	TrailingActive bool           `json:"trailing_active"`
	Trailing       TrailingConfig `json:"trailing_config"`
}

// NewPosition creates a freshly opened position with the initial fixed
// stop-loss below entry and the trailing mechanism still dormant.
func NewPosition(address, symbol string, entryPrice, quantity, amountBase float64, stopLossPct float64, trailing TrailingConfig, entryTime time.Time) *Position {
	return &Position{
		TokenAddress: address,
		Symbol:       symbol,
		EntryPrice:   entryPrice,
		CurrentPrice: entryPrice,
		HighestPrice: entryPrice,
		Quantity:     quantity,
		AmountBase:   amountBase,
		EntryTime:    entryTime,
		StopPrice:    entryPrice * (1 - stopLossPct/100),
		Tier:         0,
		Trailing:     trailing,
	}
}

// ProfitPercent returns current profit relative to entry. Zero entry price is
// treated as zero profit so a corrupt record cannot poison the math.
func (p *Position) ProfitPercent() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}

// HoursHeld returns elapsed holding time at now, in hours.
func (p *Position) HoursHeld(now time.Time) float64 {
	return now.Sub(p.EntryTime).Hours()
}
