package model

import "time"

// Trading modes. The active mode is re-read every tick, so an operator can
// flip a running engine between paper and real settlement.
const (
	ModePaper = "paper"
	ModeReal  = "real"
)

// LedgerEntry is one row of trade history. A row is created when a position
// opens and mutated exactly once when it closes; ExitTime == nil is the
// external contract for "still open".
type LedgerEntry struct {
	TokenAddress string    `json:"token_address"`
	Symbol       string    `json:"symbol"`
	EntryPrice   float64   `json:"entry_price"`
	Quantity     float64   `json:"quantity"`
	AmountBase   float64   `json:"amount_base"`
	EntryTime    time.Time `json:"entry_time"`
	Mode         string    `json:"mode"`
	OpenRef      string    `json:"open_ref"` // settlement reference of the opening fill

	ExitTime      *time.Time `json:"exit_time,omitempty"`
	ProfitPercent *float64   `json:"profit_percent,omitempty"`
	ExitReason    string     `json:"exit_reason,omitempty"`
	CloseRef      string     `json:"close_ref,omitempty"`
}

// Open reports whether the trade has not yet been closed out.
func (e *LedgerEntry) Open() bool { return e.ExitTime == nil }

// Candidate is the head of the admission queue: a token that already passed
// upstream filtering and is waiting for capital.
type Candidate struct {
	Address   string  `json:"address"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name,omitempty"`
	Score     float64 `json:"score"`
	PriceUSD  float64 `json:"price_usd"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume_24h"`
}

// Valid reports whether the candidate carries enough data to commit capital.
func (c *Candidate) Valid() bool {
	return c != nil && c.Address != "" && c.Symbol != "" && c.PriceUSD > 0
}

// Trade event types published for the reporting surface.
const (
	EventOpen          = "open"
	EventClose         = "close"
	EventTierPromotion = "tier_promotion"
)

// TradeEvent is a notification emitted on position lifecycle changes and
// tier promotions. Purely observational: losing an event never affects
// engine state.
type TradeEvent struct {
	Type          string  `json:"type"`
	TokenAddress  string  `json:"token_address"`
	Symbol        string  `json:"symbol"`
	Reason        string  `json:"reason,omitempty"`
	ProfitPercent float64 `json:"profit_percent"`
	Tier          int     `json:"tier,omitempty"`
	Mode          string  `json:"mode,omitempty"`
	Ts            int64   `json:"ts_ms"`
}
