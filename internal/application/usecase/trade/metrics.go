package trade

import "github.com/rs/zerolog/log"

// Metrics accumulates realized performance over the process lifetime. Purely
// informational; never persisted.
type Metrics struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalProfit   float64
	BestTrade     float64
	WorstTrade    float64
	TimeExits     int
	TrailingExits int
	StopLossExits int
}

func (m *Metrics) RecordExit(profitPct float64, kind exitKind) {
	m.TotalTrades++
	if profitPct > 0 {
		m.WinningTrades++
	} else {
		m.LosingTrades++
	}
	m.TotalProfit += profitPct
	if profitPct > m.BestTrade {
		m.BestTrade = profitPct
	}
	if profitPct < m.WorstTrade {
		m.WorstTrade = profitPct
	}
	switch kind {
	case exitTime:
		m.TimeExits++
	case exitTrailing:
		m.TrailingExits++
	case exitStopLoss:
		m.StopLossExits++
	}
}

func (m *Metrics) Log() {
	winRate, avg := 0.0, 0.0
	if m.TotalTrades > 0 {
		winRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
		avg = m.TotalProfit / float64(m.TotalTrades)
	}
	log.Info().
		Int("trades", m.TotalTrades).
		Float64("win_rate_pct", winRate).
		Float64("avg_profit_pct", avg).
		Float64("best_pct", m.BestTrade).
		Float64("worst_pct", m.WorstTrade).
		Int("time_exits", m.TimeExits).
		Int("trailing_exits", m.TrailingExits).
		Int("stop_loss_exits", m.StopLossExits).
		Msg("performance")
}

type exitKind int

const (
	exitTime exitKind = iota
	exitStopLoss
	exitTrailing
)
