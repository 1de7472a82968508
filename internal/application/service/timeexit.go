package service

import "fmt"

// TimeExitPolicy decides forced closes on holding duration alone. Thresholds
// are hours; the two soft rules additionally require a small positive profit
// so the clock never force-sells a losing position (that is the stop-loss's
// job).
type TimeExitPolicy struct {
	StagnationHours      float64
	StagnationMinProfit  float64
	LowMomentumHours     float64
	LowMomentumMinProfit float64
	MaximumHours         float64
	EmergencyHours       float64
}

// Evaluate checks the exit rules in fixed precedence, first match wins:
// emergency, maximum, low-momentum, stagnation. The hard rules fire
// regardless of profit sign; the soft rules only inside (0, min_profit).
func (p TimeExitPolicy) Evaluate(hoursHeld, profitPct float64) (bool, string) {
	if p.EmergencyHours > 0 && hoursHeld >= p.EmergencyHours {
		return true, fmt.Sprintf("emergency (%.0fh)", hoursHeld)
	}
	if p.MaximumHours > 0 && hoursHeld >= p.MaximumHours {
		return true, fmt.Sprintf("max time (%.0fh, %+.1f%%)", hoursHeld, profitPct)
	}
	if p.LowMomentumHours > 0 && hoursHeld >= p.LowMomentumHours &&
		profitPct > 0 && profitPct < p.LowMomentumMinProfit {
		return true, fmt.Sprintf("low momentum (%.0fh, %+.1f%%)", hoursHeld, profitPct)
	}
	if p.StagnationHours > 0 && hoursHeld >= p.StagnationHours &&
		profitPct > 0 && profitPct < p.StagnationMinProfit {
		return true, fmt.Sprintf("stagnation (%.0fh, %+.1f%%)", hoursHeld, profitPct)
	}
	return false, ""
}
