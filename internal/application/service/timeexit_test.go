package service

import (
	"strings"
	"testing"
)

func testPolicy() TimeExitPolicy {
	return TimeExitPolicy{
		StagnationHours:      24,
		StagnationMinProfit:  5,
		LowMomentumHours:     48,
		LowMomentumMinProfit: 20,
		MaximumHours:         72,
		EmergencyHours:       120,
	}
}

func TestTimeExitPrecedence(t *testing.T) {
	p := testPolicy()

	// 121h at +2% satisfies all four rules; emergency wins.
	exit, reason := p.Evaluate(121, 2)
	if !exit || !strings.HasPrefix(reason, "emergency") {
		t.Fatalf("expected emergency exit, got %q", reason)
	}

	// 73h at +8% satisfies maximum, low momentum and stagnation; maximum wins.
	exit, reason = p.Evaluate(73, 8)
	if !exit || !strings.HasPrefix(reason, "max time") {
		t.Fatalf("expected max time exit, got %q", reason)
	}

	// 49h at +8% satisfies low momentum and stagnation; low momentum wins.
	exit, reason = p.Evaluate(49, 8)
	if !exit || !strings.HasPrefix(reason, "low momentum") {
		t.Fatalf("expected low momentum exit, got %q", reason)
	}

	exit, reason = p.Evaluate(25, 3)
	if !exit || !strings.HasPrefix(reason, "stagnation") {
		t.Fatalf("expected stagnation exit, got %q", reason)
	}
}

func TestTimeExitHardRulesIgnoreProfitSign(t *testing.T) {
	p := testPolicy()

	if exit, _ := p.Evaluate(73, -40); !exit {
		t.Error("maximum must fire on a losing position")
	}
	if exit, _ := p.Evaluate(121, -90); !exit {
		t.Error("emergency must fire on a losing position")
	}
	if exit, _ := p.Evaluate(73, 500); !exit {
		t.Error("maximum must fire on a big winner too")
	}
}

func TestTimeExitSoftRulesNeedPositiveProfit(t *testing.T) {
	p := testPolicy()

	// At a loss the clock never force-sells: that is the stop-loss's job.
	if exit, _ := p.Evaluate(30, -2); exit {
		t.Error("stagnation must not fire at a loss")
	}
	if exit, _ := p.Evaluate(50, -10); exit {
		t.Error("low momentum must not fire at a loss")
	}
	// Exactly zero profit is not "positive but small".
	if exit, _ := p.Evaluate(30, 0); exit {
		t.Error("stagnation must not fire at exactly zero profit")
	}
	// A strong winner is left to the trailing stop.
	if exit, _ := p.Evaluate(30, 40); exit {
		t.Error("stagnation must not fire above its min profit")
	}
}

func TestTimeExitBelowAllThresholds(t *testing.T) {
	p := testPolicy()
	if exit, reason := p.Evaluate(10, 2); exit {
		t.Fatalf("no rule should fire at 10h, got %q", reason)
	}
}
