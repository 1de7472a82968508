package uniswap

import (
	"math/big"
	"testing"
)

func TestWeiRoundTrip(t *testing.T) {
	cases := []struct {
		amount   float64
		decimals uint8
	}{
		{0.15, 18},
		{1.0, 18},
		{123.456, 6},
		{0.000001, 18},
	}
	for _, c := range cases {
		wei := floatToWei(c.amount, c.decimals)
		back := weiToFloat(wei, c.decimals)
		diff := back - c.amount
		if diff < 0 {
			diff = -diff
		}
		if diff > c.amount*1e-9 {
			t.Errorf("round trip %v (%d decimals): got %v", c.amount, c.decimals, back)
		}
	}
}

func TestFloatToWeiNonPositive(t *testing.T) {
	if floatToWei(0, 18).Sign() != 0 {
		t.Error("zero amount must be zero wei")
	}
	if floatToWei(-1, 18).Sign() != 0 {
		t.Error("negative amount must clamp to zero")
	}
}

func TestWeiToFloatNil(t *testing.T) {
	if weiToFloat(nil, 18) != 0 {
		t.Error("nil wei must be zero")
	}
}

func TestNativeToWei(t *testing.T) {
	want := new(big.Int).Mul(big.NewInt(15), new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil))
	got := nativeToWei(0.15)
	// float64 cannot represent 0.15 exactly; allow a few wei of drift.
	diff := new(big.Int).Sub(want, got)
	diff.Abs(diff)
	if diff.Cmp(big.NewInt(1_000_000)) > 0 {
		t.Errorf("0.15 native expected ~%s wei, got %s", want, got)
	}
}
