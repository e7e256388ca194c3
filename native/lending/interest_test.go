package lending

import (
	"math/big"
	"testing"
)

func TestInterestDue(t *testing.T) {
	cases := []struct {
		principal int64
		aprBps    uint64
		elapsed   uint64
		want      int64
	}{
		{100 * octas, 500, 31_536_000, 5 * octas},     // full year at 5%
		{100 * octas, 500, 31_536_000 / 2, 25 * octas / 10}, // half year
		{100 * octas, 500, 0, 0},
		{0, 500, 31_536_000, 0},
		{100 * octas, 0, 31_536_000, 0},
		{1, 500, 1, 0}, // floors to zero
	}
	for _, c := range cases {
		got := interestDue(big.NewInt(c.principal), c.aprBps, c.elapsed)
		if got.Cmp(big.NewInt(c.want)) != 0 {
			t.Fatalf("interestDue(%d,%d,%d): got %s want %d", c.principal, c.aprBps, c.elapsed, got, c.want)
		}
	}
}

func TestFeeOn(t *testing.T) {
	// 0.1% of 83 APEX.
	got := feeOn(big.NewInt(83*octas), 10)
	if got.Cmp(big.NewInt(83*octas/1000)) != 0 {
		t.Fatalf("unexpected borrow fee: %s", got)
	}
	// 0.05% of 3 APEX.
	got = feeOn(big.NewInt(3*octas), 5)
	if got.Cmp(big.NewInt(3*octas*5/10_000)) != 0 {
		t.Fatalf("unexpected repay fee: %s", got)
	}
	if got := feeOn(nil, 10); got.Sign() != 0 {
		t.Fatalf("expected zero fee for nil amount, got %s", got)
	}
}
