package trading

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalcBuyShares(t *testing.T) {
	cases := []struct {
		capital, price float64
		ratio          float64
		want           int64
	}{
		{100000, 10, 0.8, 8000},
		{100000, 33, 0.5, 1515},
		{100000, 10, 1.5, 10000},
		{100000, 0, 0.8, 0},
		{0, 10, 0.8, 0},
		{100, 200, 0.8, 0},
	}
	for _, tc := range cases {
		got := CalcBuyShares(decimal.NewFromFloat(tc.capital), decimal.NewFromFloat(tc.price), tc.ratio)
		if got != tc.want {
			t.Fatalf("buy(%v, %v, %v) = %d, want %d", tc.capital, tc.price, tc.ratio, got, tc.want)
		}
	}
}

func TestCalcSellShares(t *testing.T) {
	if got := CalcSellShares(1515, 0.8); got != 1212 {
		t.Fatalf("sell = %d", got)
	}
	if got := CalcSellShares(1, 0.5); got != 0 {
		t.Fatalf("sell one share at half = %d", got)
	}
	if got := CalcSellShares(10, 2); got != 10 {
		t.Fatalf("sell clamps ratio = %d", got)
	}
	if got := CalcSellShares(0, 0.8); got != 0 {
		t.Fatalf("empty position = %d", got)
	}
}

func TestAmount(t *testing.T) {
	if got := Amount(3, decimal.RequireFromString("12.34")); !got.Equal(decimal.RequireFromString("37.02")) {
		t.Fatalf("amount = %s", got)
	}
}
