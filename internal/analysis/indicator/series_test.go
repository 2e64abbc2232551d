package indicator

import (
	"math"
	"testing"

	"candlesig/internal/market"
)

func linear(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func riseThenFall() []float64 {
	lead := linear(107.5, -0.5, 15)
	rise := linear(100, 0.5, 50)
	fall := linear(125, -0.5, 50)
	out := append([]float64{}, lead...)
	out = append(out, rise...)
	return append(out, fall...)
}

func TestMACDHistIsExactDifference(t *testing.T) {
	closes := riseThenFall()
	res := MACD(closes, 12, 26, 9)
	if len(res.Diff) != len(closes) || len(res.Dea) != len(closes) || len(res.Hist) != len(closes) {
		t.Fatalf("series not aligned")
	}
	for i := range closes {
		if res.Hist[i] != res.Diff[i]-res.Dea[i] {
			t.Fatalf("hist mismatch at %d", i)
		}
	}
	if res.Diff[0] != 0 {
		t.Fatalf("ewm seeded with first value, want diff[0]=0 got %v", res.Diff[0])
	}
}

func TestEMAUsesRecursiveWeighting(t *testing.T) {
	got := EMA([]float64{1, 2, 3}, 3)
	// alpha = 0.5
	want := []float64{1, 1.5, 2.25}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("ema[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestRSIWarmupAndPureRise(t *testing.T) {
	closes := linear(100, 0.5, 30)
	rsi := RSI(closes, 14)
	for i := 0; i < 14; i++ {
		if !math.IsNaN(rsi[i]) {
			t.Fatalf("rsi[%d] should be NaN during warm-up", i)
		}
	}
	for i := 14; i < len(rsi); i++ {
		if math.Abs(rsi[i]-100) > 1e-9 {
			t.Fatalf("pure rise rsi[%d]=%v want 100", i, rsi[i])
		}
	}
	short := RSI(closes[:10], 14)
	for _, v := range short {
		if !math.IsNaN(v) {
			t.Fatalf("short input must be all NaN")
		}
	}
}

func TestRSIWilderCrossAfterDecline(t *testing.T) {
	rsi := RSI(riseThenFall(), 14)
	if !(rsi[19] < 30 && rsi[20] >= 30) {
		t.Fatalf("expected oversold exit at bar 20, got %.4f -> %.4f", rsi[19], rsi[20])
	}
	if math.Abs(rsi[20]-30.9638) > 1e-3 {
		t.Fatalf("rsi[20]=%.4f", rsi[20])
	}
}

func TestSMAFullAndPartialWindows(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	full := SMA(values, 3, 0)
	if !math.IsNaN(full[0]) || !math.IsNaN(full[1]) || full[2] != 2 || full[4] != 4 {
		t.Fatalf("full window sma %v", full)
	}
	partial := SMA(values, 3, 1)
	if partial[0] != 1 || partial[1] != 1.5 || partial[2] != 2 {
		t.Fatalf("partial window sma %v", partial)
	}
}

func TestDonchianExcludesCurrentBar(t *testing.T) {
	highs := []float64{10, 11, 12, 13, 14, 15}
	lows := []float64{9, 8, 7, 8, 9, 10}
	ch := Donchian(highs, lows, 3)
	for i := 0; i < 3; i++ {
		if !math.IsNaN(ch.Upper[i]) || !math.IsNaN(ch.Lower[i]) {
			t.Fatalf("bar %d should be NaN", i)
		}
	}
	if ch.Upper[3] != 12 || ch.Lower[3] != 7 {
		t.Fatalf("bar 3 channel %v/%v", ch.Upper[3], ch.Lower[3])
	}

	mutated := append([]float64{}, highs...)
	mutatedLows := append([]float64{}, lows...)
	mutated[4] = 1000
	mutatedLows[4] = 0.001
	ch2 := Donchian(mutated, mutatedLows, 3)
	if ch2.Upper[4] != ch.Upper[4] || ch2.Lower[4] != ch.Lower[4] {
		t.Fatalf("channel at bar 4 depends on bar 4 itself")
	}
}

func TestATRFirstTrueRange(t *testing.T) {
	highs := []float64{10, 12, 11}
	lows := []float64{8, 9, 7}
	closes := []float64{9, 11, 8}
	tr := TrueRange(highs, lows, closes)
	if tr[0] != 2 || tr[1] != 3 || tr[2] != 4 {
		t.Fatalf("true range %v", tr)
	}
	sma := ATR(highs, lows, closes, 2, ATRMethodSMA)
	if !math.IsNaN(sma[0]) || sma[1] != 2.5 || sma[2] != 3.5 {
		t.Fatalf("sma atr %v", sma)
	}
	ema := ATR(highs, lows, closes, 3, ATRMethodEMA)
	if ema[0] != 2 || ema[1] != 2.5 {
		t.Fatalf("ema atr %v", ema)
	}
}

func TestBollingerSampleStd(t *testing.T) {
	closes := []float64{1, 2, 3, 4}
	b := Bollinger(closes, 4, 2)
	// 样本标准差 sqrt(5/3)
	std := math.Sqrt(5.0 / 3.0)
	if math.Abs(b.Middle[3]-2.5) > 1e-9 || math.Abs(b.Upper[3]-(2.5+2*std)) > 1e-9 || math.Abs(b.Lower[3]-(2.5-2*std)) > 1e-9 {
		t.Fatalf("bands %v %v %v", b.Upper[3], b.Middle[3], b.Lower[3])
	}
}

func TestKDJStartsAtFirstRSV(t *testing.T) {
	highs := linear(11, 1, 12)
	lows := linear(9, 1, 12)
	closes := linear(10.5, 1, 12)
	kdj := KDJ(highs, lows, closes, 9, 3, 3)
	if !math.IsNaN(kdj.K[7]) {
		t.Fatalf("k before first rsv should be NaN")
	}
	if math.IsNaN(kdj.K[8]) || kdj.K[8] != kdj.D[8] {
		t.Fatalf("k and d seeded with first rsv: %v %v", kdj.K[8], kdj.D[8])
	}
	if math.Abs(kdj.J[10]-(3*kdj.K[10]-2*kdj.D[10])) > 1e-12 {
		t.Fatalf("j mismatch")
	}
}

func TestADXTrendingSeries(t *testing.T) {
	closes := linear(100, 1, 80)
	highs := linear(101, 1, 80)
	lows := linear(99, 1, 80)
	adx := ADX(highs, lows, closes, 20)
	last := adx.ADX[len(adx.ADX)-1]
	if math.IsNaN(last) || last <= 25 {
		t.Fatalf("steady uptrend adx=%v", last)
	}
}

func TestDetectRSIDivergence(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 12.5, 12.8, 13.1, 13.0, 13.05, 13.1, 13.2}
	rsi := []float64{50, 60, 70, 80, 70, 72, 74, 70, 71, 72, 73}
	div := DetectRSIDivergence(closes, rsi, 10, 10)
	if !div.Bearish || div.Bullish {
		t.Fatalf("expected bearish divergence %+v", div)
	}
	if div.PriceHighIndex != 10 || div.RSIHighIndex != 3 {
		t.Fatalf("extreme indexes %+v", div)
	}
	none := DetectRSIDivergence(closes, rsi, 5, 10)
	if none.Bearish || none.Bullish {
		t.Fatalf("idx below lookback must not flag")
	}
}

func TestComputeReport(t *testing.T) {
	closes := riseThenFall()
	candles := make([]market.Candle, len(closes))
	for i, c := range closes {
		candles[i] = market.Candle{OpenTime: int64(i) * 86400000, Open: c, High: c * 1.02, Low: c * 0.98, Close: c, Volume: 1000}
	}
	rep, err := ComputeReport(candles, Settings{Symbol: "TEST", Interval: "1d"})
	if err != nil {
		t.Fatalf("ComputeReport: %v", err)
	}
	for _, key := range []string{"macd", "rsi", "rsi6", "ma20", "donchian", "atr", "boll", "kdj", "adx"} {
		if _, ok := rep.Values[key]; !ok {
			t.Fatalf("missing %s", key)
		}
	}
	if _, ok := rep.Values["ma250"]; ok {
		t.Fatalf("ma250 should be skipped for short series")
	}
	if _, err := ComputeReport(nil, Settings{}); err == nil {
		t.Fatalf("empty input should error")
	}
}
