package pattern

import (
	"math"
	"math/rand"
	"testing"

	"candlesig/internal/market"
)

const day = int64(86400000)

func bar(i int, open, close, high, low float64) market.Candle {
	return market.Candle{
		OpenTime:  int64(i) * day,
		CloseTime: int64(i+1)*day - 1,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    1000,
	}
}

// downtrend 生成 n 根逐根下跌的小阴线，收盘价从 from 开始每根减 1。
func downtrend(n int, from float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		c := from - float64(i)
		out = append(out, bar(i, c+0.5, c, c+0.6, c-0.1))
	}
	return out
}

func uptrend(n int, from float64) []market.Candle {
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		c := from + float64(i)
		out = append(out, bar(i, c-0.5, c, c+0.1, c-0.6))
	}
	return out
}

func appendBars(base []market.Candle, bars ...[4]float64) []market.Candle {
	out := append([]market.Candle(nil), base...)
	for _, b := range bars {
		out = append(out, bar(len(out), b[0], b[1], b[2], b[3]))
	}
	return out
}

func TestBullishEngulfingAfterDowntrend(t *testing.T) {
	candles := appendBars(downtrend(5, 15),
		[4]float64{10, 9, 10.2, 8.9},
		[4]float64{8.8, 10.5, 10.6, 8.7},
	)
	got := DetectBullishEngulfing(candles, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected exactly one occurrence, got %d: %+v", len(got), got)
	}
	occ := got[0]
	if occ.Index != 6 || occ.StartIndex != 5 || occ.EndIndex != 6 {
		t.Fatalf("unexpected anchor: %+v", occ)
	}
	if occ.Date != candles[6].OpenTime {
		t.Fatalf("date should be bar2 date, got %d", occ.Date)
	}
	if occ.Type != BullishEngulfing || occ.Name != "看涨吞没" {
		t.Fatalf("unexpected type: %s %s", occ.Type, occ.Name)
	}
	if math.Abs(occ.Metrics["engulf_ratio"]-1.7) > 1e-9 {
		t.Fatalf("engulf ratio = %v", occ.Metrics["engulf_ratio"])
	}
}

func TestBullishEngulfingRequiresDowntrend(t *testing.T) {
	candles := appendBars(uptrend(5, 4),
		[4]float64{10, 9, 10.2, 8.9},
		[4]float64{8.8, 10.5, 10.6, 8.7},
	)
	if got := DetectBullishEngulfing(candles, DefaultOptions()); len(got) != 0 {
		t.Fatalf("no occurrence expected without prior downtrend, got %+v", got)
	}
}

func TestEngulfingAlwaysContainsBody(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	price := 100.0
	candles := make([]market.Candle, 0, 2000)
	for i := 0; i < 2000; i++ {
		open := price
		close := open * (1 + (rng.Float64()-0.5)*0.06)
		high := math.Max(open, close) * (1 + rng.Float64()*0.01)
		low := math.Min(open, close) * (1 - rng.Float64()*0.01)
		candles = append(candles, bar(i, open, close, high, low))
		price = close * (1 + (rng.Float64()-0.5)*0.02)
	}
	bull := DetectBullishEngulfing(candles, DefaultOptions())
	bear := DetectBearishEngulfing(candles, DefaultOptions())
	if len(bull)+len(bear) == 0 {
		t.Fatalf("random walk should produce some engulfing patterns")
	}
	for _, occ := range append(bull, bear...) {
		a, b := candles[occ.StartIndex], candles[occ.EndIndex]
		if math.Max(b.Open, b.Close) < math.Max(a.Open, a.Close) || math.Min(b.Open, b.Close) > math.Min(a.Open, a.Close) {
			t.Fatalf("%s at %d does not contain previous body: %+v %+v", occ.Type, occ.Index, a, b)
		}
		if b.Body() < a.Body() {
			t.Fatalf("%s at %d body smaller than previous", occ.Type, occ.Index)
		}
	}
}

func TestHammerAndHangingMan(t *testing.T) {
	hammer := [4]float64{10, 10.2, 10.25, 9.0}
	candles := appendBars(downtrend(5, 15), hammer)
	got := DetectHammer(candles, DefaultOptions())
	if len(got) != 1 || got[0].Index != 5 {
		t.Fatalf("expected hammer at 5, got %+v", got)
	}
	if got[0].Price != 9.0 {
		t.Fatalf("hammer should be marked at the low, got %v", got[0].Price)
	}
	if got[0].Description != "下影线/实体比=5.00" {
		t.Fatalf("description = %q", got[0].Description)
	}
	if hm := DetectHangingMan(candles, DefaultOptions()); len(hm) != 0 {
		t.Fatalf("hanging man needs an uptrend, got %+v", hm)
	}

	atHigh := appendBars(uptrend(5, 10), [4]float64{14.5, 14.7, 14.75, 13.5})
	if hm := DetectHangingMan(atHigh, DefaultOptions()); len(hm) != 1 || hm[0].Index != 5 {
		t.Fatalf("expected hanging man at 5, got %+v", hm)
	}
	belowHigh := appendBars(uptrend(5, 10), [4]float64{12, 12.2, 12.25, 11})
	if hm := DetectHangingMan(belowHigh, DefaultOptions()); len(hm) != 0 {
		t.Fatalf("hanging man below prior highs should be rejected, got %+v", hm)
	}
}

func TestUpperShadowPatterns(t *testing.T) {
	star := appendBars(uptrend(5, 10), [4]float64{14.7, 14.5, 15.7, 14.45})
	if got := DetectShootingStar(star, DefaultOptions()); len(got) != 1 || got[0].Price != 15.7 {
		t.Fatalf("expected shooting star marked at high, got %+v", got)
	}
	inv := appendBars(downtrend(5, 15), [4]float64{10, 10.2, 11.2, 9.95})
	if got := DetectInvertedHammer(inv, DefaultOptions()); len(got) != 1 || got[0].Price != 11.2 {
		t.Fatalf("expected inverted hammer marked at high, got %+v", got)
	}
}

func TestPiercingAndDarkCloud(t *testing.T) {
	piercing := appendBars(downtrend(5, 15),
		[4]float64{11, 10, 11.1, 9.9},
		[4]float64{9.8, 10.6, 10.7, 9.7},
	)
	got := DetectPiercingPattern(piercing, DefaultOptions())
	if len(got) != 1 || got[0].Index != 6 {
		t.Fatalf("expected piercing at 6, got %+v", got)
	}
	if math.Abs(got[0].Metrics["penetration"]-0.6) > 1e-9 {
		t.Fatalf("penetration = %v", got[0].Metrics["penetration"])
	}
	if eng := DetectBullishEngulfing(piercing, DefaultOptions()); len(eng) != 0 {
		t.Fatalf("partial penetration is not engulfing: %+v", eng)
	}

	cloud := appendBars(uptrend(5, 10),
		[4]float64{14, 15, 15.1, 13.9},
		[4]float64{15.2, 14.4, 15.3, 14.3},
	)
	if got := DetectDarkCloudCover(cloud, DefaultOptions()); len(got) != 1 || got[0].Index != 6 {
		t.Fatalf("expected dark cloud at 6, got %+v", got)
	}

	// 未跳空则不成立
	noGap := appendBars(uptrend(5, 10),
		[4]float64{14, 15, 15.1, 13.9},
		[4]float64{15.05, 14.4, 15.1, 14.3},
	)
	if got := DetectDarkCloudCover(noGap, DefaultOptions()); len(got) != 0 {
		t.Fatalf("dark cloud requires a gap open, got %+v", got)
	}
}

func TestHarami(t *testing.T) {
	candles := appendBars(downtrend(5, 15),
		[4]float64{11, 10, 11.05, 9.95},
		[4]float64{10.2, 10.6, 10.7, 10.1},
	)
	if got := DetectBullishHarami(candles, DefaultOptions()); len(got) != 1 || got[0].Index != 6 {
		t.Fatalf("expected bullish harami at 6, got %+v", got)
	}
}

func TestStars(t *testing.T) {
	morning := appendBars(downtrend(5, 15),
		[4]float64{11, 10, 11.05, 9.95},
		[4]float64{9.7, 9.8, 9.9, 9.6},
		[4]float64{9.9, 10.8, 10.85, 9.85},
	)
	got := DetectMorningStar(morning, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected one morning star, got %+v", got)
	}
	if got[0].Index != 7 || got[0].StartIndex != 5 || len(got[0].Bars) != 3 {
		t.Fatalf("unexpected morning star anchor: %+v", got[0])
	}
	if got[0].Bars[1].Close != 9.8 {
		t.Fatalf("bar snapshot mismatch: %+v", got[0].Bars)
	}

	evening := appendBars(uptrend(5, 10),
		[4]float64{14, 15, 15.05, 13.95},
		[4]float64{15.3, 15.2, 15.4, 15.1},
		[4]float64{15.1, 14.2, 15.15, 14.15},
	)
	if got := DetectEveningStar(evening, DefaultOptions()); len(got) != 1 || got[0].Index != 7 {
		t.Fatalf("expected evening star at 7, got %+v", got)
	}

	// 第三根未收复中点
	weak := appendBars(downtrend(5, 15),
		[4]float64{11, 10, 11.05, 9.95},
		[4]float64{9.7, 9.8, 9.9, 9.6},
		[4]float64{9.9, 10.3, 10.35, 9.85},
	)
	if got := DetectMorningStar(weak, DefaultOptions()); len(got) != 0 {
		t.Fatalf("third bar below midpoint should not qualify, got %+v", got)
	}
}

func TestThreeWhiteSoldiers(t *testing.T) {
	candles := appendBars(downtrend(5, 15),
		[4]float64{10, 11, 11.1, 9.95},
		[4]float64{10.5, 11.6, 11.7, 10.45},
		[4]float64{11.2, 12.3, 12.4, 11.15},
	)
	got := DetectThreeWhiteSoldiers(candles, DefaultOptions())
	if len(got) != 1 || got[0].Index != 7 || len(got[0].Bars) != 3 {
		t.Fatalf("expected soldiers at 7, got %+v", got)
	}
}

func TestDegenerateBarsAreSkipped(t *testing.T) {
	candles := appendBars(downtrend(5, 15),
		[4]float64{10, 10, 10, 10},
		[4]float64{10, 10.005, 10.5, 9},
	)
	all := DetectAll(candles, DefaultOptions())
	for _, occ := range all {
		if occ.Index >= 5 && occ.Type != Doji {
			t.Fatalf("degenerate bar produced %s at %d", occ.Type, occ.Index)
		}
	}
	if got := DetectAll(nil, Options{}); len(got) != 0 {
		t.Fatalf("empty input should yield nothing")
	}
}

func TestDetectAllSortedByIndex(t *testing.T) {
	candles := appendBars(downtrend(5, 15),
		[4]float64{10, 9, 10.2, 8.9},
		[4]float64{8.8, 10.5, 10.6, 8.7},
	)
	candles = appendBars(candles, [4]float64{10.5, 10.7, 10.75, 9.5})
	all := DetectAll(candles, Options{})
	if len(all) == 0 {
		t.Fatalf("expected detections")
	}
	for i := 1; i < len(all); i++ {
		if all[i].Index < all[i-1].Index {
			t.Fatalf("not sorted at %d: %d < %d", i, all[i].Index, all[i-1].Index)
		}
	}
	found := false
	for _, occ := range all {
		if occ.Type == BullishEngulfing && occ.Index == 6 {
			found = true
		}
	}
	if !found {
		t.Fatalf("engulfing missing from DetectAll: %+v", all)
	}
}

func TestLookupAndCatalogue(t *testing.T) {
	if tp, ok := Lookup("hammer"); !ok || tp != Hammer {
		t.Fatalf("lookup by code failed")
	}
	if tp, ok := Lookup("黄昏星"); !ok || tp != EveningStar {
		t.Fatalf("lookup by text failed")
	}
	if _, ok := Lookup("unknown"); ok {
		t.Fatalf("unknown pattern should not resolve")
	}
	if Hammer.FullText() != "🔨 锤子线" {
		t.Fatalf("full text = %q", Hammer.FullText())
	}
	for _, tp := range All() {
		info := tp.Info()
		switch info.Polarity {
		case Bullish:
			if info.Offset >= 0 || info.Color != colorBullish {
				t.Fatalf("%s should be marked below in green", tp)
			}
		case Bearish:
			if info.Offset <= 0 || info.Color != colorBearish {
				t.Fatalf("%s should be marked above in red", tp)
			}
		}
	}
	algo := AlgorithmInfo()
	if len(algo) != len(All()) {
		t.Fatalf("algorithm info size %d", len(algo))
	}
	for _, c := range algo {
		if len(c.Rules) == 0 {
			t.Fatalf("%s has no rules", c.Code)
		}
	}
}

func TestDetectFractals(t *testing.T) {
	candles := []market.Candle{
		bar(0, 10, 10.5, 10.6, 9.9),
		bar(1, 10.5, 11.5, 11.8, 10.4),
		bar(2, 11.5, 11, 11.6, 10.9),
		bar(3, 11, 10, 11.1, 9.5),
		bar(4, 10, 10.8, 10.9, 9.8),
	}
	got := DetectFractals(candles, 0)
	if len(got) != 2 {
		t.Fatalf("expected two fractals, got %+v", got)
	}
	if got[0].Kind != FractalTop || got[0].Index != 1 || got[0].Value != 11.8 {
		t.Fatalf("unexpected top: %+v", got[0])
	}
	if got[1].Kind != FractalBottom || got[1].Index != 3 || got[1].Value != 9.5 {
		t.Fatalf("unexpected bottom: %+v", got[1])
	}
}
