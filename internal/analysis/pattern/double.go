package pattern

import (
	"fmt"
	"math"

	"candlesig/internal/market"
)

// pairs 遍历相邻两根 K 线，first 为形态起点下标，趋势取 first 之前的收盘价。
func pairs(candles []market.Candle, opts Options, want trend, fn func(first int, a, b market.Candle) (Occurrence, bool)) []Occurrence {
	var out []Occurrence
	for i := 1; i < len(candles); i++ {
		first := i - 1
		if priorTrend(candles, first, opts.TrendPeriod) != want {
			continue
		}
		if occ, ok := fn(first, candles[first], candles[i]); ok {
			out = append(out, occ)
		}
	}
	return out
}

// DetectBullishEngulfing 看涨吞没：下跌趋势中阳线实体完全包住前一根阴线实体。
func DetectBullishEngulfing(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return pairs(candles, opts, trendDown, func(first int, a, b market.Candle) (Occurrence, bool) {
		if !a.Bearish() || !b.Bullish() {
			return Occurrence{}, false
		}
		b1, b2 := a.Body(), b.Body()
		if b1 <= 0 || b2 <= opts.MinBody {
			return Occurrence{}, false
		}
		if b.Open > a.Close || b.Close < a.Open || b2 < b1*opts.EngulfMinRatio {
			return Occurrence{}, false
		}
		occ := newOccurrence(BullishEngulfing, candles, first, first+1, math.Min(a.Low, b.Low))
		occ.Description = fmt.Sprintf("吞没比=%.2f", b2/b1)
		occ.Metrics = map[string]float64{"engulf_ratio": b2 / b1}
		return occ, true
	})
}

// DetectBearishEngulfing 看跌吞没：上涨趋势中阴线实体完全包住前一根阳线实体。
func DetectBearishEngulfing(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return pairs(candles, opts, trendUp, func(first int, a, b market.Candle) (Occurrence, bool) {
		if !a.Bullish() || !b.Bearish() {
			return Occurrence{}, false
		}
		b1, b2 := a.Body(), b.Body()
		if b1 <= 0 || b2 <= opts.MinBody {
			return Occurrence{}, false
		}
		if b.Open < a.Close || b.Close > a.Open || b2 < b1*opts.EngulfMinRatio {
			return Occurrence{}, false
		}
		occ := newOccurrence(BearishEngulfing, candles, first, first+1, math.Max(a.High, b.High))
		occ.Description = fmt.Sprintf("吞没比=%.2f", b2/b1)
		occ.Metrics = map[string]float64{"engulf_ratio": b2 / b1}
		return occ, true
	})
}

// DetectPiercingPattern 刺透形态：阳线低开于前一根阴线最低价之下，收盘深入其实体过半但未完全吞没。
func DetectPiercingPattern(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return pairs(candles, opts, trendDown, func(first int, a, b market.Candle) (Occurrence, bool) {
		if !a.Bearish() || !b.Bullish() {
			return Occurrence{}, false
		}
		b1 := a.Body()
		if b1 <= opts.MinBody || b.Open >= a.Low {
			return Occurrence{}, false
		}
		pen := (b.Close - a.Close) / b1
		if pen < opts.MinPenetration || b.Close >= a.Open {
			return Occurrence{}, false
		}
		occ := newOccurrence(PiercingPattern, candles, first, first+1, math.Min(a.Low, b.Low))
		occ.Description = fmt.Sprintf("刺透比例=%.0f%%", pen*100)
		occ.Metrics = map[string]float64{"penetration": pen}
		return occ, true
	})
}

// DetectDarkCloudCover 乌云盖顶：阴线高开于前一根阳线最高价之上，收盘深入其实体过半但未完全吞没。
func DetectDarkCloudCover(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return pairs(candles, opts, trendUp, func(first int, a, b market.Candle) (Occurrence, bool) {
		if !a.Bullish() || !b.Bearish() {
			return Occurrence{}, false
		}
		b1 := a.Body()
		if b1 <= opts.MinBody || b.Open <= a.High {
			return Occurrence{}, false
		}
		pen := (a.Close - b.Close) / b1
		if pen < opts.MinPenetration || b.Close <= a.Open {
			return Occurrence{}, false
		}
		occ := newOccurrence(DarkCloudCover, candles, first, first+1, math.Max(a.High, b.High))
		occ.Description = fmt.Sprintf("覆盖比例=%.0f%%", pen*100)
		occ.Metrics = map[string]float64{"penetration": pen}
		return occ, true
	})
}

// DetectBullishHarami 看涨孕线：大阴线之后的阳线实体完全落在其实体内部。
func DetectBullishHarami(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return pairs(candles, opts, trendDown, func(first int, a, b market.Candle) (Occurrence, bool) {
		if !a.Bearish() || !b.Bullish() || !largeBody(a, opts) {
			return Occurrence{}, false
		}
		b1, b2 := a.Body(), b.Body()
		if b2 <= opts.MinBody || b2 >= b1 || b.Open < a.Close || b.Close > a.Open {
			return Occurrence{}, false
		}
		occ := newOccurrence(BullishHarami, candles, first, first+1, math.Min(a.Low, b.Low))
		occ.Description = fmt.Sprintf("孕线实体比=%.2f", b2/b1)
		occ.Metrics = map[string]float64{"inner_ratio": b2 / b1}
		return occ, true
	})
}

// DetectBearishHarami 看跌孕线：大阳线之后的阴线实体完全落在其实体内部。
func DetectBearishHarami(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return pairs(candles, opts, trendUp, func(first int, a, b market.Candle) (Occurrence, bool) {
		if !a.Bullish() || !b.Bearish() || !largeBody(a, opts) {
			return Occurrence{}, false
		}
		b1, b2 := a.Body(), b.Body()
		if b2 <= opts.MinBody || b2 >= b1 || b.Open > a.Close || b.Close < a.Open {
			return Occurrence{}, false
		}
		occ := newOccurrence(BearishHarami, candles, first, first+1, math.Max(a.High, b.High))
		occ.Description = fmt.Sprintf("孕线实体比=%.2f", b2/b1)
		occ.Metrics = map[string]float64{"inner_ratio": b2 / b1}
		return occ, true
	})
}

func largeBody(c market.Candle, opts Options) bool {
	rng := c.Range()
	return rng > 0 && c.Body() > opts.MinBody && c.Body() >= rng*opts.LargeBodyRatio
}
