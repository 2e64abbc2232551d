package pattern

import (
	"fmt"
	"math"

	"candlesig/internal/market"
)

func triplets(candles []market.Candle, opts Options, want trend, fn func(first int, a, b, c market.Candle) (Occurrence, bool)) []Occurrence {
	var out []Occurrence
	for i := 2; i < len(candles); i++ {
		first := i - 2
		if priorTrend(candles, first, opts.TrendPeriod) != want {
			continue
		}
		if occ, ok := fn(first, candles[first], candles[first+1], candles[i]); ok {
			occ.Bars = snapshot(candles, first, i)
			out = append(out, occ)
		}
	}
	return out
}

func bodyTop(c market.Candle) float64    { return math.Max(c.Open, c.Close) }
func bodyBottom(c market.Candle) float64 { return math.Min(c.Open, c.Close) }

// DetectMorningStar 晨星：大阴线 + 向下跳空的星线 + 向上跳空并收复第一根实体中点的阳线。
func DetectMorningStar(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return triplets(candles, opts, trendDown, func(first int, a, star, c market.Candle) (Occurrence, bool) {
		if !a.Bearish() || !largeBody(a, opts) {
			return Occurrence{}, false
		}
		if star.Body() > a.Body()*opts.StarBodyRatio || bodyTop(star) >= a.Close {
			return Occurrence{}, false
		}
		if !c.Bullish() || c.Body() <= opts.MinBody || bodyBottom(c) <= bodyTop(star) {
			return Occurrence{}, false
		}
		mid := a.Midpoint()
		if c.Close <= mid {
			return Occurrence{}, false
		}
		low := math.Min(a.Low, math.Min(star.Low, c.Low))
		occ := newOccurrence(MorningStar, candles, first, first+2, low)
		pen := (c.Close - a.Close) / a.Body()
		occ.Description = fmt.Sprintf("星线实体比=%.2f, 收复第一根实体=%.0f%%", star.Body()/a.Body(), pen*100)
		occ.Metrics = map[string]float64{"star_ratio": star.Body() / a.Body(), "penetration": pen}
		return occ, true
	})
}

// DetectEveningStar 黄昏星：大阳线 + 向上跳空的星线 + 向下跳空并跌破第一根实体中点的阴线。
func DetectEveningStar(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return triplets(candles, opts, trendUp, func(first int, a, star, c market.Candle) (Occurrence, bool) {
		if !a.Bullish() || !largeBody(a, opts) {
			return Occurrence{}, false
		}
		if star.Body() > a.Body()*opts.StarBodyRatio || bodyBottom(star) <= a.Close {
			return Occurrence{}, false
		}
		if !c.Bearish() || c.Body() <= opts.MinBody || bodyTop(c) >= bodyBottom(star) {
			return Occurrence{}, false
		}
		mid := a.Midpoint()
		if c.Close >= mid {
			return Occurrence{}, false
		}
		high := math.Max(a.High, math.Max(star.High, c.High))
		occ := newOccurrence(EveningStar, candles, first, first+2, high)
		pen := (a.Close - c.Close) / a.Body()
		occ.Description = fmt.Sprintf("星线实体比=%.2f, 跌破第一根实体=%.0f%%", star.Body()/a.Body(), pen*100)
		occ.Metrics = map[string]float64{"star_ratio": star.Body() / a.Body(), "penetration": pen}
		return occ, true
	})
}

// DetectThreeWhiteSoldiers 三只白兵：下跌后连续三根阳线逐级走高，每根开在前一根实体内，上影线短。
func DetectThreeWhiteSoldiers(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return triplets(candles, opts, trendDown, func(first int, a, b, c market.Candle) (Occurrence, bool) {
		bars := [3]market.Candle{a, b, c}
		for k, bar := range bars {
			if !bar.Bullish() || bar.Body() <= opts.MinBody || bar.UpperShadow() >= bar.Body()*opts.UpperShadowRatio {
				return Occurrence{}, false
			}
			if k == 0 {
				continue
			}
			prev := bars[k-1]
			if bar.Close <= prev.Close || bar.Open <= prev.Open || bar.Open >= prev.Close {
				return Occurrence{}, false
			}
		}
		occ := newOccurrence(ThreeWhiteSoldiers, candles, first, first+2, a.Low)
		gain := (c.Close - a.Open) / a.Open
		occ.Description = fmt.Sprintf("三连阳累计涨幅=%.2f%%", gain*100)
		occ.Metrics = map[string]float64{"gain": gain}
		return occ, true
	})
}

// DetectThreeBlackCrows 三只乌鸦：上涨后连续三根阴线逐级走低，每根开在前一根实体内，下影线短。
func DetectThreeBlackCrows(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	return triplets(candles, opts, trendUp, func(first int, a, b, c market.Candle) (Occurrence, bool) {
		bars := [3]market.Candle{a, b, c}
		for k, bar := range bars {
			if !bar.Bearish() || bar.Body() <= opts.MinBody || bar.LowerShadow() >= bar.Body()*opts.UpperShadowRatio {
				return Occurrence{}, false
			}
			if k == 0 {
				continue
			}
			prev := bars[k-1]
			if bar.Close >= prev.Close || bar.Open >= prev.Open || bar.Open <= prev.Close {
				return Occurrence{}, false
			}
		}
		occ := newOccurrence(ThreeBlackCrows, candles, first, first+2, a.High)
		drop := (a.Open - c.Close) / a.Open
		occ.Description = fmt.Sprintf("三连阴累计跌幅=%.2f%%", drop*100)
		occ.Metrics = map[string]float64{"drop": drop}
		return occ, true
	})
}
