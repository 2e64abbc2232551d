package pattern

import (
	"fmt"
	"math"

	"candlesig/internal/market"
)

type shape struct {
	bodyRatio   float64 // 主影线 / 实体
	closeRatio  float64 // 收盘价在区间中的位置
	shadowRatio float64 // 次影线 / 实体
}

// lowerShadowShape 锤子线/上吊线的几何条件：长下影、短上影、收盘靠近高点。
func lowerShadowShape(c market.Candle, opts Options) (shape, bool) {
	body, rng := c.Body(), c.Range()
	if rng <= 0 || body <= opts.MinBody {
		return shape{}, false
	}
	lower, upper := c.LowerShadow(), c.UpperShadow()
	if lower < body*opts.ShadowRatio || upper > body*opts.UpperShadowRatio {
		return shape{}, false
	}
	pos := (c.Close - c.Low) / rng
	if pos < opts.CloseRatio {
		return shape{}, false
	}
	return shape{bodyRatio: lower / body, closeRatio: pos, shadowRatio: upper / body}, true
}

// upperShadowShape 倒锤子线/流星线：长上影、短下影、收盘靠近低点。
func upperShadowShape(c market.Candle, opts Options) (shape, bool) {
	body, rng := c.Body(), c.Range()
	if rng <= 0 || body <= opts.MinBody {
		return shape{}, false
	}
	lower, upper := c.LowerShadow(), c.UpperShadow()
	if upper < body*opts.ShadowRatio || lower > body*opts.UpperShadowRatio {
		return shape{}, false
	}
	pos := (c.High - c.Close) / rng
	if pos < opts.CloseRatio {
		return shape{}, false
	}
	return shape{bodyRatio: upper / body, closeRatio: pos, shadowRatio: lower / body}, true
}

func (s shape) metrics() map[string]float64 {
	return map[string]float64{
		"shadow_body_ratio": s.bodyRatio,
		"close_position":    s.closeRatio,
		"opposite_shadow":   s.shadowRatio,
	}
}

// DetectHammer 锤子线：下跌趋势后出现的长下影小实体 K 线。
func DetectHammer(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	var out []Occurrence
	for i, c := range candles {
		s, ok := lowerShadowShape(c, opts)
		if !ok || priorTrend(candles, i, opts.TrendPeriod) != trendDown {
			continue
		}
		occ := newOccurrence(Hammer, candles, i, i, c.Low)
		occ.Description = fmt.Sprintf("下影线/实体比=%.2f", s.bodyRatio)
		occ.Metrics = s.metrics()
		out = append(out, occ)
	}
	return out
}

// DetectHangingMan 上吊线：形态同锤子线，但出现在上涨趋势的高位。
func DetectHangingMan(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	var out []Occurrence
	for i, c := range candles {
		s, ok := lowerShadowShape(c, opts)
		if !ok || priorTrend(candles, i, opts.TrendPeriod) != trendUp {
			continue
		}
		if c.High < maxClose(candles[i-opts.TrendPeriod:i]) {
			continue
		}
		occ := newOccurrence(HangingMan, candles, i, i, c.High)
		occ.Description = fmt.Sprintf("下影线/实体比=%.2f", s.bodyRatio)
		occ.Metrics = s.metrics()
		out = append(out, occ)
	}
	return out
}

// DetectInvertedHammer 倒锤子线：下跌趋势后的长上影小实体 K 线。
func DetectInvertedHammer(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	var out []Occurrence
	for i, c := range candles {
		s, ok := upperShadowShape(c, opts)
		if !ok || priorTrend(candles, i, opts.TrendPeriod) != trendDown {
			continue
		}
		// 倒锤子线标记在最高点
		occ := newOccurrence(InvertedHammer, candles, i, i, c.High)
		occ.Description = fmt.Sprintf("上影线/实体比=%.2f", s.bodyRatio)
		occ.Metrics = s.metrics()
		out = append(out, occ)
	}
	return out
}

// DetectShootingStar 流星线：上涨趋势后的长上影小实体 K 线。
func DetectShootingStar(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	var out []Occurrence
	for i, c := range candles {
		s, ok := upperShadowShape(c, opts)
		if !ok || priorTrend(candles, i, opts.TrendPeriod) != trendUp {
			continue
		}
		occ := newOccurrence(ShootingStar, candles, i, i, c.High)
		occ.Description = fmt.Sprintf("上影线/实体比=%.2f", s.bodyRatio)
		occ.Metrics = s.metrics()
		out = append(out, occ)
	}
	return out
}

// DetectDoji 十字星：有明确趋势时实体极小的 K 线，本身不带方向。
func DetectDoji(candles []market.Candle, opts Options) []Occurrence {
	opts = NormalizeOptions(opts)
	var out []Occurrence
	for i, c := range candles {
		rng := c.Range()
		if rng <= 0 {
			continue
		}
		ratio := c.Body() / rng
		if ratio > opts.DojiBodyRatio {
			continue
		}
		tr := priorTrend(candles, i, opts.TrendPeriod)
		if tr == trendNone {
			continue
		}
		occ := newOccurrence(Doji, candles, i, i, c.High)
		occ.Description = fmt.Sprintf("实体/区间比=%.2f，前期%s", ratio, tr)
		occ.Metrics = map[string]float64{"body_range_ratio": ratio}
		out = append(out, occ)
	}
	return out
}

func maxClose(bars []market.Candle) float64 {
	out := math.Inf(-1)
	for _, b := range bars {
		if b.Close > out {
			out = b.Close
		}
	}
	return out
}
