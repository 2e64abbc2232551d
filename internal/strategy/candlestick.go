package strategy

import (
	"math"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/analysis/pattern"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// CandlestickStrategy 基于均线偏离判断趋势，再按单/双/三 K 线组合产生信号。
// 同一根 K 线上三类组合各自独立判定，最多产生三条信号。
type CandlestickStrategy struct {
	// BodyMinRatio 大实体 K 线的实体占比下限。
	BodyMinRatio float64
	// ShadowRatio 锤子线类影线与实体之比下限。
	ShadowRatio float64
	// TrendPeriod 趋势均线周期。
	TrendPeriod int
	// TrendDeviation 收盘价偏离均线超过该比例视为有趋势。
	TrendDeviation float64
}

func NewCandlestickStrategy() *CandlestickStrategy {
	return &CandlestickStrategy{BodyMinRatio: 0.6, ShadowRatio: 2.0, TrendPeriod: 20, TrendDeviation: 0.02}
}

func (s *CandlestickStrategy) Type() Type { return Candlestick }

type candleTrend int

const (
	neutralTrend candleTrend = iota
	upTrend
	downTrend
)

type candleHit struct {
	pattern  pattern.Type
	typ      signal.Type
	strength signal.Strength
}

func (s *CandlestickStrategy) Generate(candles []market.Candle) (Result, error) {
	res := Result{
		Type: Candlestick,
		Metadata: map[string]any{
			"description":     "基于经典K线形态的交易信号识别",
			"body_min_ratio":  s.BodyMinRatio,
			"shadow_ratio":    s.ShadowRatio,
			"trend_ma_period": s.TrendPeriod,
		},
	}
	if len(candles) < max(s.TrendPeriod, 3) {
		return res, nil
	}
	ma := indicator.SMA(market.Closes(candles), s.TrendPeriod, 0)
	for i := 2; i < len(candles); i++ {
		a, b, c := candles[i-2], candles[i-1], candles[i]
		trend := s.trend(c.Close, ma[i])
		for _, hit := range []*candleHit{s.single(c, trend), s.double(b, c, trend), s.triple(a, b, c, trend)} {
			if hit == nil {
				continue
			}
			sig := newSignal(c, hit.typ, hit.strength, Candlestick)
			sig.PatternName = hit.pattern.Text()
			res.Signals = append(res.Signals, sig)
		}
	}
	return res, nil
}

func (s *CandlestickStrategy) trend(price, ma float64) candleTrend {
	if math.IsNaN(ma) || ma <= 0 {
		return neutralTrend
	}
	dev := (price - ma) / ma
	switch {
	case dev > s.TrendDeviation:
		return upTrend
	case dev < -s.TrendDeviation:
		return downTrend
	default:
		return neutralTrend
	}
}

func bodyRatio(c market.Candle) float64 {
	if r := c.Range(); r > 0 {
		return c.Body() / r
	}
	return 0
}

func (s *CandlestickStrategy) single(c market.Candle, trend candleTrend) *candleHit {
	body := c.Body()
	longLower := body > 0 && c.LowerShadow() >= body*s.ShadowRatio && c.UpperShadow() <= body*0.1
	longUpper := body > 0 && c.UpperShadow() >= body*s.ShadowRatio && c.LowerShadow() <= body*0.1
	switch {
	case trend == downTrend && longLower:
		return &candleHit{pattern.Hammer, signal.Buy, signal.Strong}
	case trend == upTrend && longLower:
		return &candleHit{pattern.HangingMan, signal.Sell, signal.Weak}
	case trend == downTrend && longUpper:
		return &candleHit{pattern.InvertedHammer, signal.Buy, signal.Weak}
	case trend == upTrend && longUpper:
		return &candleHit{pattern.ShootingStar, signal.Sell, signal.Strong}
	}
	if bodyRatio(c) < 0.1 {
		switch trend {
		case upTrend:
			return &candleHit{pattern.Doji, signal.Sell, signal.Weak}
		case downTrend:
			return &candleHit{pattern.Doji, signal.Buy, signal.Weak}
		}
	}
	return nil
}

func (s *CandlestickStrategy) double(prev, cur market.Candle, trend candleTrend) *candleHit {
	bigPrev := prev.Body() > prev.Range()*s.BodyMinRatio
	switch {
	case trend == downTrend && !prev.Bullish() && cur.Bullish() &&
		cur.Open < prev.Close && cur.Close > prev.Open:
		return &candleHit{pattern.BullishEngulfing, signal.Buy, signal.Strong}
	case trend == upTrend && prev.Bullish() && !cur.Bullish() &&
		cur.Open > prev.Close && cur.Close < prev.Open:
		return &candleHit{pattern.BearishEngulfing, signal.Sell, signal.Strong}
	case trend == upTrend && prev.Bullish() && !cur.Bullish() && bigPrev &&
		cur.Open > prev.High && cur.Close < prev.Midpoint():
		return &candleHit{pattern.DarkCloudCover, signal.Sell, signal.Strong}
	case trend == downTrend && !prev.Bullish() && cur.Bullish() && bigPrev &&
		cur.Open < prev.Low && cur.Close > prev.Midpoint():
		return &candleHit{pattern.PiercingPattern, signal.Buy, signal.Strong}
	}
	return nil
}

// triple 晨星/黄昏星需要趋势，三兵三鸦不看趋势。
func (s *CandlestickStrategy) triple(a, b, c market.Candle, trend candleTrend) *candleHit {
	big := func(x market.Candle) bool { return x.Body() > x.Range()*s.BodyMinRatio }
	smallStar := b.Body() < b.Range()*0.3
	switch {
	case trend == downTrend && !a.Bullish() && big(a) && smallStar && c.Bullish() && big(c) && c.Close > a.Midpoint():
		return &candleHit{pattern.MorningStar, signal.Buy, signal.Strong}
	case trend == upTrend && a.Bullish() && big(a) && smallStar && !c.Bullish() && big(c) && c.Close < a.Midpoint():
		return &candleHit{pattern.EveningStar, signal.Sell, signal.Strong}
	}
	short := func(shadow, body float64) bool { return shadow < body*0.3 }
	if a.Bullish() && b.Bullish() && c.Bullish() &&
		b.Close > a.Close && c.Close > b.Close &&
		b.Open > a.Open && b.Open < a.Close &&
		c.Open > b.Open && c.Open < b.Close &&
		short(a.UpperShadow(), a.Body()) && short(b.UpperShadow(), b.Body()) && short(c.UpperShadow(), c.Body()) {
		return &candleHit{pattern.ThreeWhiteSoldiers, signal.Buy, signal.Strong}
	}
	if !a.Bullish() && !b.Bullish() && !c.Bullish() &&
		b.Close < a.Close && c.Close < b.Close &&
		b.Open < a.Open && b.Open > a.Close &&
		c.Open < b.Open && c.Open > b.Close &&
		short(a.LowerShadow(), a.Body()) && short(b.LowerShadow(), b.Body()) && short(c.LowerShadow(), c.Body()) {
		return &candleHit{pattern.ThreeBlackCrows, signal.Sell, signal.Strong}
	}
	return nil
}
