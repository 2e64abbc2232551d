package strategy

import (
	"math"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// RSIStrategy 超买超卖回归。
type RSIStrategy struct {
	Period     int
	Oversold   float64
	Overbought float64
	// StrongMove 单日 RSI 变化超过该值记为强信号。
	StrongMove float64
}

func NewRSIStrategy() *RSIStrategy {
	return &RSIStrategy{Period: 14, Oversold: 30, Overbought: 70, StrongMove: 5}
}

func (s *RSIStrategy) Type() Type { return RSI }

func (s *RSIStrategy) Generate(candles []market.Candle) (Result, error) {
	res := Result{
		Type: RSI,
		Metadata: map[string]any{
			"description": "基于RSI指标的超买超卖交易信号",
			"period":      s.Period,
			"oversold":    s.Oversold,
			"overbought":  s.Overbought,
		},
	}
	if len(candles) < s.Period+1 {
		return res, nil
	}
	rsi := indicator.RSI(market.Closes(candles), s.Period)
	for i := 1; i < len(candles); i++ {
		prev, cur := rsi[i-1], rsi[i]
		if anyNaN(prev, cur) {
			continue
		}
		switch {
		case prev < s.Oversold && cur >= s.Oversold:
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Buy, strengthIf(cur-prev > s.StrongMove), RSI))
		case prev > s.Overbought && cur <= s.Overbought:
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Sell, strengthIf(prev-cur > s.StrongMove), RSI))
		}
	}
	return res, nil
}

// BollingerStrategy 价格自轨道外回归时产生信号。
type BollingerStrategy struct {
	Period int
	StdDev float64
	// StrongDistance 收盘价离开轨道的比例超过该值记为强信号。
	StrongDistance float64
}

func NewBollingerStrategy() *BollingerStrategy {
	return &BollingerStrategy{Period: 20, StdDev: 2, StrongDistance: 0.02}
}

func (s *BollingerStrategy) Type() Type { return Bollinger }

func (s *BollingerStrategy) Generate(candles []market.Candle) (Result, error) {
	res := Result{
		Type: Bollinger,
		Metadata: map[string]any{
			"description": "基于布林带的超买超卖交易信号",
			"period":      s.Period,
			"std_dev":     s.StdDev,
		},
	}
	if len(candles) < s.Period+1 {
		return res, nil
	}
	b := indicator.Bollinger(market.Closes(candles), s.Period, s.StdDev)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		upper, lower := b.Upper[i], b.Lower[i]
		if anyNaN(upper, lower) {
			continue
		}
		// 前一日轨道为 NaN 时比较恒为 false，不会触发。
		switch {
		case prev <= b.Lower[i-1] && cur > lower:
			strong := lower != 0 && (cur-lower)/lower > s.StrongDistance
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Buy, strengthIf(strong), Bollinger))
		case prev >= b.Upper[i-1] && cur < upper:
			strong := upper != 0 && (upper-cur)/upper > s.StrongDistance
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Sell, strengthIf(strong), Bollinger))
		}
	}
	return res, nil
}

// KDJStrategy K/D 交叉，极值区域内交叉为强信号。
type KDJStrategy struct {
	N, M1, M2  int
	Oversold   float64
	Overbought float64
}

func NewKDJStrategy() *KDJStrategy {
	return &KDJStrategy{N: 9, M1: 3, M2: 3, Oversold: 20, Overbought: 80}
}

func (s *KDJStrategy) Type() Type { return KDJ }

func (s *KDJStrategy) Generate(candles []market.Candle) (Result, error) {
	res := Result{
		Type: KDJ,
		Metadata: map[string]any{
			"description": "基于KDJ指标的交易信号",
			"n":           s.N,
			"m1":          s.M1,
			"m2":          s.M2,
		},
	}
	if len(candles) < s.N+s.M1+s.M2 {
		return res, nil
	}
	cols := market.Split(candles)
	kdj := indicator.KDJ(cols.Highs, cols.Lows, cols.Closes, s.N, s.M1, s.M2)
	for i := 1; i < len(candles); i++ {
		pk, pd := kdj.K[i-1], kdj.D[i-1]
		k, d := kdj.K[i], kdj.D[i]
		if anyNaN(pk, pd, k, d) {
			continue
		}
		switch {
		case pk <= pd && k > d:
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Buy, strengthIf(k < s.Oversold && d < s.Oversold), KDJ))
		case pk >= pd && k < d:
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Sell, strengthIf(k > s.Overbought && d > s.Overbought), KDJ))
		}
	}
	return res, nil
}

// Regime 市场状态，用于自适应融合。
type Regime string

const (
	RegimeTrending Regime = "trending"
	RegimeRanging  Regime = "ranging"
)

func (r Regime) Text() string {
	if r == RegimeTrending {
		return "趋势市场"
	}
	return "震荡市场"
}

// TrendADX ADX 高于该值视为趋势市场。
const TrendADX = 25.0

// DetectMarketRegime 以最新 ADX 判断趋势/震荡，数据不足视为震荡。
func DetectMarketRegime(candles []market.Candle, window int) Regime {
	if window <= 0 {
		window = 20
	}
	if len(candles) < window+1 {
		return RegimeRanging
	}
	cols := market.Split(candles)
	adx := indicator.ADX(cols.Highs, cols.Lows, cols.Closes, window).ADX
	last := adx[len(adx)-1]
	if math.IsNaN(last) || last <= TrendADX {
		return RegimeRanging
	}
	return RegimeTrending
}
