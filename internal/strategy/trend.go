package strategy

import (
	"math"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// MACDStrategy DIFF/DEA 交叉策略。
type MACDStrategy struct {
	Fast, Slow, Signal int
	// StrongAngle 金叉时 DIFF 两日斜率换算角度超过该值记为强信号。
	StrongAngle float64
}

func NewMACDStrategy() *MACDStrategy {
	return &MACDStrategy{Fast: 12, Slow: 26, Signal: 9, StrongAngle: 30}
}

func (s *MACDStrategy) Type() Type { return MACD }

func (s *MACDStrategy) Generate(candles []market.Candle) (Result, error) {
	m := indicator.MACD(market.Closes(candles), s.Fast, s.Slow, s.Signal)
	var out []signal.Signal
	for i := 1; i < len(candles); i++ {
		pd, pe := m.Diff[i-1], m.Dea[i-1]
		cd, ce := m.Diff[i], m.Dea[i]
		if anyNaN(pd, pe, cd, ce) {
			continue
		}
		angle := 0.0
		if i >= 2 && !math.IsNaN(m.Diff[i-2]) {
			if delta := cd - m.Diff[i-2]; math.Abs(delta) > 1e-10 {
				angle = math.Abs(delta / 2 * 45)
			}
		}
		switch {
		case pd <= pe && cd > ce && cd > 0:
			out = append(out, newSignal(candles[i], signal.Buy, strengthIf(angle > s.StrongAngle), MACD))
		case pd >= pe && cd < ce:
			out = append(out, newSignal(candles[i], signal.Sell, strengthIf(cd < 0 && ce < 0), MACD))
		}
	}
	return Result{
		Type:    MACD,
		Signals: out,
		Metadata: map[string]any{
			"description":     "基于MACD指标的交易信号",
			"indicators_used": []string{"MACD", "DIFF", "DEA"},
		},
	}, nil
}

// SMAStrategy 均线交叉策略。买入需前一日 DIFF、DEA 均为正；卖出总是强信号。
type SMAStrategy struct {
	Short, Long int
}

func NewSMAStrategy() *SMAStrategy { return &SMAStrategy{Short: 5, Long: 10} }

func (s *SMAStrategy) Type() Type { return SMA }

func (s *SMAStrategy) Generate(candles []market.Candle) (Result, error) {
	res := Result{
		Type: SMA,
		Metadata: map[string]any{
			"description":     "基于简单移动平均线的交易信号",
			"indicators_used": []string{"MA5", "MA10", "MA30", "MA250"},
		},
	}
	if len(candles) < s.Long+1 {
		return res, nil
	}
	closes := market.Closes(candles)
	short := indicator.SMA(closes, s.Short, 0)
	long := indicator.SMA(closes, s.Long, 0)
	m := indicator.MACD(closes, 12, 26, 9)
	for i := 1; i < len(candles); i++ {
		ps, cs := short[i-1], short[i]
		pl, cl := long[i-1], long[i]
		pd, pe := m.Diff[i-1], m.Dea[i-1]
		if anyNaN(ps, cs, pl, cl, pd, pe, m.Diff[i], m.Dea[i]) {
			continue
		}
		if ps <= pl && cs > cl && pd > 0 && pe > 0 {
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Buy, signal.Strong, SMA))
		}
		if ps >= pl && cs < cl {
			res.Signals = append(res.Signals, newSignal(candles[i], signal.Sell, signal.Strong, SMA))
		}
	}
	return res, nil
}

// TurtleStrategy 唐奇安通道突破，持仓状态在一次计算内维护。
type TurtleStrategy struct {
	EntryWindow int
	ExitWindow  int
	ATRPeriod   int
	AllowShort  bool
	// StrongATR 突破幅度达到该倍数 ATR 记为强信号。
	StrongATR float64
}

func NewTurtleStrategy() *TurtleStrategy {
	return &TurtleStrategy{EntryWindow: 20, ExitWindow: 10, ATRPeriod: 20, StrongATR: 0.5}
}

func (s *TurtleStrategy) Type() Type { return Turtle }

func (s *TurtleStrategy) Generate(candles []market.Candle) (Result, error) {
	cols := market.Split(candles)
	entry := indicator.Donchian(cols.Highs, cols.Lows, s.EntryWindow)
	exit := indicator.Donchian(cols.Highs, cols.Lows, s.ExitWindow)
	atr := indicator.ATR(cols.Highs, cols.Lows, cols.Closes, s.ATRPeriod, indicator.ATRMethodEMA)

	var out []signal.Signal
	position := 0 // 0 空仓, 1 多头, -1 空头
	for i, c := range candles {
		price := c.Close
		upper, lower := entry.Upper[i], entry.Lower[i]
		exitLow, exitUp := exit.Lower[i], exit.Upper[i]
		curATR := atr[i]

		if position <= 0 && !math.IsNaN(upper) && price >= upper {
			strong := !math.IsNaN(curATR) && (price-upper)/(curATR+1e-9) >= s.StrongATR
			out = append(out, newSignal(c, signal.Buy, strengthIf(strong), Turtle))
			position = 1
			continue
		}
		if position == 1 && !math.IsNaN(exitLow) && price <= exitLow {
			out = append(out, newSignal(c, signal.Sell, signal.Weak, Turtle))
			position = 0
			continue
		}
		if !s.AllowShort {
			continue
		}
		if position >= 0 && !math.IsNaN(lower) && price <= lower {
			strong := !math.IsNaN(curATR) && (lower-price)/(curATR+1e-9) >= s.StrongATR
			out = append(out, newSignal(c, signal.Sell, strengthIf(strong), Turtle))
			position = -1
			continue
		}
		if position == -1 && !math.IsNaN(exitUp) && price >= exitUp {
			out = append(out, newSignal(c, signal.Buy, signal.Weak, Turtle))
			position = 0
		}
	}
	return Result{
		Type:    Turtle,
		Signals: out,
		Metadata: map[string]any{
			"description":  "基于唐奇安通道的交易信号",
			"entry_window": s.EntryWindow,
			"exit_window":  s.ExitWindow,
			"atr_period":   s.ATRPeriod,
			"allow_short":  s.AllowShort,
		},
	}, nil
}

// CBRStrategy 确认型反转：T-2 到 T-1 回调，T 日收盘突破或 MACD 交叉确认。
type CBRStrategy struct{}

func NewCBRStrategy() *CBRStrategy { return &CBRStrategy{} }

func (s *CBRStrategy) Type() Type { return CBR }

func (s *CBRStrategy) Generate(candles []market.Candle) (Result, error) {
	res := Result{
		Type: CBR,
		Metadata: map[string]any{
			"description":     "基于价格形态和MACD确认的反转策略",
			"indicators_used": []string{"Price Pattern", "MACD"},
		},
	}
	if len(candles) < 3 {
		return res, nil
	}
	m := indicator.MACD(market.Closes(candles), 12, 26, 9)
	for i := 2; i < len(candles); i++ {
		t2, t1, t := candles[i-2], candles[i-1], candles[i]
		golden := m.Diff[i] > m.Dea[i] && m.Diff[i-1] <= m.Dea[i-1]
		dead := m.Diff[i] < m.Dea[i] && m.Diff[i-1] >= m.Dea[i-1]

		pullback := t2.High > t1.High && t2.Low > t1.Low
		rally := t2.High < t1.High && t2.Low < t1.Low
		switch {
		case pullback && (t.Close > t1.High || golden):
			res.Signals = append(res.Signals, newSignal(t, signal.Buy, signal.Strong, CBR))
		case rally && (t.Close < t1.Low || dead):
			res.Signals = append(res.Signals, newSignal(t, signal.Sell, signal.Strong, CBR))
		}
	}
	return res, nil
}

func anyNaN(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
