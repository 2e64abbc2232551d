package backtest

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"candlesig/internal/market"
	"candlesig/internal/signal"
)

const dayMillis = int64(86400000)

// StrategyMetrics 信号层面的统计。卖出信号与最近一次未配对的买入信号配对。
type StrategyMetrics struct {
	TotalSignals         int     `json:"total_signals"`
	BuySignals           int     `json:"buy_signals"`
	SellSignals          int     `json:"sell_signals"`
	AvgHoldingDays       float64 `json:"avg_holding_period"`
	WinRate              float64 `json:"win_rate"`
	ProfitLossRatio      float64 `json:"profit_loss_ratio"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
}

// CalcStrategyMetrics signals 需已按日期排序。
func CalcStrategyMetrics(signals []signal.Signal) StrategyMetrics {
	m := StrategyMetrics{TotalSignals: len(signals)}
	type entry struct {
		date  int64
		price float64
	}
	var (
		open     []entry
		holdings []float64
		profits  []float64
		wins     int
		losses   int
	)
	for _, s := range signals {
		switch s.Type {
		case signal.Buy:
			m.BuySignals++
			open = append(open, entry{s.Date, s.Price})
		case signal.Sell:
			m.SellSignals++
			if len(open) == 0 {
				continue
			}
			last := open[len(open)-1]
			open = open[:len(open)-1]
			if d := (s.Date - last.date) / dayMillis; d > 0 {
				holdings = append(holdings, float64(d))
			}
			if last.price <= 0 {
				continue
			}
			p := (s.Price - last.price) / last.price
			profits = append(profits, p)
			if p > 0 {
				wins++
				losses = 0
				m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, wins)
			} else {
				losses++
				wins = 0
				m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, losses)
			}
		}
	}
	m.AvgHoldingDays = mean(holdings)

	var sumWin, sumLoss float64
	for _, p := range profits {
		if p > 0 {
			m.WinningTrades++
			sumWin += p
		} else {
			m.LosingTrades++
			sumLoss += p
		}
	}
	m.TotalTrades = len(profits)
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	var avgWin, avgLoss float64
	if m.WinningTrades > 0 {
		avgWin = sumWin / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		avgLoss = math.Abs(sumLoss / float64(m.LosingTrades))
	}
	if avgLoss > 0 {
		m.ProfitLossRatio = avgWin / avgLoss
	}
	return m
}

// RiskMetrics 标的本身的风险指标（与策略无关）。
type RiskMetrics struct {
	Volatility  float64 `json:"volatility"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
}

// CalcRiskMetrics 少于两根 K 线时返回 nil。
func CalcRiskMetrics(candles []market.Candle, opts Options) *RiskMetrics {
	if len(candles) < 2 {
		return nil
	}
	opts = opts.Normalize()
	returns := make([]float64, 0, len(candles)-1)
	peak := candles[0].Close
	var dd float64
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		returns = append(returns, cur/prev-1)
		peak = math.Max(peak, cur)
		dd = math.Min(dd, (cur-peak)/peak)
	}
	days := float64(opts.TradingDays)
	std := stddev(returns)
	rm := &RiskMetrics{
		Volatility:  std * math.Sqrt(days),
		MaxDrawdown: dd,
	}
	if std > 0 {
		rm.SharpeRatio = (mean(returns)*days - opts.RiskFreeRate) / (std * math.Sqrt(days))
	}
	return rm
}

// Performance 策略与买入持有的累计收益（百分比），与 K 线逐根对齐。
type Performance struct {
	Dates     []int64   `json:"dates"`
	Strategy  []float64 `json:"strategy"`
	Benchmark []float64 `json:"benchmark"`
}

// Holding 某日收盘后的持仓市值与现金。
type Holding struct {
	Date          int64           `json:"date"`
	Position      int64           `json:"position"`
	PositionValue decimal.Decimal `json:"position_value"`
	Cash          decimal.Decimal `json:"cash"`
}

// CalcHoldings 按成交记录回放每日持仓与现金。
func CalcHoldings(candles []market.Candle, res Result) []Holding {
	out := make([]Holding, 0, len(candles))
	cash := res.InitialCapital
	var position int64
	ti := 0
	for _, c := range candles {
		for ti < len(res.Trades) && res.Trades[ti].Date <= c.OpenTime {
			cash, position = res.Trades[ti].Capital, res.Trades[ti].Position
			ti++
		}
		out = append(out, Holding{
			Date:          c.OpenTime,
			Position:      position,
			PositionValue: decimal.NewFromFloat(c.Close).Mul(decimal.NewFromInt(position)),
			Cash:          cash,
		})
	}
	return out
}

func CalcPerformance(candles []market.Candle, res Result) Performance {
	perf := Performance{
		Dates:     make([]int64, len(candles)),
		Strategy:  make([]float64, len(candles)),
		Benchmark: make([]float64, len(candles)),
	}
	if len(candles) == 0 {
		return perf
	}
	initial, _ := res.InitialCapital.Float64()
	base := candles[0].Close
	for i, h := range CalcHoldings(candles, res) {
		value, _ := h.Cash.Add(h.PositionValue).Float64()
		perf.Dates[i] = h.Date
		if initial > 0 {
			perf.Strategy[i] = (value/initial - 1) * 100
		}
		if base > 0 {
			perf.Benchmark[i] = (candles[i].Close/base - 1) * 100
		}
	}
	return perf
}

// TradingAdvice 以最新信号给出操作建议，价格取最后一根 K 线收盘价。
func TradingAdvice(candles []market.Candle, signals []signal.Signal) string {
	if len(signals) == 0 {
		return "当前无明确交易信号"
	}
	if len(candles) == 0 {
		return "当前无历史交易信号"
	}
	now := candles[len(candles)-1]
	var latest *signal.Signal
	for i := range signals {
		if signals[i].Date > now.OpenTime {
			continue
		}
		if latest == nil || signals[i].Date >= latest.Date {
			latest = &signals[i]
		}
	}
	if latest == nil {
		return "当前无历史交易信号"
	}
	price := now.Close
	switch {
	case latest.Type == signal.Buy && latest.Strength == signal.Strong:
		return fmt.Sprintf("🔴 🔥 MB（强烈买入），当前价格：¥%.2f", price)
	case latest.Type == signal.Buy:
		return fmt.Sprintf("🔴 🥀 MB（建议买入），当前价格：¥%.2f", price)
	case latest.Strength == signal.Strong:
		return fmt.Sprintf("🟢 🔥 MS（强烈卖出），当前价格：¥%.2f", price)
	default:
		return fmt.Sprintf("🟢 🥀 MS（建议卖出），当前价格：¥%.2f", price)
	}
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// stddev 样本标准差（n-1）。
func stddev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	var s float64
	for _, x := range v {
		s += (x - m) * (x - m)
	}
	return math.Sqrt(s / float64(len(v)-1))
}
