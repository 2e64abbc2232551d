package backtest

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"candlesig/internal/logger"
	"candlesig/internal/market"
	"candlesig/internal/pkg/trading"
	"candlesig/internal/signal"
)

// ErrNoSignals 没有信号时不做回测。
var ErrNoSignals = errors.New("no signals to backtest")

// Options 回测参数。买卖比例按信号强度区分。
type Options struct {
	InitialCapital  decimal.Decimal `json:"initial_capital"`
	StrongBuyRatio  float64         `json:"strong_buy_ratio"`
	WeakBuyRatio    float64         `json:"weak_buy_ratio"`
	StrongSellRatio float64         `json:"strong_sell_ratio"`
	WeakSellRatio   float64         `json:"weak_sell_ratio"`
	// RiskFreeRate 年化无风险利率，用于夏普比率。
	RiskFreeRate float64 `json:"risk_free_rate"`
	TradingDays  int     `json:"trading_days"`
}

func DefaultOptions() Options {
	return Options{
		InitialCapital:  decimal.NewFromInt(100000),
		StrongBuyRatio:  0.8,
		WeakBuyRatio:    0.5,
		StrongSellRatio: 0.8,
		WeakSellRatio:   0.5,
		RiskFreeRate:    0.03,
		TradingDays:     252,
	}
}

func (o Options) Normalize() Options {
	def := DefaultOptions()
	if !o.InitialCapital.IsPositive() {
		o.InitialCapital = def.InitialCapital
	}
	if o.StrongBuyRatio <= 0 {
		o.StrongBuyRatio = def.StrongBuyRatio
	}
	if o.WeakBuyRatio <= 0 {
		o.WeakBuyRatio = def.WeakBuyRatio
	}
	if o.StrongSellRatio <= 0 {
		o.StrongSellRatio = def.StrongSellRatio
	}
	if o.WeakSellRatio <= 0 {
		o.WeakSellRatio = def.WeakSellRatio
	}
	if o.RiskFreeRate < 0 {
		o.RiskFreeRate = def.RiskFreeRate
	}
	if o.TradingDays <= 0 {
		o.TradingDays = def.TradingDays
	}
	return o
}

func (o Options) buyRatio(s signal.Strength) float64 {
	if s == signal.Strong {
		return o.StrongBuyRatio
	}
	return o.WeakBuyRatio
}

func (o Options) sellRatio(s signal.Strength) float64 {
	if s == signal.Strong {
		return o.StrongSellRatio
	}
	return o.WeakSellRatio
}

// Trade 一笔成交。Capital/Position 为成交后的现金与持仓。
type Trade struct {
	Date     int64           `json:"date"`
	Type     signal.Type     `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Shares   int64           `json:"shares"`
	Amount   decimal.Decimal `json:"amount"`
	Strength signal.Strength `json:"strength"`
	Capital  decimal.Decimal `json:"capital"`
	Position int64           `json:"position"`
}

// Result 回测结果，TotalReturn 为百分比。
type Result struct {
	RunID          string          `json:"run_id"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalValue     decimal.Decimal `json:"final_value"`
	TotalReturn    float64         `json:"total_return"`
	Capital        decimal.Decimal `json:"capital"`
	Position       int64           `json:"position"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Trades         []Trade         `json:"trades"`

	Metrics     StrategyMetrics `json:"metrics"`
	Risk        *RiskMetrics    `json:"risk,omitempty"`
	Performance Performance     `json:"performance"`
	Holdings    []Holding       `json:"holdings"`
	Advice      string          `json:"advice"`
}

// Run 按信号顺序模拟交易：空仓时买入信号按比例买入，有持仓时卖出信号按比例卖出。
// 成交价优先取信号当日收盘价，找不到对应 K 线时使用信号价格。
func Run(candles []market.Candle, signals []signal.Signal, opts Options) (Result, error) {
	if len(signals) == 0 {
		return Result{}, ErrNoSignals
	}
	if len(candles) == 0 {
		return Result{}, market.ErrInvalidSeries
	}
	if err := market.ValidateSeries(candles); err != nil {
		return Result{}, err
	}
	opts = opts.Normalize()
	sorted := make([]signal.Signal, len(signals))
	copy(sorted, signals)
	signal.SortByDate(sorted)

	closeByDate := make(map[int64]float64, len(candles))
	for _, c := range candles {
		closeByDate[c.OpenTime] = c.Close
	}

	capital := opts.InitialCapital
	var position int64
	var trades []Trade
	for _, s := range sorted {
		px, ok := closeByDate[s.Date]
		if !ok {
			px = s.Price
		}
		price := decimal.NewFromFloat(px)
		switch {
		case s.Type == signal.Buy && position == 0:
			shares := trading.CalcBuyShares(capital, price, opts.buyRatio(s.Strength))
			if shares <= 0 {
				continue
			}
			cost := trading.Amount(shares, price)
			capital = capital.Sub(cost)
			position += shares
			trades = append(trades, Trade{s.Date, signal.Buy, price, shares, cost, s.Strength, capital, position})
		case s.Type == signal.Sell && position > 0:
			shares := trading.CalcSellShares(position, opts.sellRatio(s.Strength))
			if shares <= 0 {
				continue
			}
			revenue := trading.Amount(shares, price)
			capital = capital.Add(revenue)
			position -= shares
			trades = append(trades, Trade{s.Date, signal.Sell, price, shares, revenue, s.Strength, capital, position})
		}
	}

	last := decimal.NewFromFloat(candles[len(candles)-1].Close)
	final := capital.Add(trading.Amount(position, last))
	ret, _ := final.Sub(opts.InitialCapital).Div(opts.InitialCapital).Mul(decimal.NewFromInt(100)).Float64()
	res := Result{
		RunID:          uuid.NewString(),
		InitialCapital: opts.InitialCapital,
		FinalValue:     final,
		TotalReturn:    ret,
		Capital:        capital,
		Position:       position,
		FinalPrice:     last,
		Trades:         trades,
		Metrics:        CalcStrategyMetrics(sorted),
		Risk:           CalcRiskMetrics(candles, opts),
		Advice:         TradingAdvice(candles, sorted),
	}
	res.Performance = CalcPerformance(candles, res)
	res.Holdings = CalcHoldings(candles, res)
	logger.Debugf("回测 %s: 信号 %d 个, 成交 %d 笔, 收益 %.2f%%", res.RunID, len(sorted), len(trades), ret)
	return res, nil
}
