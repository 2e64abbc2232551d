package indicator

import (
	"fmt"
	"math"

	"candlesig/internal/market"
)

type Settings struct {
	Symbol   string
	Interval string
	MACD     MACDSettings     `json:"macd,omitempty"`
	RSI      RSISettings      `json:"rsi,omitempty"`
	MA       []int            `json:"ma,omitempty"`
	Turtle   DonchianSettings `json:"turtle,omitempty"`
	Boll     BollSettings     `json:"boll,omitempty"`
	KDJ      KDJSettings      `json:"kdj,omitempty"`
}

type MACDSettings struct {
	Fast   int `json:"fast,omitempty" yaml:"fast,omitempty" toml:"fast,omitempty"`
	Slow   int `json:"slow,omitempty" yaml:"slow,omitempty" toml:"slow,omitempty"`
	Signal int `json:"signal,omitempty" yaml:"signal,omitempty" toml:"signal,omitempty"`
}

type RSISettings struct {
	Period     int     `json:"period,omitempty" yaml:"period,omitempty" toml:"period,omitempty"`
	Periods    []int   `json:"periods,omitempty" yaml:"periods,omitempty" toml:"periods,omitempty"`
	Oversold   float64 `json:"oversold,omitempty" yaml:"oversold,omitempty" toml:"oversold,omitempty"`
	Overbought float64 `json:"overbought,omitempty" yaml:"overbought,omitempty" toml:"overbought,omitempty"`
}

type DonchianSettings struct {
	EntryWindow int `json:"entry_window,omitempty" yaml:"entry_window,omitempty" toml:"entry_window,omitempty"`
	ExitWindow  int `json:"exit_window,omitempty" yaml:"exit_window,omitempty" toml:"exit_window,omitempty"`
	ATRPeriod   int `json:"atr_period,omitempty" yaml:"atr_period,omitempty" toml:"atr_period,omitempty"`
}

type BollSettings struct {
	Period int     `json:"period,omitempty" yaml:"period,omitempty" toml:"period,omitempty"`
	StdDev float64 `json:"std_dev,omitempty" yaml:"std_dev,omitempty" toml:"std_dev,omitempty"`
}

type KDJSettings struct {
	N  int `json:"n,omitempty" yaml:"n,omitempty" toml:"n,omitempty"`
	M1 int `json:"m1,omitempty" yaml:"m1,omitempty" toml:"m1,omitempty"`
	M2 int `json:"m2,omitempty" yaml:"m2,omitempty" toml:"m2,omitempty"`
}

// NormalizeSettings 填充默认参数。
func NormalizeSettings(in Settings) Settings {
	out := in
	if out.MACD.Fast <= 0 {
		out.MACD.Fast = 12
	}
	if out.MACD.Slow <= 0 {
		out.MACD.Slow = 26
	}
	if out.MACD.Signal <= 0 {
		out.MACD.Signal = 9
	}
	if out.RSI.Period <= 0 {
		out.RSI.Period = 14
	}
	if len(out.RSI.Periods) == 0 {
		out.RSI.Periods = []int{6, 12, 24}
	}
	if out.RSI.Oversold == 0 {
		out.RSI.Oversold = 30
	}
	if out.RSI.Overbought == 0 {
		out.RSI.Overbought = 70
	}
	if len(out.MA) == 0 {
		out.MA = []int{5, 10, 20, 60, 250}
	}
	if out.Turtle.EntryWindow <= 0 {
		out.Turtle.EntryWindow = 20
	}
	if out.Turtle.ExitWindow <= 0 {
		out.Turtle.ExitWindow = 10
	}
	if out.Turtle.ATRPeriod <= 0 {
		out.Turtle.ATRPeriod = 20
	}
	if out.Boll.Period <= 1 {
		out.Boll.Period = 20
	}
	if out.Boll.StdDev <= 0 {
		out.Boll.StdDev = 2.0
	}
	if out.KDJ.N <= 0 {
		out.KDJ.N = 9
	}
	if out.KDJ.M1 <= 0 {
		out.KDJ.M1 = 3
	}
	if out.KDJ.M2 <= 0 {
		out.KDJ.M2 = 3
	}
	return out
}

// Set 是与 K 线逐 bar 对齐的派生指标集合，未满窗口的位置为 NaN。
type Set struct {
	MACD     MACDResult        `json:"macd"`
	RSI      []float64         `json:"rsi"`
	RSIMulti map[int][]float64 `json:"rsi_multi,omitempty"`
	MA       map[int][]float64 `json:"ma"`
	VolMA5   []float64         `json:"vol_ma5"`
	VolMA10  []float64         `json:"vol_ma10"`
	Entry    Channel           `json:"entry"`
	Exit     Channel           `json:"exit"`
	ATR      []float64         `json:"atr"`
}

// ComputeSet 计算多阶段分析器与图表共用的指标集合。
func ComputeSet(candles []market.Candle, cfg Settings) Set {
	cfg = NormalizeSettings(cfg)
	cols := market.Split(candles)
	set := Set{
		MACD:     MACD(cols.Closes, cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal),
		RSI:      RSI(cols.Closes, cfg.RSI.Period),
		RSIMulti: RSIMulti(cols.Closes, cfg.RSI.Periods...),
		MA:       make(map[int][]float64, len(cfg.MA)),
		VolMA5:   VolumeMA(cols.Volumes, 5),
		VolMA10:  VolumeMA(cols.Volumes, 10),
		Entry:    Donchian(cols.Highs, cols.Lows, cfg.Turtle.EntryWindow),
		Exit:     Donchian(cols.Highs, cols.Lows, cfg.Turtle.ExitWindow),
		ATR:      ATR(cols.Highs, cols.Lows, cols.Closes, cfg.Turtle.ATRPeriod, ATRMethodEMA),
	}
	for _, w := range cfg.MA {
		set.MA[w] = SMA(cols.Closes, w, 0)
	}
	return set
}

type IndicatorValue struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

type Report struct {
	Symbol   string                    `json:"symbol"`
	Interval string                    `json:"interval"`
	Count    int                       `json:"count"`
	Values   map[string]IndicatorValue `json:"values"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// ComputeReport 汇总最新指标值与状态，供 HTTP/CLI 展示。
func ComputeReport(candles []market.Candle, cfg Settings) (Report, error) {
	rep := Report{
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Count:    len(candles),
		Values:   make(map[string]IndicatorValue),
	}
	if len(candles) == 0 {
		return rep, fmt.Errorf("no candles")
	}
	cfg = NormalizeSettings(cfg)
	cols := market.Split(candles)
	lastClose := cols.Closes[len(cols.Closes)-1]

	macd := MACD(cols.Closes, cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal)
	histSeries := sanitizeSeries(macd.Hist)
	rep.Values["macd"] = IndicatorValue{
		Latest: lastValid(sanitizeSeries(macd.Diff)),
		Series: histSeries,
		State:  polarityState(lastValid(histSeries)),
		Note:   fmt.Sprintf("dea=%.4f hist=%.4f", lastValid(sanitizeSeries(macd.Dea)), lastValid(histSeries)),
	}

	rsiSeries := sanitizeSeries(RSI(cols.Closes, cfg.RSI.Period))
	rsiVal := lastValid(rsiSeries)
	state := "neutral"
	switch {
	case len(rsiSeries) == 0:
		state = "unknown"
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("rsi 需要至少 %d 根 K 线", cfg.RSI.Period+1))
	case rsiVal >= cfg.RSI.Overbought:
		state = "overbought"
	case rsiVal <= cfg.RSI.Oversold:
		state = "oversold"
	}
	rep.Values["rsi"] = IndicatorValue{
		Latest: rsiVal,
		Series: rsiSeries,
		State:  state,
		Note:   fmt.Sprintf("period=%d thresholds=%.1f/%.1f", cfg.RSI.Period, cfg.RSI.Oversold, cfg.RSI.Overbought),
	}
	for p, series := range RSIMulti(cols.Closes, cfg.RSI.Periods...) {
		clean := sanitizeSeries(series)
		rep.Values[fmt.Sprintf("rsi%d", p)] = IndicatorValue{
			Latest: lastValid(clean),
			Series: clean,
			State:  stochasticState(lastValid(clean)),
			Note:   fmt.Sprintf("period=%d", p),
		}
	}

	for _, w := range cfg.MA {
		series := sanitizeSeries(SMA(cols.Closes, w, 0))
		if len(series) == 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("MA%d 数据不足", w))
			continue
		}
		rep.Values[fmt.Sprintf("ma%d", w)] = IndicatorValue{
			Latest: lastValid(series),
			Series: series,
			State:  relativeState(lastClose, lastValid(series)),
			Note:   fmt.Sprintf("MA%d vs price", w),
		}
	}

	volMA5 := sanitizeSeries(VolumeMA(cols.Volumes, 5))
	rep.Values["vol_ma5"] = IndicatorValue{
		Latest: lastValid(volMA5),
		Series: volMA5,
		State:  relativeState(cols.Volumes[len(cols.Volumes)-1], lastValid(volMA5)),
		Note:   "volume vs VOL_MA5",
	}

	donchian := Donchian(cols.Highs, cols.Lows, cfg.Turtle.EntryWindow)
	upper := sanitizeSeries(donchian.Upper)
	lower := sanitizeSeries(donchian.Lower)
	rep.Values["donchian"] = IndicatorValue{
		Latest: lastValid(upper),
		Series: upper,
		State:  channelState(lastClose, lastValid(upper), lastValid(lower)),
		Note:   fmt.Sprintf("window=%d lower=%.4f", cfg.Turtle.EntryWindow, lastValid(lower)),
	}

	atrSeries := sanitizeSeries(ATR(cols.Highs, cols.Lows, cols.Closes, cfg.Turtle.ATRPeriod, ATRMethodEMA))
	rep.Values["atr"] = IndicatorValue{
		Latest: lastValid(atrSeries),
		Series: atrSeries,
		State:  "volatility",
		Note:   fmt.Sprintf("period=%d", cfg.Turtle.ATRPeriod),
	}

	boll := Bollinger(cols.Closes, cfg.Boll.Period, cfg.Boll.StdDev)
	bollUpper := sanitizeSeries(boll.Upper)
	bollLower := sanitizeSeries(boll.Lower)
	rep.Values["boll"] = IndicatorValue{
		Latest: lastValid(sanitizeSeries(boll.Middle)),
		Series: sanitizeSeries(boll.Middle),
		State:  channelState(lastClose, lastValid(bollUpper), lastValid(bollLower)),
		Note:   fmt.Sprintf("upper=%.4f lower=%.4f", lastValid(bollUpper), lastValid(bollLower)),
	}

	kdj := KDJ(cols.Highs, cols.Lows, cols.Closes, cfg.KDJ.N, cfg.KDJ.M1, cfg.KDJ.M2)
	kSeries := sanitizeSeries(kdj.K)
	rep.Values["kdj"] = IndicatorValue{
		Latest: lastValid(kSeries),
		Series: kSeries,
		State:  stochasticState(lastValid(kSeries)),
		Note:   fmt.Sprintf("d=%.2f j=%.2f", lastValid(sanitizeSeries(kdj.D)), lastValid(sanitizeSeries(kdj.J))),
	}

	adx := sanitizeSeries(ADX(cols.Highs, cols.Lows, cols.Closes, 20).ADX)
	adxState := "ranging"
	if len(adx) > 0 && lastValid(adx) > 25 {
		adxState = "trending"
	}
	rep.Values["adx"] = IndicatorValue{
		Latest: lastValid(adx),
		Series: adx,
		State:  adxState,
		Note:   "window=20",
	}
	return rep, nil
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, round4(v))
	}
	return out
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}

func channelState(price, upper, lower float64) string {
	switch {
	case upper == 0 && lower == 0:
		return "unknown"
	case price >= upper:
		return "breakout_up"
	case price <= lower:
		return "breakout_down"
	default:
		return "inside"
	}
}

func polarityState(v float64) string {
	switch {
	case v > 0:
		return "positive"
	case v < 0:
		return "negative"
	default:
		return "flat"
	}
}

func stochasticState(v float64) string {
	switch {
	case v >= 80:
		return "overbought"
	case v <= 20:
		return "oversold"
	default:
		return "neutral"
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
