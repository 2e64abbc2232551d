package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// ATRMethod 选择 TR 的平滑方式。
type ATRMethod string

const (
	ATRMethodEMA ATRMethod = "ema"
	ATRMethodSMA ATRMethod = "sma"
)

// MACDResult 为逐 bar 对齐的 DIFF/DEA/柱状图。
type MACDResult struct {
	Diff []float64 `json:"diff"`
	Dea  []float64 `json:"dea"`
	Hist []float64 `json:"hist"`
}

// Channel 为通道上下轨。
type Channel struct {
	Upper []float64 `json:"upper"`
	Lower []float64 `json:"lower"`
}

// Bands 为布林带三轨。
type Bands struct {
	Upper  []float64 `json:"upper"`
	Middle []float64 `json:"middle"`
	Lower  []float64 `json:"lower"`
}

// KDJResult K/D/J 三线。
type KDJResult struct {
	K []float64 `json:"k"`
	D []float64 `json:"d"`
	J []float64 `json:"j"`
}

// ADXResult 为 ADX 及正负方向指标。
type ADXResult struct {
	ADX     []float64 `json:"adx"`
	PlusDI  []float64 `json:"plus_di"`
	MinusDI []float64 `json:"minus_di"`
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// EWM 递推指数加权均值：out = alpha*x + (1-alpha)*prev，从首个非 NaN 值起算。
// NaN 输入沿用上一个结果。
func EWM(values []float64, alpha float64) []float64 {
	out := nanSeries(len(values))
	started := false
	prev := 0.0
	for i, v := range values {
		if math.IsNaN(v) {
			if started {
				out[i] = prev
			}
			continue
		}
		if !started {
			prev = v
			started = true
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// EMA 以 span 表达的 EWM，alpha = 2/(span+1)。
func EMA(values []float64, span int) []float64 {
	if span <= 0 {
		span = 1
	}
	return EWM(values, 2/(float64(span)+1))
}

// MACD 计算 DIFF/DEA/HIST，Hist 恒等于 Diff-Dea。
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	n := len(closes)
	diff := make([]float64, n)
	for i := range diff {
		diff[i] = emaFast[i] - emaSlow[i]
	}
	dea := EMA(diff, signal)
	hist := make([]float64, n)
	for i := range hist {
		hist[i] = diff[i] - dea[i]
	}
	return MACDResult{Diff: diff, Dea: dea, Hist: hist}
}

// RSI 采用 Wilder 平滑，前 period 根为 NaN。
func RSI(closes []float64, period int) []float64 {
	if period < 2 {
		period = 14
	}
	n := len(closes)
	out := nanSeries(n)
	if n <= period || hasNaN(closes) {
		return out
	}
	raw := talib.Rsi(closes, period)
	for i := period; i < n; i++ {
		out[i] = raw[i]
	}
	return out
}

// RSIMulti 一次计算多个周期的 RSI。
func RSIMulti(closes []float64, periods ...int) map[int][]float64 {
	out := make(map[int][]float64, len(periods))
	for _, p := range periods {
		out[p] = RSI(closes, p)
	}
	return out
}

// SMA 简单移动平均。minPeriods<=0 表示需要完整窗口，
// minPeriods>0 时窗口内有效值个数达到 minPeriods 即输出。
func SMA(values []float64, window, minPeriods int) []float64 {
	n := len(values)
	if window <= 0 {
		return nanSeries(n)
	}
	if minPeriods <= 0 || minPeriods > window {
		minPeriods = window
	}
	if minPeriods == window && !hasNaN(values) {
		out := nanSeries(n)
		if n < window {
			return out
		}
		raw := talib.Sma(values, window)
		for i := window - 1; i < n; i++ {
			out[i] = raw[i]
		}
		return out
	}
	return rollingMean(values, window, minPeriods)
}

func rollingMean(values []float64, window, minPeriods int) []float64 {
	out := nanSeries(len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		sum, cnt := 0.0, 0
		for j := start; j <= i; j++ {
			if math.IsNaN(values[j]) {
				continue
			}
			sum += values[j]
			cnt++
		}
		if cnt >= minPeriods && cnt > 0 {
			out[i] = sum / float64(cnt)
		}
	}
	return out
}

func rollingMax(values []float64, window int) []float64 {
	return rollingExtreme(values, window, math.Max)
}

func rollingMin(values []float64, window int) []float64 {
	return rollingExtreme(values, window, math.Min)
}

// rollingExtreme 包含当前 bar 的完整窗口极值，窗口内出现 NaN 则输出 NaN。
func rollingExtreme(values []float64, window int, pick func(a, b float64) float64) []float64 {
	n := len(values)
	out := nanSeries(n)
	if window <= 0 || n < window {
		return out
	}
	for i := window - 1; i < n; i++ {
		v := values[i-window+1]
		for j := i - window + 2; j <= i; j++ {
			v = pick(v, values[j])
		}
		out[i] = v
	}
	return out
}

// Donchian 通道：upper[i]/lower[i] 只取 [i-window, i-1] 区间，不含当前 bar。
func Donchian(highs, lows []float64, window int) Channel {
	n := len(highs)
	ch := Channel{Upper: nanSeries(n), Lower: nanSeries(n)}
	if window <= 0 || n <= window {
		return ch
	}
	maxH := talib.Max(highs, window)
	minL := talib.Min(lows, window)
	for i := window; i < n; i++ {
		ch.Upper[i] = maxH[i-1]
		ch.Lower[i] = minL[i-1]
	}
	return ch
}

// TrueRange TR[0] 取 high-low，其余取三者最大值。
func TrueRange(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if n == 0 {
		return nil
	}
	tr := talib.TRange(highs, lows, closes)
	tr[0] = highs[0] - lows[0]
	return tr
}

// ATR 对 TR 做 EMA（默认）或 SMA 平滑。
func ATR(highs, lows, closes []float64, period int, method ATRMethod) []float64 {
	if period <= 0 {
		period = 20
	}
	tr := TrueRange(highs, lows, closes)
	if method == ATRMethodSMA {
		return SMA(tr, period, 0)
	}
	return EMA(tr, period)
}

// Bollinger 中轨为 SMA，带宽使用样本标准差。
func Bollinger(closes []float64, period int, k float64) Bands {
	if period <= 1 {
		period = 20
	}
	if k <= 0 {
		k = 2.0
	}
	n := len(closes)
	b := Bands{Upper: nanSeries(n), Middle: SMA(closes, period, 0), Lower: nanSeries(n)}
	if n < period {
		return b
	}
	// talib.StdDev 为总体标准差，换算成样本标准差。
	scale := math.Sqrt(float64(period) / float64(period-1))
	std := talib.StdDev(closes, period, 1.0)
	for i := period - 1; i < n; i++ {
		if math.IsNaN(b.Middle[i]) {
			continue
		}
		s := std[i] * scale
		b.Upper[i] = b.Middle[i] + k*s
		b.Lower[i] = b.Middle[i] - k*s
	}
	return b
}

// KDJ RSV 取 n 周期高低点，K/D 分别以 1/m1、1/m2 平滑。
func KDJ(highs, lows, closes []float64, n, m1, m2 int) KDJResult {
	if n <= 0 {
		n = 9
	}
	if m1 <= 0 {
		m1 = 3
	}
	if m2 <= 0 {
		m2 = 3
	}
	size := len(closes)
	lowN := rollingMin(lows, n)
	highN := rollingMax(highs, n)
	rsv := nanSeries(size)
	for i := range rsv {
		if math.IsNaN(lowN[i]) || math.IsNaN(highN[i]) {
			continue
		}
		span := highN[i] - lowN[i]
		if span == 0 {
			continue
		}
		rsv[i] = (closes[i] - lowN[i]) / span * 100
	}
	k := EWM(rsv, 1/float64(m1))
	d := EWM(k, 1/float64(m2))
	j := nanSeries(size)
	for i := range j {
		if !math.IsNaN(k[i]) && !math.IsNaN(d[i]) {
			j[i] = 3*k[i] - 2*d[i]
		}
	}
	return KDJResult{K: k, D: d, J: j}
}

// ADX 使用滚动均值形式的 DI/DX，用于市场状态判断。
func ADX(highs, lows, closes []float64, window int) ADXResult {
	if window <= 0 {
		window = 20
	}
	n := len(closes)
	plusDM := nanSeries(n)
	minusDM := nanSeries(n)
	for i := 1; i < n; i++ {
		plusDM[i] = math.Max(highs[i]-highs[i-1], 0)
		minusDM[i] = math.Max(lows[i-1]-lows[i], 0)
	}
	tr := nanSeries(n)
	for i := 1; i < n; i++ {
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	if n > 0 {
		tr[0] = highs[0] - lows[0]
	}
	atr := rollingMean(tr, window, window)
	plusMean := rollingMean(plusDM, window, window)
	minusMean := rollingMean(minusDM, window, window)
	res := ADXResult{ADX: nanSeries(n), PlusDI: nanSeries(n), MinusDI: nanSeries(n)}
	dx := nanSeries(n)
	for i := 0; i < n; i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(plusMean[i]) || math.IsNaN(minusMean[i]) || atr[i] == 0 {
			continue
		}
		res.PlusDI[i] = 100 * plusMean[i] / atr[i]
		res.MinusDI[i] = 100 * minusMean[i] / atr[i]
		dx[i] = 100 * math.Abs(res.PlusDI[i]-res.MinusDI[i]) / (res.PlusDI[i] + res.MinusDI[i] + 0.0001)
	}
	res.ADX = rollingMean(dx, window, window)
	return res
}

// VolumeMA 成交量均线，窗口不足为 NaN。
func VolumeMA(volumes []float64, window int) []float64 {
	return SMA(volumes, window, 0)
}
