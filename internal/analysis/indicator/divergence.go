package indicator

import "math"

const (
	divPriceTolerance = 0.02
	divRSIGap         = 0.05
)

// Divergence 描述 idx 处回看窗口内的价格/RSI 背离情况。
type Divergence struct {
	Bearish        bool    `json:"bearish"`
	Bullish        bool    `json:"bullish"`
	PriceHigh      float64 `json:"price_high"`
	PriceHighIndex int     `json:"price_high_index"`
	RSIHigh        float64 `json:"rsi_high"`
	RSIHighIndex   int     `json:"rsi_high_index"`
	PriceLow       float64 `json:"price_low"`
	PriceLowIndex  int     `json:"price_low_index"`
	RSILow         float64 `json:"rsi_low"`
	RSILowIndex    int     `json:"rsi_low_index"`
}

// DetectRSIDivergence 在 [idx-lookback, idx] 窗口内检查背离：
// 顶背离要求收盘价接近窗口高点（2% 内）、价格高点晚于 RSI 高点且当前 RSI 低于 RSI 高点 5% 以上；
// 底背离为镜像条件。idx < lookback 时不判断。
func DetectRSIDivergence(closes, rsi []float64, idx, lookback int) Divergence {
	out := Divergence{PriceHighIndex: -1, RSIHighIndex: -1, PriceLowIndex: -1, RSILowIndex: -1}
	if lookback <= 0 || idx < lookback || idx >= len(closes) || idx >= len(rsi) {
		return out
	}
	start := idx - lookback
	out.PriceHighIndex, out.PriceHigh = argExtreme(closes, start, idx, true)
	out.PriceLowIndex, out.PriceLow = argExtreme(closes, start, idx, false)
	out.RSIHighIndex, out.RSIHigh = argExtreme(rsi, start, idx, true)
	out.RSILowIndex, out.RSILow = argExtreme(rsi, start, idx, false)

	price := closes[idx]
	cur := rsi[idx]
	if math.IsNaN(cur) || out.RSIHighIndex < 0 {
		return out
	}
	if price >= out.PriceHigh*(1-divPriceTolerance) &&
		out.PriceHighIndex > out.RSIHighIndex &&
		cur < out.RSIHigh*(1-divRSIGap) {
		out.Bearish = true
	}
	if price <= out.PriceLow*(1+divPriceTolerance) &&
		out.PriceLowIndex > out.RSILowIndex &&
		cur > out.RSILow*(1+divRSIGap) {
		out.Bullish = true
	}
	return out
}

// argExtreme 返回 [start, end] 内首个最大/最小值位置，忽略 NaN。
func argExtreme(values []float64, start, end int, max bool) (int, float64) {
	pos := -1
	best := math.NaN()
	for i := start; i <= end; i++ {
		v := values[i]
		if math.IsNaN(v) {
			continue
		}
		if pos < 0 || (max && v > best) || (!max && v < best) {
			pos = i
			best = v
		}
	}
	return pos, best
}
