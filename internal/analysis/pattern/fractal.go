package pattern

import "candlesig/internal/market"

type FractalKind string

const (
	FractalTop    FractalKind = "top"
	FractalBottom FractalKind = "bottom"
)

func (k FractalKind) Text() string {
	if k == FractalTop {
		return "顶分型"
	}
	return "底分型"
}

// Fractal 顶/底分型：中间 K 线的高点（低点）严格高于（低于）左右两根。
type Fractal struct {
	Kind  FractalKind `json:"type"`
	Index int         `json:"index"`
	Date  int64       `json:"date"`
	Value float64     `json:"value"`
}

const defaultFractalBodyRatio = 0.2

// DetectFractals 识别分型，实体占区间比例低于 bodyRatio 的 K 线（如十字星）跳过。
// 分型需要右侧一根 K 线确认，因此最后一根永远不会成为分型。
func DetectFractals(candles []market.Candle, bodyRatio float64) []Fractal {
	if bodyRatio <= 0 {
		bodyRatio = defaultFractalBodyRatio
	}
	var out []Fractal
	for i := 1; i+1 < len(candles); i++ {
		cur := candles[i]
		rng := cur.Range()
		if rng <= 0 || cur.Body()/rng < bodyRatio {
			continue
		}
		left, right := candles[i-1], candles[i+1]
		switch {
		case cur.High > left.High && cur.High > right.High:
			out = append(out, Fractal{Kind: FractalTop, Index: i, Date: cur.OpenTime, Value: cur.High})
		case cur.Low < left.Low && cur.Low < right.Low:
			out = append(out, Fractal{Kind: FractalBottom, Index: i, Date: cur.OpenTime, Value: cur.Low})
		}
	}
	return out
}
