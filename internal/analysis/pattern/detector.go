package pattern

import (
	"sort"

	"candlesig/internal/market"
)

// Occurrence 是一次识别出的形态。Index 为形态最后一根 K 线的下标，
// Price 为图表标记的纵坐标（看涨取低点，看跌取高点）。
type Occurrence struct {
	Type        Type               `json:"pattern_type"`
	Name        string             `json:"pattern_name"`
	Icon        string             `json:"pattern_icon"`
	Index       int                `json:"index"`
	Date        int64              `json:"date"`
	Price       float64            `json:"price"`
	StartIndex  int                `json:"start_index"`
	EndIndex    int                `json:"end_index"`
	Description string             `json:"description"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
	Bars        []market.Candle    `json:"bars,omitempty"`
}

// Detector 扫描整段序列并返回某一种形态的全部出现位置。
type Detector func(candles []market.Candle, opts Options) []Occurrence

var detectors = map[Type]Detector{
	Hammer:             DetectHammer,
	HangingMan:         DetectHangingMan,
	InvertedHammer:     DetectInvertedHammer,
	ShootingStar:       DetectShootingStar,
	Doji:               DetectDoji,
	BullishEngulfing:   DetectBullishEngulfing,
	BearishEngulfing:   DetectBearishEngulfing,
	PiercingPattern:    DetectPiercingPattern,
	DarkCloudCover:     DetectDarkCloudCover,
	BullishHarami:      DetectBullishHarami,
	BearishHarami:      DetectBearishHarami,
	MorningStar:        DetectMorningStar,
	EveningStar:        DetectEveningStar,
	ThreeWhiteSoldiers: DetectThreeWhiteSoldiers,
	ThreeBlackCrows:    DetectThreeBlackCrows,
}

// DetectAll 依次运行所有检测器，按 K 线下标稳定排序。
func DetectAll(candles []market.Candle, opts Options) []Occurrence {
	return DetectTypes(candles, opts, order...)
}

// DetectTypes 只运行指定形态的检测器，未知类型忽略。
func DetectTypes(candles []market.Candle, opts Options, types ...Type) []Occurrence {
	opts = NormalizeOptions(opts)
	var out []Occurrence
	for _, t := range types {
		fn, ok := detectors[t]
		if !ok {
			continue
		}
		out = append(out, fn(candles, opts)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// GroupByIndex 按下标分组，供逐根分析时查询。
func GroupByIndex(occ []Occurrence) map[int][]Occurrence {
	out := make(map[int][]Occurrence, len(occ))
	for _, o := range occ {
		out[o.Index] = append(out[o.Index], o)
	}
	return out
}

type trend int

const (
	trendNone trend = iota
	trendUp
	trendDown
)

func (t trend) String() string {
	switch t {
	case trendUp:
		return "上涨"
	case trendDown:
		return "下跌"
	default:
		return "无趋势"
	}
}

// priorTrend 比较 start 之前 period 根收盘价的前半段与后半段均值。
// 历史不足或两段均值相等时视为无趋势。
func priorTrend(candles []market.Candle, start, period int) trend {
	if period < 2 || start < period || start > len(candles) {
		return trendNone
	}
	window := candles[start-period : start]
	half := len(window) / 2
	first := meanClose(window[:half])
	second := meanClose(window[half:])
	switch {
	case second < first:
		return trendDown
	case second > first:
		return trendUp
	default:
		return trendNone
	}
}

func meanClose(bars []market.Candle) float64 {
	if len(bars) == 0 {
		return 0
	}
	sum := 0.0
	for _, b := range bars {
		sum += b.Close
	}
	return sum / float64(len(bars))
}

func newOccurrence(t Type, candles []market.Candle, start, end int, price float64) Occurrence {
	info := t.Info()
	return Occurrence{
		Type:       t,
		Name:       info.Text,
		Icon:       info.Icon,
		Index:      end,
		Date:       candles[end].OpenTime,
		Price:      price,
		StartIndex: start,
		EndIndex:   end,
	}
}

func snapshot(candles []market.Candle, start, end int) []market.Candle {
	out := make([]market.Candle, end-start+1)
	copy(out, candles[start:end+1])
	return out
}

// Criteria 描述一种形态的识别条件，供前端展示。
type Criteria struct {
	Code     Type     `json:"code"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon"`
	Category Category `json:"category"`
	Polarity Polarity `json:"polarity"`
	Rules    []string `json:"rules"`
}

var criteria = map[Type][]string{
	Hammer: {
		"前5根K线处于下跌趋势（前半段均价 > 后半段均价）",
		"实体 > 0.01",
		"下影线 ≥ 实体 × 2.0",
		"上影线 ≤ 实体 × 0.3",
		"收盘价位于K线区间上方40%：(收盘-最低)/(最高-最低) ≥ 0.6",
	},
	HangingMan: {
		"前5根K线处于上涨趋势",
		"实体 > 0.01",
		"下影线 ≥ 实体 × 2.0，上影线 ≤ 实体 × 0.3",
		"收盘价位于K线区间上方40%",
		"最高价不低于前5根收盘价的最高值（处于高位）",
	},
	InvertedHammer: {
		"前5根K线处于下跌趋势",
		"实体 > 0.01",
		"上影线 ≥ 实体 × 2.0",
		"下影线 ≤ 实体 × 0.3",
		"收盘价位于K线区间下方40%：(最高-收盘)/(最高-最低) ≥ 0.6",
	},
	ShootingStar: {
		"前5根K线处于上涨趋势",
		"实体 > 0.01",
		"上影线 ≥ 实体 × 2.0，下影线 ≤ 实体 × 0.3",
		"收盘价位于K线区间下方40%",
	},
	Doji: {
		"前5根K线存在明确趋势",
		"实体 ≤ 区间 × 0.1",
	},
	BullishEngulfing: {
		"前5根K线处于下跌趋势",
		"第一根为阴线，第二根为阳线",
		"第二根实体完全包含第一根实体",
		"第二根实体 ≥ 第一根实体 × 1.0",
	},
	BearishEngulfing: {
		"前5根K线处于上涨趋势",
		"第一根为阳线，第二根为阴线",
		"第二根实体完全包含第一根实体",
		"第二根实体 ≥ 第一根实体 × 1.0",
	},
	PiercingPattern: {
		"前5根K线处于下跌趋势",
		"第一根为阴线，第二根为阳线",
		"第二根开盘低于第一根最低价（跳空）",
		"第二根收盘深入第一根实体 ≥ 50%，但不超过第一根开盘价",
	},
	DarkCloudCover: {
		"前5根K线处于上涨趋势",
		"第一根为阳线，第二根为阴线",
		"第二根开盘高于第一根最高价（跳空）",
		"第二根收盘深入第一根实体 ≥ 50%，但不低于第一根开盘价",
	},
	BullishHarami: {
		"前5根K线处于下跌趋势",
		"第一根为大阴线（实体 ≥ 区间 × 0.6）",
		"第二根为阳线，实体完全位于第一根实体内部",
	},
	BearishHarami: {
		"前5根K线处于上涨趋势",
		"第一根为大阳线（实体 ≥ 区间 × 0.6）",
		"第二根为阴线，实体完全位于第一根实体内部",
	},
	MorningStar: {
		"前5根K线处于下跌趋势",
		"第一根为大阴线（实体 ≥ 区间 × 0.6）",
		"第二根为星线：实体 ≤ 第一根实体 × 0.3，且实体向下跳空",
		"第三根为阳线，实体向上跳离星线",
		"第三根收盘高于第一根实体中点",
	},
	EveningStar: {
		"前5根K线处于上涨趋势",
		"第一根为大阳线（实体 ≥ 区间 × 0.6）",
		"第二根为星线：实体 ≤ 第一根实体 × 0.3，且实体向上跳空",
		"第三根为阴线，实体向下跳离星线",
		"第三根收盘低于第一根实体中点",
	},
	ThreeWhiteSoldiers: {
		"前5根K线处于下跌趋势",
		"连续三根阳线，收盘价逐根抬高",
		"每根开盘价位于前一根实体内部",
		"每根上影线 < 实体 × 0.3",
	},
	ThreeBlackCrows: {
		"前5根K线处于上涨趋势",
		"连续三根阴线，收盘价逐根降低",
		"每根开盘价位于前一根实体内部",
		"每根下影线 < 实体 × 0.3",
	},
}

// AlgorithmInfo 返回每种形态的识别条件说明，顺序与 DetectAll 一致。
func AlgorithmInfo() []Criteria {
	out := make([]Criteria, 0, len(order))
	for _, t := range order {
		info := t.Info()
		rules := append([]string(nil), criteria[t]...)
		out = append(out, Criteria{
			Code:     t,
			Name:     info.Text,
			Icon:     info.Icon,
			Category: info.Category,
			Polarity: info.Polarity,
			Rules:    rules,
		})
	}
	return out
}
