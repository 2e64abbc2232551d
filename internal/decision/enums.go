package decision

import "strconv"

// Label 是枚举值的展示属性，前端直接使用。
type Label struct {
	Code  string `json:"code"`
	Text  string `json:"text"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// FullText 图标 + 文本。
func (l Label) FullText() string {
	if l.Icon == "" {
		return l.Text
	}
	return l.Icon + " " + l.Text
}

const (
	colorGreen = "#10b981"
	colorRed   = "#ef4444"
	colorAmber = "#f59e0b"
	colorSlate = "#6b7280"
)

// Direction 市场方向。
type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Ranging Direction = "RANGING"
)

var directionLabels = map[Direction]Label{
	Long:    {"LONG", "做多", "📈", colorGreen},
	Short:   {"SHORT", "做空", "📉", colorRed},
	Ranging: {"RANGING", "震荡", "↔️", colorAmber},
}

func (d Direction) Label() Label { return lookupLabel(directionLabels, d) }
func (d Direction) Text() string { return d.Label().Text }

// MACDPosition DIFF 相对 0 轴的位置。
type MACDPosition string

const (
	MACDAbove   MACDPosition = "ABOVE"
	MACDBelow   MACDPosition = "BELOW"
	MACDNeutral MACDPosition = "NEUTRAL"
)

var macdLabels = map[MACDPosition]Label{
	MACDAbove:   {"ABOVE", "0轴上方", "⬆️", colorGreen},
	MACDBelow:   {"BELOW", "0轴下方", "⬇️", colorRed},
	MACDNeutral: {"NEUTRAL", "0轴附近", "➡️", colorSlate},
}

func (p MACDPosition) Label() Label { return lookupLabel(macdLabels, p) }
func (p MACDPosition) Text() string { return p.Label().Text }

// RSIState RSI 所处区间。
type RSIState string

const (
	RSIBull    RSIState = "BULL"
	RSIBear    RSIState = "BEAR"
	RSINeutral RSIState = "NEUTRAL"
)

var rsiLabels = map[RSIState]Label{
	RSIBull:    {"BULL", "多头趋势", "🐂", colorGreen},
	RSIBear:    {"BEAR", "空头趋势", "🐻", colorRed},
	RSINeutral: {"NEUTRAL", "震荡区间", "🦘", colorAmber},
}

func (s RSIState) Label() Label { return lookupLabel(rsiLabels, s) }
func (s RSIState) Text() string { return s.Label().Text }

// AreaType 关键区域性质。
type AreaType string

const (
	Support    AreaType = "SUPPORT"
	Resistance AreaType = "RESISTANCE"
)

var areaLabels = map[AreaType]Label{
	Support:    {"SUPPORT", "支撑区", "🔻", colorGreen},
	Resistance: {"RESISTANCE", "阻力区", "🔺", colorRed},
}

func (a AreaType) Label() Label { return lookupLabel(areaLabels, a) }
func (a AreaType) Text() string { return a.Label().Text }

// AreaKind 命中关键区域的来源。
type AreaKind string

const (
	AreaPastHigh AreaKind = "PAST_HIGH"
	AreaPastLow  AreaKind = "PAST_LOW"
	AreaPattern  AreaKind = "CANDLESTICK_PATTERN"
)

// MAKind 返回均线对应的区域来源，如 "MA20"。
func MAKind(window int) AreaKind { return AreaKind("MA" + strconv.Itoa(window)) }

// IsMA 是否为均线类区域。
func (k AreaKind) IsMA() bool { return len(k) > 2 && k[:2] == "MA" }

// Text 中文名，均线显示为 "均线(MA20)"。
func (k AreaKind) Text() string {
	switch {
	case k == AreaPastHigh:
		return "前期高点"
	case k == AreaPastLow:
		return "前期低点"
	case k == AreaPattern:
		return "K线形态"
	case k.IsMA():
		return "均线(" + string(k) + ")"
	default:
		return string(k)
	}
}

// RiskType 背离类型。
type RiskType string

const (
	BearishDivergence RiskType = "BEARISH_DIVERGENCE"
	BullishDivergence RiskType = "BULLISH_DIVERGENCE"
)

var riskTypeLabels = map[RiskType]Label{
	BearishDivergence: {"BEARISH_DIVERGENCE", "顶背离", "⚠️", colorRed},
	BullishDivergence: {"BULLISH_DIVERGENCE", "底背离", "⚠️", colorGreen},
}

func (r RiskType) Label() Label { return lookupLabel(riskTypeLabels, r) }
func (r RiskType) Text() string { return r.Label().Text }

// RiskLevel 风险等级。
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

var riskLevelLabels = map[RiskLevel]Label{
	RiskLow:    {"LOW", "低风险", "🟢", colorGreen},
	RiskMedium: {"MEDIUM", "中等风险", "🟡", colorAmber},
	RiskHigh:   {"HIGH", "高风险", "🔴", colorRed},
}

func (r RiskLevel) Label() Label { return lookupLabel(riskLevelLabels, r) }
func (r RiskLevel) Text() string { return r.Label().Text }

// TriggerMode 入场触发方式。
type TriggerMode string

const (
	TriggerStrict     TriggerMode = "strict"
	TriggerLoose      TriggerMode = "loose"
	TriggerVolumeOnly TriggerMode = "volume_only"
)

func lookupLabel[K ~string](m map[K]Label, k K) Label {
	if l, ok := m[k]; ok {
		return l
	}
	return Label{Code: string(k), Text: string(k)}
}
