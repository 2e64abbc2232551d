package pattern

import "sort"

// Type 是 K 线形态代码（如 "hammer"），序列化时直接输出代码。
type Type string

const (
	Hammer             Type = "hammer"
	HangingMan         Type = "hanging_man"
	InvertedHammer     Type = "inverted_hammer"
	ShootingStar       Type = "shooting_star"
	Doji               Type = "doji"
	BullishEngulfing   Type = "bullish_engulfing"
	BearishEngulfing   Type = "bearish_engulfing"
	DarkCloudCover     Type = "dark_cloud_cover"
	PiercingPattern    Type = "piercing_pattern"
	BullishHarami      Type = "bullish_harami"
	BearishHarami      Type = "bearish_harami"
	MorningStar        Type = "morning_star"
	EveningStar        Type = "evening_star"
	ThreeWhiteSoldiers Type = "three_white_soldiers"
	ThreeBlackCrows    Type = "three_black_crows"
)

type Polarity string

const (
	Bullish Polarity = "bullish"
	Bearish Polarity = "bearish"
	Neutral Polarity = "neutral"
)

type Category string

const (
	SingleCandle Category = "single"
	DoubleCandle Category = "double"
	TripleCandle Category = "triple"
)

const (
	colorBullish = "#10b981"
	colorBearish = "#ef4444"
	colorNeutral = "#6b7280"
)

// Info 是每种形态固定的展示属性。Offset 为标记相对价格的偏移比例，
// 看涨形态标在 K 线下方（负值），看跌形态标在上方。
type Info struct {
	Code     Type     `json:"code"`
	Text     string   `json:"text"`
	Icon     string   `json:"icon"`
	Color    string   `json:"color"`
	Offset   float64  `json:"offset"`
	Polarity Polarity `json:"polarity"`
	Category Category `json:"category"`
}

// FullText 图标 + 文本。
func (i Info) FullText() string { return i.Icon + " " + i.Text }

var catalogue = map[Type]Info{
	Hammer:             {Hammer, "锤子线", "🔨", colorBullish, -0.02, Bullish, SingleCandle},
	HangingMan:         {HangingMan, "上吊线", "🪢", colorBearish, 0.02, Bearish, SingleCandle},
	InvertedHammer:     {InvertedHammer, "倒锤子线", "🔨", colorBullish, -0.02, Bullish, SingleCandle},
	ShootingStar:       {ShootingStar, "流星线", "⭐", colorBearish, 0.02, Bearish, SingleCandle},
	Doji:               {Doji, "十字星", "✝️", colorNeutral, 0.02, Neutral, SingleCandle},
	BullishEngulfing:   {BullishEngulfing, "看涨吞没", "📈", colorBullish, -0.03, Bullish, DoubleCandle},
	BearishEngulfing:   {BearishEngulfing, "看跌吞没", "📉", colorBearish, 0.03, Bearish, DoubleCandle},
	DarkCloudCover:     {DarkCloudCover, "乌云盖顶", "☁️", colorBearish, 0.03, Bearish, DoubleCandle},
	PiercingPattern:    {PiercingPattern, "刺透形态", "🔆", colorBullish, -0.03, Bullish, DoubleCandle},
	BullishHarami:      {BullishHarami, "看涨孕线", "🤰", colorBullish, -0.03, Bullish, DoubleCandle},
	BearishHarami:      {BearishHarami, "看跌孕线", "🤰", colorBearish, 0.03, Bearish, DoubleCandle},
	MorningStar:        {MorningStar, "晨星", "🌟", colorBullish, -0.04, Bullish, TripleCandle},
	EveningStar:        {EveningStar, "黄昏星", "🌆", colorBearish, 0.04, Bearish, TripleCandle},
	ThreeWhiteSoldiers: {ThreeWhiteSoldiers, "三只白兵", "⚪⚪⚪", colorBullish, -0.04, Bullish, TripleCandle},
	ThreeBlackCrows:    {ThreeBlackCrows, "三只乌鸦", "⚫⚫⚫", colorBearish, 0.04, Bearish, TripleCandle},
}

// order 决定 All 与 DetectAll 的遍历顺序。
var order = []Type{
	Hammer, HangingMan, InvertedHammer, ShootingStar, Doji,
	BullishEngulfing, BearishEngulfing, PiercingPattern, DarkCloudCover, BullishHarami, BearishHarami,
	MorningStar, EveningStar, ThreeWhiteSoldiers, ThreeBlackCrows,
}

// Info 返回形态属性；未知代码返回只带 Code 的零值。
func (t Type) Info() Info {
	if info, ok := catalogue[t]; ok {
		return info
	}
	return Info{Code: t, Text: string(t), Polarity: Neutral}
}

func (t Type) Text() string     { return t.Info().Text }
func (t Type) Icon() string     { return t.Info().Icon }
func (t Type) FullText() string { return t.Info().FullText() }
func (t Type) Polarity() Polarity {
	return t.Info().Polarity
}

// Valid 判断是否为已登记的形态。
func (t Type) Valid() bool {
	_, ok := catalogue[t]
	return ok
}

// Lookup 按代码或中文名查找形态。
func Lookup(value string) (Type, bool) {
	if value == "" {
		return "", false
	}
	if _, ok := catalogue[Type(value)]; ok {
		return Type(value), true
	}
	for code, info := range catalogue {
		if info.Text == value {
			return code, true
		}
	}
	return "", false
}

// All 按固定顺序返回全部形态。
func All() []Type {
	out := make([]Type, len(order))
	copy(out, order)
	return out
}

// ByPolarity 返回指定极性的形态，按代码排序。
func ByPolarity(p Polarity) []Type {
	var out []Type
	for code, info := range catalogue {
		if info.Polarity == p {
			out = append(out, code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
