package decision

import (
	"errors"
	"fmt"
	"math"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/analysis/pattern"
	"candlesig/internal/market"
)

// ErrEmptySeries 输入序列为空。
var ErrEmptySeries = errors.New("empty price series")

// Analyzer 多阶段交易信号分析器。构造时一次性计算指标与形态，之后只读。
type Analyzer struct {
	candles []market.Candle
	opts    Options

	closes  []float64
	volumes []float64
	diff    []float64
	rsi     []float64
	ma      map[int][]float64
	volMA5  []float64
	volMA10 []float64

	patterns []pattern.Occurrence
	byIndex  map[int][]pattern.Occurrence
}

// NewAnalyzer 校验序列并准备指标；不足预热长度不是错误，Analyze 会返回空信号。
func NewAnalyzer(candles []market.Candle, opts Options) (*Analyzer, error) {
	if len(candles) == 0 {
		return nil, ErrEmptySeries
	}
	if err := market.ValidateSeries(candles); err != nil {
		return nil, fmt.Errorf("多阶段分析: %w", err)
	}
	opts = opts.Normalize()
	own := append([]market.Candle(nil), candles...)
	set := indicator.ComputeSet(own, indicator.Settings{
		MACD: indicator.MACDSettings{Fast: opts.MACDFast, Slow: opts.MACDSlow, Signal: opts.MACDSignal},
		RSI:  indicator.RSISettings{Period: opts.RSIPeriod},
		MA:   opts.MAWindows,
	})
	cols := market.Split(own)
	a := &Analyzer{
		candles:  own,
		opts:     opts,
		closes:   cols.Closes,
		volumes:  cols.Volumes,
		diff:     set.MACD.Diff,
		rsi:      set.RSI,
		ma:       set.MA,
		volMA5:   set.VolMA5,
		volMA10:  set.VolMA10,
		patterns: pattern.DetectAll(own, opts.Pattern),
	}
	a.byIndex = pattern.GroupByIndex(a.patterns)
	return a, nil
}

func (a *Analyzer) Options() Options { return a.opts }

// Patterns 返回全序列识别到的形态（按下标排序）。
func (a *Analyzer) Patterns() []pattern.Occurrence {
	return append([]pattern.Occurrence(nil), a.patterns...)
}

// MarketState 第一步：MACD 位置 + RSI 状态决定方向。
type MarketState struct {
	Direction    Direction    `json:"direction"`
	MACDPosition MACDPosition `json:"macd_position"`
	RSIState     RSIState     `json:"rsi_state"`
	Confidence   float64      `json:"confidence"`
	MACDValue    *float64     `json:"macd_value"`
	RSIValue     *float64     `json:"rsi_value"`
	Reasons      []string     `json:"reasons"`
}

// KeyArea 第二步：均线、前期高低点与重要反转形态。
type KeyArea struct {
	IsKeyArea bool                 `json:"is_key_area"`
	AreaType  AreaType             `json:"area_type,omitempty"`
	Kinds     []AreaKind           `json:"all_area_types"`
	KindTexts []string             `json:"chinese_all_area_types"`
	Reasons   []string             `json:"reasons"`
	Patterns  []pattern.Occurrence `json:"patterns,omitempty"`
}

// EntryTrigger 第三步：方向匹配的形态 + 放量。
type EntryTrigger struct {
	IsTriggered     bool                `json:"is_triggered"`
	PatternMatched  bool                `json:"pattern_matched"`
	VolumeConfirmed bool                `json:"volume_confirmed"`
	VolumeRatio     float64             `json:"volume_ratio"`
	Pattern         *pattern.Occurrence `json:"pattern_info,omitempty"`
	TriggerMode     TriggerMode         `json:"trigger_mode,omitempty"`
	Reasons         []string            `json:"reasons"`
}

// RiskFilter 第四步：RSI 背离 + 成交量衰减。
type RiskFilter struct {
	HasRisk         bool      `json:"has_risk"`
	RiskType        RiskType  `json:"risk_type,omitempty"`
	ShouldExit      bool      `json:"should_exit"`
	RiskLevel       RiskLevel `json:"risk_level"`
	VolumeWeakening bool      `json:"volume_weakening"`
	Reasons         []string  `json:"reasons"`
}

func optional(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func (a *Analyzer) macdText(p MACDPosition) string {
	if p == MACDNeutral {
		return fmt.Sprintf("0轴[%g~%g]附近", -a.opts.MACDDeadZone, a.opts.MACDDeadZone)
	}
	return p.Text()
}

func (a *Analyzer) rsiText(s RSIState) string {
	if s == RSINeutral {
		return fmt.Sprintf("震荡区间[%g~%g]", a.opts.RSIBear, a.opts.RSIBull)
	}
	return s.Text()
}

// MarketState DIFF 超出死区决定 0 轴上方/下方，RSI 以 55/45 划分多空；
// 两者同向或 RSI 中性时给出方向，其余组合为震荡。
func (a *Analyzer) MarketState(i int) MarketState {
	diff, rsi := a.diff[i], a.rsi[i]
	st := MarketState{
		Direction:    Ranging,
		MACDPosition: MACDNeutral,
		RSIState:     RSINeutral,
		MACDValue:    optional(diff),
		RSIValue:     optional(rsi),
	}
	dz := a.opts.MACDDeadZone
	switch {
	case math.IsNaN(diff):
	case diff > dz:
		st.MACDPosition = MACDAbove
	case diff < -dz:
		st.MACDPosition = MACDBelow
	}
	switch {
	case math.IsNaN(rsi):
	case rsi > a.opts.RSIBull:
		st.RSIState = RSIBull
	case rsi < a.opts.RSIBear:
		st.RSIState = RSIBear
	}

	macdText, rsiText := a.macdText(st.MACDPosition), a.rsiText(st.RSIState)
	if st.MACDPosition == MACDNeutral {
		st.Reasons = append(st.Reasons, fmt.Sprintf("MACD在%s → (%.2f)", macdText, diff))
	}
	if st.RSIState == RSINeutral {
		st.Reasons = append(st.Reasons, fmt.Sprintf("RSI在%s → (%.2f)", rsiText, rsi))
	}
	if (st.MACDPosition == MACDAbove && st.RSIState == RSIBear) || (st.MACDPosition == MACDBelow && st.RSIState == RSIBull) {
		st.Reasons = append(st.Reasons, fmt.Sprintf("MACD在%s → (%.2f)但RSI在%s → (%.2f), 方向不一致", macdText, diff, rsiText, rsi))
	}

	switch {
	case st.MACDPosition == MACDAbove && st.RSIState == RSIBull:
		st.Direction = Long
		st.Confidence = math.Min((rsi-a.opts.RSIBull)/20, 1)
	case st.MACDPosition == MACDBelow && st.RSIState == RSIBear:
		st.Direction = Short
		st.Confidence = math.Min((a.opts.RSIBear-rsi)/20, 1)
	case st.MACDPosition == MACDAbove && st.RSIState == RSINeutral:
		st.Direction = Long
		st.Confidence = 0.5
	case st.MACDPosition == MACDBelow && st.RSIState == RSINeutral:
		st.Direction = Short
		st.Confidence = 0.5
	}
	if st.Direction != Ranging {
		st.Reasons = append(st.Reasons, fmt.Sprintf("MACD在%s → (%.2f), RSI在%s → (%.2f), 置信度 → (%.2f)",
			macdText, diff, rsiText, rsi, st.Confidence))
	}
	return st
}

var importantPatterns = map[pattern.Type]bool{
	pattern.BullishEngulfing: true,
	pattern.BearishEngulfing: true,
	pattern.MorningStar:      true,
	pattern.EveningStar:      true,
	pattern.Hammer:           true,
	pattern.ShootingStar:     true,
}

// KeyArea 区域性质以最后一次命中的规则为准。
func (a *Analyzer) KeyArea(i int) KeyArea {
	price := a.closes[i]
	tol := a.opts.KeyAreaTolerance
	var ka KeyArea
	hit := func(kind AreaKind, at AreaType, reason string) {
		ka.IsKeyArea = true
		if at != "" {
			ka.AreaType = at
		}
		ka.Kinds = append(ka.Kinds, kind)
		ka.KindTexts = append(ka.KindTexts, kind.Text())
		ka.Reasons = append(ka.Reasons, reason)
	}

	for _, w := range a.opts.MAWindows {
		series, ok := a.ma[w]
		if !ok || math.IsNaN(series[i]) || series[i] == 0 {
			continue
		}
		ma := series[i]
		dev := math.Abs(price-ma) / ma
		if dev > tol {
			continue
		}
		at := Resistance
		if price >= ma {
			at = Support
		}
		kind := MAKind(w)
		hit(kind, at, fmt.Sprintf("%s, 价格触及%s线[%.2f] → (%.2f, 比例: %.2f)", at.Text(), kind, ma, price, dev))
	}

	if lb := a.opts.KeyAreaLookback; i >= lb {
		high, low := a.candles[i-lb].High, a.candles[i-lb].Low
		for _, c := range a.candles[i-lb : i] {
			high = math.Max(high, c.High)
			low = math.Min(low, c.Low)
		}
		if high > 0 {
			if dev := math.Abs(price-high) / high; dev <= tol {
				hit(AreaPastHigh, Resistance, fmt.Sprintf("%s, 接近前期[前%d天]高点[%.2f] → (%.2f, 比例: %.2f)", Resistance.Text(), lb, high, price, dev))
			}
		}
		if low > 0 {
			if dev := math.Abs(price-low) / low; dev <= tol {
				hit(AreaPastLow, Support, fmt.Sprintf("%s, 接近前期[前%d天]低点[%.2f] → (%.2f, 比例: %.2f)", Support.Text(), lb, low, price, dev))
			}
		}
	}

	ka.Patterns = a.byIndex[i]
	for _, p := range ka.Patterns {
		if importantPatterns[p.Type] {
			hit(AreaPattern, "", fmt.Sprintf("出现形态 → (%s)", p.Type.FullText()))
		}
	}
	if !ka.IsKeyArea {
		ka.Reasons = append(ka.Reasons, "未匹配到关键区域")
	}
	return ka
}

var (
	bullishTriggers = []pattern.Type{
		pattern.BullishEngulfing, pattern.MorningStar, pattern.Hammer, pattern.InvertedHammer,
		pattern.PiercingPattern, pattern.ThreeWhiteSoldiers, pattern.BullishHarami,
	}
	bearishTriggers = []pattern.Type{
		pattern.BearishEngulfing, pattern.EveningStar, pattern.ShootingStar, pattern.HangingMan,
		pattern.DarkCloudCover, pattern.ThreeBlackCrows, pattern.BearishHarami,
	}
)

func contains(types []pattern.Type, t pattern.Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func candleColor(c market.Candle) string {
	switch {
	case c.Bullish():
		return "阳线"
	case c.Bearish():
		return "阴线"
	default:
		return "十字星"
	}
}

// EntryTrigger 默认只有严格模式：方向匹配的形态且成交量达到 5 日均量的 VolumeRatio 倍。
func (a *Analyzer) EntryTrigger(i int, dir Direction) EntryTrigger {
	et := EntryTrigger{}
	if dir == Ranging {
		return et
	}
	c := a.candles[i]
	volMA := a.volMA5[i]
	if !math.IsNaN(volMA) && volMA > 0 {
		et.VolumeRatio = c.Volume / volMA
	}
	et.VolumeConfirmed = et.VolumeRatio >= a.opts.VolumeRatio

	wanted := bullishTriggers
	trendMatch := c.Bullish()
	wantColor := "阳线"
	if dir == Short {
		wanted = bearishTriggers
		trendMatch = c.Bearish()
		wantColor = "阴线"
	}
	for _, p := range a.byIndex[i] {
		if contains(wanted, p.Type) {
			occ := p
			et.PatternMatched = true
			et.Pattern = &occ
			et.Reasons = append(et.Reasons, fmt.Sprintf("匹配形态 → (%s)", p.Type.FullText()))
			break
		}
	}

	ratio := et.VolumeRatio
	switch {
	case et.PatternMatched && et.VolumeConfirmed:
		et.IsTriggered = true
		et.TriggerMode = TriggerStrict
		et.Reasons = append(et.Reasons, fmt.Sprintf("形态+放量%g倍[%.0f*%g=%.0f] → (%.0f, 倍数: %.2f)",
			a.opts.VolumeRatio, volMA, a.opts.VolumeRatio, volMA*a.opts.VolumeRatio, c.Volume, ratio))
	case a.opts.AllowLooseTrigger && et.PatternMatched && ratio >= a.opts.LooseVolumeRatio:
		et.IsTriggered = true
		et.VolumeConfirmed = true
		et.TriggerMode = TriggerLoose
		et.Reasons = append(et.Reasons, fmt.Sprintf("形态+放量%g倍[%.0f*%g=%.0f] → (%.0f, 倍数: %.2f)",
			a.opts.LooseVolumeRatio, volMA, a.opts.LooseVolumeRatio, volMA*a.opts.LooseVolumeRatio, c.Volume, ratio))
	case a.opts.AllowVolumeOnlyTrigger && !et.PatternMatched && ratio >= a.opts.VolumeOnlyRatio && trendMatch:
		et.IsTriggered = true
		et.TriggerMode = TriggerVolumeOnly
		et.Reasons = append(et.Reasons, fmt.Sprintf("极度放量%g倍[%.0f*%g=%.0f][%s] → (%.0f, 倍数: %.2f)",
			a.opts.VolumeOnlyRatio, volMA, a.opts.VolumeOnlyRatio, volMA*a.opts.VolumeOnlyRatio, wantColor, c.Volume, ratio))
	}
	if et.IsTriggered {
		return et
	}

	if !et.PatternMatched {
		et.Reasons = append(et.Reasons, "未匹配到有效K线形态")
	}
	minRatio := a.opts.VolumeRatio
	if a.opts.AllowLooseTrigger {
		minRatio = math.Min(minRatio, a.opts.LooseVolumeRatio)
	}
	switch {
	case ratio < minRatio:
		et.Reasons = append(et.Reasons, fmt.Sprintf("成交量不足：%.2f倍 < %g倍", ratio, minRatio))
	case a.opts.AllowVolumeOnlyTrigger && !et.PatternMatched && ratio < a.opts.VolumeOnlyRatio:
		et.Reasons = append(et.Reasons, fmt.Sprintf("无形态情况下成交量不足：%.2f倍 < %g倍", ratio, a.opts.VolumeOnlyRatio))
	}
	if a.opts.AllowVolumeOnlyTrigger && !et.PatternMatched && !trendMatch {
		et.Reasons = append(et.Reasons, fmt.Sprintf("价格趋势不匹配：需要%s, 实际为%s", wantColor, candleColor(c)))
	}
	return et
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}

// RiskFilter 背离出现即有风险；同时成交量低于 10 日均量时应离场。
// 两种背离同时成立时以底背离为准。
func (a *Analyzer) RiskFilter(i int) RiskFilter {
	lb := a.opts.DivergenceLookback
	rf := RiskFilter{RiskLevel: RiskLow}
	if i < lb {
		return rf
	}
	vol, volMA := a.volumes[i], a.volMA10[i]
	rf.VolumeWeakening = !math.IsNaN(volMA) && vol < volMA

	level := RiskMedium
	if rf.VolumeWeakening {
		level = RiskHigh
	}
	d := indicator.DetectRSIDivergence(a.closes, a.rsi, i, lb)
	price, rsi := a.closes[i], a.rsi[i]
	if d.Bearish {
		rf.HasRisk, rf.RiskType, rf.ShouldExit, rf.RiskLevel = true, BearishDivergence, rf.VolumeWeakening, level
		rf.Reasons = append(rf.Reasons, fmt.Sprintf(
			"当前价格创新高[%.2f*0.98=%.2f], RSI未创新高[%.2f*0.95=%.2f] → (价格: %.2f, RSI: %.2f, 类型: %s, 成交量是否衰减: %s, 级别: %s)",
			d.PriceHigh, d.PriceHigh*0.98, d.RSIHigh, d.RSIHigh*0.95, price, rsi, BearishDivergence.Text(), yesNo(rf.VolumeWeakening), level.Text()))
	}
	if d.Bullish {
		rf.HasRisk, rf.RiskType, rf.ShouldExit, rf.RiskLevel = true, BullishDivergence, rf.VolumeWeakening, level
		rf.Reasons = append(rf.Reasons, fmt.Sprintf(
			"当前价格创新低[%.2f*1.02=%.2f], RSI未创新低[%.2f*1.05=%.2f] → (价格: %.2f, RSI: %.2f, 类型: %s, 成交量是否衰减: %s, 级别: %s)",
			d.PriceLow, d.PriceLow*1.02, d.RSILow, d.RSILow*1.05, price, rsi, BullishDivergence.Text(), yesNo(rf.VolumeWeakening), level.Text()))
	}
	if !rf.HasRisk {
		rf.Reasons = append(rf.Reasons, "无风险")
	}
	return rf
}
