package decision

import (
	"fmt"
	"strings"

	"candlesig/internal/logger"
	"candlesig/internal/signal"
)

// exitScore 平仓信号固定得分。
const exitScore = 10

// ScoreDetails 各维度得分。
type ScoreDetails struct {
	MarketState int `json:"market_state"`
	KeyArea     int `json:"key_area"`
	Volume      int `json:"volume"`
	Risk        int `json:"risk"`
	ExitSignal  int `json:"exit_signal"`
}

func (d ScoreDetails) Total() int {
	return d.MarketState + d.KeyArea + d.Volume + d.Risk + d.ExitSignal
}

// StageAnalysis 单个 bar 的四步结果，震荡 bar 只有第一步。
type StageAnalysis struct {
	MarketState  MarketState   `json:"market_state"`
	KeyArea      *KeyArea      `json:"key_area,omitempty"`
	EntryTrigger *EntryTrigger `json:"entry_trigger,omitempty"`
	RiskFilter   *RiskFilter   `json:"risk_filter,omitempty"`
}

// Signal 多阶段分析信号，Reason 为 Reasons 的拼接。
type Signal struct {
	signal.Signal
	ShowText        string        `json:"show_text"`
	ScoreDetails    ScoreDetails  `json:"score_details"`
	ScoreBreakdowns []string      `json:"score_breakdowns"`
	Reasons         []string      `json:"reasons"`
	Analysis        StageAnalysis `json:"analysis"`
}

// DayReasons 某一天的原因列表。
type DayReasons struct {
	Date    int64    `json:"date"`
	Price   float64  `json:"price"`
	Reasons []string `json:"reasons"`
}

// Statistics 按天计数，每个计数器每天最多加一。
type Statistics struct {
	TotalDays   int `json:"total_days"`
	WarmupDays  int `json:"warmup_days"`
	RangingDays int `json:"ranging_days"`
	TrendDays   int `json:"trend_days"`
	LongDays    int `json:"long_days"`
	ShortDays   int `json:"short_days"`

	KeyAreaDays     int `json:"key_area_days"`
	MAAreaDays      int `json:"ma_area_days"`
	PastHighDays    int `json:"past_high_days"`
	PastLowDays     int `json:"past_low_days"`
	PatternAreaDays int `json:"candlestick_area_days"`

	TriggeredDays           int `json:"triggered_days"`
	PatternMatchedDays      int `json:"pattern_matched_days"`
	OnlyPatternMatchedDays  int `json:"only_pattern_matched_days"`
	VolumeConfirmedDays     int `json:"volume_confirmed_days"`
	OnlyVolumeConfirmedDays int `json:"only_volume_confirmed_days"`

	RiskDays              int `json:"has_risk_days"`
	BearishDivergenceDays int `json:"bearish_divergence_days"`
	BullishDivergenceDays int `json:"bullish_divergence_days"`
	VolumeWeakeningDays   int `json:"volume_weakening_days"`

	SignalDays    int `json:"signal_days"`
	StrongBuy     int `json:"strong_buy"`
	WeakBuy       int `json:"weak_buy"`
	StrongSell    int `json:"strong_sell"`
	WeakSell      int `json:"weak_sell"`
	ExitLongDays  int `json:"exit_long_days"`
	ExitShortDays int `json:"exit_short_days"`

	RangingReasons      []DayReasons `json:"ranging_reasons"`
	LongReasons         []DayReasons `json:"long_reasons"`
	ShortReasons        []DayReasons `json:"short_reasons"`
	KeyAreaReasons      []DayReasons `json:"key_area_reasons"`
	TriggeredReasons    []DayReasons `json:"triggered_reasons"`
	NotTriggeredReasons []DayReasons `json:"not_triggered_reasons"`
	RiskReasons         []DayReasons `json:"risk_reasons"`
}

// DailyAnalysis 预热期之后每个 bar 的完整记录。
type DailyAnalysis struct {
	Date  int64   `json:"date"`
	Price float64 `json:"price"`
	StageAnalysis
	IsSignal        bool          `json:"is_signal"`
	SignalType      signal.Type   `json:"signal_type,omitempty"`
	Action          signal.Action `json:"action,omitempty"`
	ShowText        string        `json:"show_text,omitempty"`
	Score           float64       `json:"score,omitempty"`
	SignalReasons   []string      `json:"signal_reasons,omitempty"`
	ScoreBreakdowns []string      `json:"score_breakdowns,omitempty"`
}

// Result Analyze 的输出。
type Result struct {
	Signals    []Signal        `json:"signals"`
	Statistics Statistics      `json:"statistics"`
	Daily      []DailyAnalysis `json:"daily"`
}

// BaseSignals 退化为通用信号，供回测与存储使用。
func (r Result) BaseSignals() []signal.Signal {
	out := make([]signal.Signal, 0, len(r.Signals))
	for _, s := range r.Signals {
		out = append(out, s.Signal.Clone())
	}
	return out
}

// Analyze 从预热期后逐 bar 运行四步分析。震荡 bar 只计数不出信号；
// 趋势 bar 上平仓信号优先于开仓信号。
func (a *Analyzer) Analyze() Result {
	var res Result
	res.Statistics.WarmupDays = a.opts.Warmup
	if len(a.candles) < a.opts.Warmup {
		logger.Debugf("多阶段分析: K线数量 %d 不足预热 %d，跳过", len(a.candles), a.opts.Warmup)
		res.Statistics.WarmupDays = len(a.candles)
		return res
	}
	st := &res.Statistics
	for i := a.opts.Warmup; i < len(a.candles); i++ {
		c := a.candles[i]
		day := DailyAnalysis{Date: c.OpenTime, Price: c.Close}
		st.TotalDays++

		ms := a.MarketState(i)
		day.MarketState = ms
		rec := DayReasons{Date: c.OpenTime, Price: c.Close, Reasons: ms.Reasons}
		if ms.Direction == Ranging {
			st.RangingDays++
			st.RangingReasons = append(st.RangingReasons, rec)
			res.Daily = append(res.Daily, day)
			continue
		}
		st.TrendDays++
		if ms.Direction == Long {
			st.LongDays++
			st.LongReasons = append(st.LongReasons, rec)
		} else {
			st.ShortDays++
			st.ShortReasons = append(st.ShortReasons, rec)
		}

		ka := a.KeyArea(i)
		et := a.EntryTrigger(i, ms.Direction)
		rf := a.RiskFilter(i)
		day.KeyArea, day.EntryTrigger, day.RiskFilter = &ka, &et, &rf
		a.count(st, c.OpenTime, c.Close, ka, et, rf)

		stage := StageAnalysis{MarketState: ms, KeyArea: &ka, EntryTrigger: &et, RiskFilter: &rf}
		var sig *Signal
		switch {
		case rf.ShouldExit:
			sig = a.exitSignal(i, rf, stage)
		case et.IsTriggered:
			sig = a.entrySignal(i, ms, ka, et, rf, stage)
		}
		if sig != nil {
			res.Signals = append(res.Signals, *sig)
			st.SignalDays++
			switch sig.Action {
			case signal.EnterLong:
				if sig.Strength == signal.Strong {
					st.StrongBuy++
				} else {
					st.WeakBuy++
				}
			case signal.EnterShort:
				if sig.Strength == signal.Strong {
					st.StrongSell++
				} else {
					st.WeakSell++
				}
			case signal.ExitLong:
				st.ExitLongDays++
			case signal.ExitShort:
				st.ExitShortDays++
			}
			day.IsSignal = true
			day.SignalType = sig.Type
			day.Action = sig.Action
			day.ShowText = sig.ShowText
			day.Score = sig.Score
			day.SignalReasons = sig.Reasons
			day.ScoreBreakdowns = sig.ScoreBreakdowns
		}
		res.Daily = append(res.Daily, day)
	}
	logger.Debugf("多阶段分析完成: 共 %d 天, 趋势 %d 天, 信号 %d 个", st.TotalDays, st.TrendDays, st.SignalDays)
	return res
}

func (a *Analyzer) count(st *Statistics, date int64, price float64, ka KeyArea, et EntryTrigger, rf RiskFilter) {
	if ka.IsKeyArea {
		st.KeyAreaDays++
		st.KeyAreaReasons = append(st.KeyAreaReasons, DayReasons{date, price, ka.Reasons})
		var ma, high, low, pat bool
		for _, k := range ka.Kinds {
			switch {
			case k.IsMA():
				ma = true
			case k == AreaPastHigh:
				high = true
			case k == AreaPastLow:
				low = true
			case k == AreaPattern:
				pat = true
			}
		}
		st.MAAreaDays += btoi(ma)
		st.PastHighDays += btoi(high)
		st.PastLowDays += btoi(low)
		st.PatternAreaDays += btoi(pat)
	}

	if et.IsTriggered {
		st.TriggeredDays++
		st.TriggeredReasons = append(st.TriggeredReasons, DayReasons{date, price, et.Reasons})
	} else {
		st.NotTriggeredReasons = append(st.NotTriggeredReasons, DayReasons{date, price, et.Reasons})
	}
	st.PatternMatchedDays += btoi(et.PatternMatched)
	st.VolumeConfirmedDays += btoi(et.VolumeConfirmed)
	st.OnlyPatternMatchedDays += btoi(et.PatternMatched && !et.VolumeConfirmed)
	st.OnlyVolumeConfirmedDays += btoi(et.VolumeConfirmed && !et.PatternMatched)

	if rf.HasRisk {
		st.RiskDays++
		st.RiskReasons = append(st.RiskReasons, DayReasons{date, price, rf.Reasons})
		st.BearishDivergenceDays += btoi(rf.RiskType == BearishDivergence)
		st.BullishDivergenceDays += btoi(rf.RiskType == BullishDivergence)
	}
	st.VolumeWeakeningDays += btoi(rf.VolumeWeakening)
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// exitSignal 顶背离平多、底背离平空，与当日方向无关。
func (a *Analyzer) exitSignal(i int, rf RiskFilter, stage StageAnalysis) *Signal {
	typ, action, reason, advice := signal.Sell, signal.ExitLong, "RSI顶背离+成交量衰减", "卖出平多"
	if rf.RiskType == BullishDivergence {
		typ, action, reason, advice = signal.Buy, signal.ExitShort, "RSI底背离+成交量衰减", "买入平空"
	}
	c := a.candles[i]
	text := fmt.Sprintf("%s, 建议%s", reason, advice)
	return &Signal{
		Signal: signal.Signal{
			Date:     c.OpenTime,
			Price:    c.Close,
			Type:     typ,
			Strength: signal.Strong,
			Action:   action,
			Score:    exitScore,
			Reason:   text,
		},
		ShowText:        action.ShowText(),
		ScoreDetails:    ScoreDetails{ExitSignal: exitScore},
		ScoreBreakdowns: []string{fmt.Sprintf("%s +%d分", reason, exitScore)},
		Reasons:         []string{text},
		Analysis:        stage,
	}
}

func (a *Analyzer) entrySignal(i int, ms MarketState, ka KeyArea, et EntryTrigger, rf RiskFilter, stage StageAnalysis) *Signal {
	typ, action, areaWanted := signal.Buy, signal.EnterLong, Support
	if ms.Direction == Short {
		typ, action, areaWanted = signal.Sell, signal.EnterShort, Resistance
	}
	var (
		details    ScoreDetails
		breakdowns []string
		reasons    []string
	)

	switch {
	case ms.Confidence > 0.7:
		details.MarketState = 2
		breakdowns = append(breakdowns, fmt.Sprintf("⓵市场状态: 强劲(置信度%.2f) +2分", ms.Confidence))
	case ms.Confidence > 0.5:
		details.MarketState = 1
		breakdowns = append(breakdowns, fmt.Sprintf("⓵市场状态: 良好(置信度%.2f) +1分", ms.Confidence))
	default:
		breakdowns = append(breakdowns, fmt.Sprintf("⓵市场状态: 一般(置信度%.2f) +0分", ms.Confidence))
	}
	reasons = append(reasons, fmt.Sprintf("⓵市场状态: MACD在%s, RSI在%s, 置信度%.2f",
		a.macdText(ms.MACDPosition), a.rsiText(ms.RSIState), ms.Confidence))

	switch {
	case ka.IsKeyArea && ka.AreaType == areaWanted:
		details.KeyArea = 2
		breakdowns = append(breakdowns, fmt.Sprintf("⓶关键区域: 关键%s +2分", areaWanted.Text()))
	case ka.IsKeyArea:
		details.KeyArea = 1
		breakdowns = append(breakdowns, "⓶关键区域: 一般关键区 +1分")
	default:
		breakdowns = append(breakdowns, "⓶关键区域: 不在关键区 +0分")
	}
	if ka.IsKeyArea {
		kinds := strings.Join(ka.KindTexts, "、")
		if ka.AreaType != "" {
			reasons = append(reasons, fmt.Sprintf("⓶关键区域: %s, %s", ka.AreaType.Text(), kinds))
		} else {
			reasons = append(reasons, fmt.Sprintf("⓶关键区域: %s", kinds))
		}
	}

	switch r := et.VolumeRatio; {
	case r >= a.opts.StrongVolumeRatio:
		details.Volume = 2
		breakdowns = append(breakdowns, fmt.Sprintf("⓷入场触发: 成交量放大%.1f倍(≥%g) +2分", r, a.opts.StrongVolumeRatio))
	case r >= a.opts.VolumeRatio:
		details.Volume = 1
		breakdowns = append(breakdowns, fmt.Sprintf("⓷入场触发: 成交量放大%.1f倍(≥%g) +1分", r, a.opts.VolumeRatio))
	default:
		breakdowns = append(breakdowns, fmt.Sprintf("⓷入场触发: 成交量放大%.1f倍 +0分", r))
	}
	if et.Pattern != nil {
		reasons = append(reasons, fmt.Sprintf("⓷入场触发: 匹配形态%s, 成交量放大%.1f倍", et.Pattern.Type.FullText(), et.VolumeRatio))
	} else {
		reasons = append(reasons, fmt.Sprintf("⓷入场触发: 极度放量%.1f倍", et.VolumeRatio))
	}

	if rf.HasRisk {
		details.Risk = -1
		risk := fmt.Sprintf("%s(%s)", rf.RiskType.Text(), rf.RiskLevel.Text())
		breakdowns = append(breakdowns, fmt.Sprintf("⓸风险分析: %s -1分", risk))
		reasons = append(reasons, fmt.Sprintf("⓸风险分析: %s", risk))
	} else {
		breakdowns = append(breakdowns, "⓸风险分析: 无风险 +0分")
	}

	score := details.Total()
	strength := signal.Weak
	if score >= a.opts.StrongScore {
		strength = signal.Strong
	}
	c := a.candles[i]
	sig := &Signal{
		Signal: signal.Signal{
			Date:     c.OpenTime,
			Price:    c.Close,
			Type:     typ,
			Strength: strength,
			Action:   action,
			Score:    float64(score),
			Reason:   strings.Join(reasons, "; "),
		},
		ShowText:        action.ShowText(),
		ScoreDetails:    details,
		ScoreBreakdowns: breakdowns,
		Reasons:         reasons,
		Analysis:        stage,
	}
	if et.Pattern != nil {
		sig.PatternName = et.Pattern.Type.Text()
	}
	return sig
}
