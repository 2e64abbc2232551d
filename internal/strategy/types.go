package strategy

import (
	"errors"
	"fmt"
	"strings"

	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// ErrUnknownStrategy 表示无法识别的策略代码或融合模式。
var ErrUnknownStrategy = errors.New("unknown strategy")

// Type 是策略代码（M/S/T/C/R/B/K/CS/F）。
type Type string

const (
	MACD        Type = "M"
	SMA         Type = "S"
	Turtle      Type = "T"
	CBR         Type = "C"
	RSI         Type = "R"
	Bollinger   Type = "B"
	KDJ         Type = "K"
	Candlestick Type = "CS"
	Fusion      Type = "F"
)

type Group string

const (
	GroupTrend     Group = "trend"
	GroupOscillate Group = "overbought_oversold"
	GroupOther     Group = "other"
	GroupFusion    Group = "fusion"
)

// Info 策略指南元数据。
type Info struct {
	Code        Type   `json:"code"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	Group       Group  `json:"group"`
	Description string `json:"description"`
}

func (i Info) FullText() string { return fmt.Sprintf("%s (%s)", i.Text, i.Code) }

var registry = []Info{
	{MACD, "macd", "MACD策略", GroupTrend, "DIFF 上穿 DEA 且 DIFF>0 买入，DIFF 下穿 DEA 卖出"},
	{SMA, "sma", "SMA策略", GroupTrend, "MA5 上穿 MA10 且前一日 DIFF/DEA 为正买入，MA5 下穿 MA10 卖出"},
	{Turtle, "turtle", "TURTLE策略", GroupTrend, "收盘突破唐奇安通道上轨入场，跌破出场通道下轨离场"},
	{CBR, "cbr", "CBR策略", GroupOther, "回调形态后收盘突破前高或 MACD 金叉确认反转"},
	{RSI, "rsi", "RSI策略", GroupOscillate, "RSI 从超卖区上穿 30 买入，从超买区下穿 70 卖出"},
	{Bollinger, "boll", "布林带策略", GroupOther, "价格触及下轨后反弹买入，触及上轨后回落卖出"},
	{KDJ, "kdj", "KDJ策略", GroupOscillate, "K 上穿 D 买入，K 下穿 D 卖出，极值区内为强信号"},
	{Candlestick, "candle", "蜡烛图策略", GroupOther, "基于经典K线形态的交易信号识别"},
	{Fusion, "fusion", "融合策略", GroupFusion, "综合多个策略的信号：投票、加权或自适应"},
}

func (t Type) Info() (Info, bool) {
	for _, info := range registry {
		if info.Code == t {
			return info, true
		}
	}
	return Info{}, false
}

// Text 返回中文名，未知代码返回代码本身。
func (t Type) Text() string {
	if info, ok := t.Info(); ok {
		return info.Text
	}
	return string(t)
}

func (t Type) FullText() string {
	if info, ok := t.Info(); ok {
		return info.FullText()
	}
	return string(t)
}

// Lookup 按代码（"M"）或名称（"macd"）查找，不区分大小写。
func Lookup(value string) (Type, bool) {
	v := strings.TrimSpace(value)
	for _, info := range registry {
		if strings.EqualFold(string(info.Code), v) || strings.EqualFold(info.Name, v) {
			return info.Code, true
		}
	}
	return "", false
}

// ParseTypes 解析逗号分隔的策略列表，空字符串返回全部策略。
func ParseTypes(csv string) ([]Type, error) {
	if strings.TrimSpace(csv) == "" {
		return AllTypes(), nil
	}
	var out []Type
	for _, part := range strings.Split(csv, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, ok := Lookup(part)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, part)
		}
		out = append(out, t)
	}
	return out, nil
}

// AllTypes 全部策略（含融合），按登记顺序。
func AllTypes() []Type {
	out := make([]Type, 0, len(registry))
	for _, info := range registry {
		out = append(out, info.Code)
	}
	return out
}

// BaseTypes 不含融合策略的基础策略。
func BaseTypes() []Type {
	out := make([]Type, 0, len(registry)-1)
	for _, info := range registry {
		if info.Code != Fusion {
			out = append(out, info.Code)
		}
	}
	return out
}

// Guide 返回全部策略元数据。
func Guide() []Info {
	return append([]Info(nil), registry...)
}

// Result 是单个策略的计算结果。
type Result struct {
	Type     Type            `json:"strategy_type"`
	Signals  []signal.Signal `json:"signals"`
	Metadata map[string]any  `json:"metadata,omitempty"`
}

// Strategy 在完整序列上生成按日期排序的信号，不修改输入。
type Strategy interface {
	Type() Type
	Generate(candles []market.Candle) (Result, error)
}

func newSignal(c market.Candle, typ signal.Type, strength signal.Strength, code Type) signal.Signal {
	return signal.Signal{
		Date:     c.OpenTime,
		Price:    c.Close,
		Type:     typ,
		Strength: strength,
		Strategy: string(code),
	}
}

func strengthIf(strong bool) signal.Strength {
	if strong {
		return signal.Strong
	}
	return signal.Weak
}
