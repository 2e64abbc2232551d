package signal

import (
	"sort"
	"time"
)

// Type 买卖方向。
type Type string

const (
	Buy  Type = "buy"
	Sell Type = "sell"
)

func (t Type) DisplayName() string {
	switch t {
	case Buy:
		return "MB(买入)"
	case Sell:
		return "MS(卖出)"
	default:
		return string(t)
	}
}

func (t Type) Icon() string {
	switch t {
	case Buy:
		return "🔴"
	case Sell:
		return "🟢"
	default:
		return ""
	}
}

func (t Type) FullText() string { return t.Icon() + " " + t.DisplayName() }

// Opposite 返回反向信号类型。
func (t Type) Opposite() Type {
	if t == Buy {
		return Sell
	}
	return Buy
}

// Strength 信号强度。
type Strength string

const (
	Strong Strength = "strong"
	Weak   Strength = "weak"
)

func (s Strength) DisplayName() string {
	if s == Strong {
		return "强"
	}
	return "弱"
}

func (s Strength) Icon() string {
	if s == Strong {
		return "🔥"
	}
	return "🥀"
}

func (s Strength) FullText() string { return s.Icon() + " " + s.DisplayName() }

// Action 多阶段分析器给出的开平仓动作。
type Action string

const (
	EnterLong  Action = "ENTER_LONG"
	ExitLong   Action = "EXIT_LONG"
	EnterShort Action = "ENTER_SHORT"
	ExitShort  Action = "EXIT_SHORT"
)

func (a Action) ShowText() string {
	switch a {
	case EnterLong:
		return "🟢买入开多"
	case ExitLong:
		return "🟡卖出平多"
	case EnterShort:
		return "🔴卖出开空"
	case ExitShort:
		return "🟠买入平空"
	default:
		return ""
	}
}

// IsExit 是否为平仓动作。
func (a Action) IsExit() bool { return a == ExitLong || a == ExitShort }

// Signal 是一条交易信号。Date 为 K 线 OpenTime（毫秒）。
// Strategy 为产生信号的策略代码，合并后的多来源记录在 Strategies。
type Signal struct {
	Date        int64    `json:"date"`
	Price       float64  `json:"price"`
	Type        Type     `json:"type"`
	Strength    Strength `json:"strength"`
	Strategy    string   `json:"strategy,omitempty"`
	Strategies  []string `json:"strategies,omitempty"`
	Action      Action   `json:"action,omitempty"`
	Score       float64  `json:"score,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	PatternName string   `json:"pattern_name,omitempty"`
	Details     Details  `json:"details,omitempty"`
}

func (s Signal) Time() time.Time { return time.UnixMilli(s.Date).UTC() }

// StrategyCodes 返回参与该信号的策略代码，优先使用合并后的 Strategies。
func (s Signal) StrategyCodes() []string {
	if len(s.Strategies) > 0 {
		return append([]string(nil), s.Strategies...)
	}
	if s.Strategy != "" {
		return []string{s.Strategy}
	}
	return nil
}

// Clone 深拷贝切片字段，Details 为不可变值直接共享。
func (s Signal) Clone() Signal {
	out := s
	if s.Strategies != nil {
		out.Strategies = append([]string(nil), s.Strategies...)
	}
	return out
}

// SortByDate 按日期稳定排序（原地）。
func SortByDate(signals []Signal) {
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Date < signals[j].Date })
}
