package signal

import "time"

// DefaultFilterGap 同向弱信号之间至少间隔 3 个自然日才保留。
const DefaultFilterGap = 72 * time.Hour

// MergeByDate 合并同一时间戳的信号：有强信号时取第一个强信号并记录全部强信号来源，
// 否则取第一个弱信号并记录全部来源。输出按日期首次出现的顺序排列。
func MergeByDate(signals []Signal) []Signal {
	if len(signals) == 0 {
		return nil
	}
	order := make([]int64, 0, len(signals))
	groups := make(map[int64][]Signal, len(signals))
	for _, s := range signals {
		if _, ok := groups[s.Date]; !ok {
			order = append(order, s.Date)
		}
		groups[s.Date] = append(groups[s.Date], s)
	}
	out := make([]Signal, 0, len(order))
	for _, date := range order {
		group := groups[date]
		if len(group) == 1 {
			out = append(out, group[0].Clone())
			continue
		}
		var strong []Signal
		for _, s := range group {
			if s.Strength == Strong {
				strong = append(strong, s)
			}
		}
		pick := group
		if len(strong) > 0 {
			pick = strong
		}
		merged := pick[0].Clone()
		if len(pick) > 1 {
			merged.Strategies = collectStrategies(pick)
		}
		out = append(out, merged)
	}
	return out
}

func collectStrategies(group []Signal) []string {
	var out []string
	for _, s := range group {
		out = append(out, s.StrategyCodes()...)
	}
	return out
}

// FilterConsecutive 按默认 3 天间隔过滤连续同向信号，输入需已按日期排序。
func FilterConsecutive(signals []Signal) []Signal {
	return FilterConsecutiveWithin(signals, DefaultFilterGap)
}

// FilterConsecutiveWithin 保留规则：与上一条保留信号方向不同，或为强信号，
// 或距上一条保留信号超过 gap。结果是输入的子序列。
func FilterConsecutiveWithin(signals []Signal, gap time.Duration) []Signal {
	if len(signals) <= 1 {
		return append([]Signal(nil), signals...)
	}
	out := []Signal{signals[0]}
	for _, cur := range signals[1:] {
		prev := out[len(out)-1]
		keep := false
		switch {
		case cur.Type != prev.Type:
			keep = true
		case cur.Strength == Strong:
			keep = true
		case time.Duration(cur.Date-prev.Date)*time.Millisecond > gap:
			keep = true
		}
		if keep {
			out = append(out, cur)
		}
	}
	return out
}

// MergeAndFilter 合并同日信号、排序后过滤连续信号。
func MergeAndFilter(signals []Signal) []Signal {
	merged := MergeByDate(signals)
	SortByDate(merged)
	return FilterConsecutive(merged)
}
