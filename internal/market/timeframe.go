package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timeframe 描述 K 线周期，例如 15m/4h/1d/1w。
type Timeframe struct {
	Label    string
	Duration time.Duration
}

// ParseTimeframe 解析周期字符串。
func ParseTimeframe(s string) (Timeframe, error) {
	label := strings.ToLower(strings.TrimSpace(s))
	if len(label) < 2 {
		return Timeframe{}, fmt.Errorf("非法周期: %q", s)
	}
	n, err := strconv.Atoi(label[:len(label)-1])
	if err != nil || n <= 0 {
		return Timeframe{}, fmt.Errorf("非法周期: %q", s)
	}
	var unit time.Duration
	switch label[len(label)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return Timeframe{}, fmt.Errorf("非法周期: %q", s)
	}
	return Timeframe{Label: label, Duration: time.Duration(n) * unit}, nil
}

func (tf Timeframe) durationMillis() int64 {
	return tf.Duration.Milliseconds()
}

// AlignRange 将区间对齐到周期边界：起点向上取整，终点向下取整。
func (tf Timeframe) AlignRange(start, end int64) (int64, int64) {
	step := tf.durationMillis()
	if step <= 0 {
		return start, end
	}
	alStart := start
	if rem := start % step; rem != 0 {
		alStart = start - rem + step
	}
	alEnd := end - end%step
	return alStart, alEnd
}

// ExpectedCandles 区间内（含端点）应有的 K 线数量。
func (tf Timeframe) ExpectedCandles(start, end int64) int64 {
	step := tf.durationMillis()
	if step <= 0 || end < start {
		return 0
	}
	return (end-start)/step + 1
}
