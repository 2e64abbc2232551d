package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// 边界表格的必需列。
var requiredColumns = []string{"date", "opening", "closing", "highest", "lowest", "turnover_count"}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006/01/02",
	"20060102",
}

// LoadCSV 读取带表头的 OHLCV 表格，列顺序不限，多余列忽略。
// 缺少必需列时返回包装了列名的 ErrMissingColumn。
func LoadCSV(r io.Reader) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty table", ErrMissingColumn)
		}
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := pos[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var out []Candle
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("读取第 %d 行失败: %w", line, err)
		}
		ts, err := parseDate(rec[pos["date"]])
		if err != nil {
			return nil, fmt.Errorf("第 %d 行日期非法: %w", line, err)
		}
		c := Candle{OpenTime: ts, CloseTime: ts}
		fields := []struct {
			col string
			dst *float64
		}{
			{"opening", &c.Open},
			{"closing", &c.Close},
			{"highest", &c.High},
			{"lowest", &c.Low},
			{"turnover_count", &c.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[pos[f.col]]), 64)
			if err != nil {
				return nil, fmt.Errorf("第 %d 行 %s 非法: %w", line, f.col, err)
			}
			*f.dst = v
		}
		out = append(out, c)
	}
	return out, nil
}

// parseDate 接受常见日期格式或毫秒时间戳。
func parseDate(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	return 0, fmt.Errorf("unsupported date %q", raw)
}
