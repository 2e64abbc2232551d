package export

import (
	"strings"

	"candlesig/internal/analysis/pattern"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// Row 一根 K 线及当日的信号与形态，导出用的扁平结构。
type Row struct {
	Date     int64   `json:"date" parquet:"date"`
	Open     float64 `json:"open" parquet:"open"`
	High     float64 `json:"high" parquet:"high"`
	Low      float64 `json:"low" parquet:"low"`
	Close    float64 `json:"close" parquet:"close"`
	Volume   float64 `json:"volume" parquet:"volume"`
	Signal   string  `json:"signal,omitempty" parquet:"signal,optional"`
	Strength string  `json:"strength,omitempty" parquet:"strength,optional"`
	Strategy string  `json:"strategy,omitempty" parquet:"strategy,optional"`
	Action   string  `json:"action,omitempty" parquet:"action,optional"`
	Score    float64 `json:"score,omitempty" parquet:"score,optional"`
	Patterns string  `json:"patterns,omitempty" parquet:"patterns,optional"`
}

// BuildRows 按 K 线对齐信号与形态。同一天多个信号时取最后一个，形态名以 "|" 连接。
func BuildRows(candles []market.Candle, signals []signal.Signal, patterns []pattern.Occurrence) []Row {
	byDate := make(map[int64]signal.Signal, len(signals))
	for _, s := range signals {
		byDate[s.Date] = s
	}
	names := make(map[int][]string)
	for _, p := range patterns {
		names[p.Index] = append(names[p.Index], p.Name)
	}
	rows := make([]Row, len(candles))
	for i, c := range candles {
		r := Row{Date: c.OpenTime, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
		if s, ok := byDate[c.OpenTime]; ok {
			r.Signal = string(s.Type)
			r.Strength = string(s.Strength)
			r.Strategy = strings.Join(s.StrategyCodes(), ",")
			r.Action = string(s.Action)
			r.Score = s.Score
		}
		r.Patterns = strings.Join(names[i], "|")
		rows[i] = r
	}
	return rows
}
