package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/analysis/pattern"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// ErrNoCandles 无 K 线时不渲染。
var ErrNoCandles = errors.New("chart: no candles")

// Input K 线图的数据来源。
type Input struct {
	Title    string
	Candles  []market.Candle
	MA       []int
	Signals  []signal.Signal
	Patterns []pattern.Occurrence
	Width    string
	Height   string
}

const (
	upColor   = "#ec0000"
	downColor = "#00da3c"
)

// RenderKline 生成单页 HTML：K 线、均线叠加，信号与形态以标记点标出。
func RenderKline(w io.Writer, in Input) error {
	if len(in.Candles) == 0 {
		return ErrNoCandles
	}
	if in.Width == "" {
		in.Width = "1200px"
	}
	if in.Height == "" {
		in.Height = "600px"
	}
	dates := make([]string, len(in.Candles))
	bars := make([]opts.KlineData, len(in.Candles))
	closes := make([]float64, len(in.Candles))
	index := make(map[int64]int, len(in.Candles))
	for i, c := range in.Candles {
		dates[i] = label(c.OpenTime)
		// echarts 蜡烛图取值顺序：开、收、低、高
		bars[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
		closes[i] = c.Close
		index[c.OpenTime] = i
	}

	k := charts.NewKLine()
	k.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: in.Width, Height: in.Height, PageTitle: in.Title}),
		charts.WithTitleOpts(opts.Title{Title: in.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 0, End: 100},
			opts.DataZoom{Type: "slider", Start: 0, End: 100},
		),
	)
	k.SetXAxis(dates).AddSeries("K线", bars,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: upColor, Color0: downColor, BorderColor: upColor, BorderColor0: downColor}),
		charts.WithMarkPointNameCoordItemOpts(markPoints(in, dates, index)...),
		charts.WithMarkPointStyleOpts(opts.MarkPointStyle{Label: &opts.Label{Show: opts.Bool(true)}}),
	)

	if len(in.MA) > 0 {
		line := charts.NewLine()
		line.SetXAxis(dates)
		for _, window := range in.MA {
			ma := indicator.SMA(closes, window, 0)
			data := make([]opts.LineData, len(ma))
			for i, v := range ma {
				if math.IsNaN(v) {
					data[i] = opts.LineData{Value: "-"}
					continue
				}
				data[i] = opts.LineData{Value: math.Round(v*100) / 100}
			}
			line.AddSeries(fmt.Sprintf("MA%d", window), data)
		}
		k.Overlap(line)
	}
	return k.Render(w)
}

func markPoints(in Input, dates []string, index map[int64]int) []opts.MarkPointNameCoordItem {
	var out []opts.MarkPointNameCoordItem
	for _, s := range in.Signals {
		i, ok := index[s.Date]
		if !ok {
			continue
		}
		c := in.Candles[i]
		name := s.Type.DisplayName()
		color := upColor
		y := c.Low
		if s.Type == signal.Sell {
			color = downColor
			y = c.High
		}
		if s.Action != "" {
			name = s.Action.ShowText()
		}
		out = append(out, opts.MarkPointNameCoordItem{
			Name:       name,
			Coordinate: []interface{}{dates[i], y},
			Value:      name,
			Symbol:     "pin",
			ItemStyle:  &opts.ItemStyle{Color: color},
		})
	}
	for _, p := range in.Patterns {
		if p.Index < 0 || p.Index >= len(in.Candles) {
			continue
		}
		c := in.Candles[p.Index]
		out = append(out, opts.MarkPointNameCoordItem{
			Name:       p.Name,
			Coordinate: []interface{}{dates[p.Index], c.High},
			Value:      p.Icon + p.Name,
			Symbol:     "circle",
			SymbolSize: 8,
			ItemStyle:  &opts.ItemStyle{Color: "#5470c6"},
		})
	}
	return out
}

func label(ms int64) string {
	t := time.UnixMilli(ms).UTC()
	if t.Hour() == 0 && t.Minute() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04")
}
