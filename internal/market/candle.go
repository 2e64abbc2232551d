package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Candle 表示单根 K 线（OpenTime 即该 bar 的日期）。
type Candle struct {
	OpenTime  int64   `json:"open_time" parquet:"open_time"`
	CloseTime int64   `json:"close_time" parquet:"close_time"`
	Open      float64 `json:"open" parquet:"open"`
	High      float64 `json:"high" parquet:"high"`
	Low       float64 `json:"low" parquet:"low"`
	Close     float64 `json:"close" parquet:"close"`
	Volume    float64 `json:"volume" parquet:"volume"`
	Trades    int64   `json:"trades,omitempty" parquet:"trades,optional"`
}

// Time 返回 OpenTime 对应的 UTC 时间。
func (c Candle) Time() time.Time { return time.UnixMilli(c.OpenTime).UTC() }

// Body 实体长度。
func (c Candle) Body() float64 { return math.Abs(c.Close - c.Open) }

// Range 最高价与最低价之差。
func (c Candle) Range() float64 { return c.High - c.Low }

// UpperShadow 上影线长度。
func (c Candle) UpperShadow() float64 { return c.High - math.Max(c.Open, c.Close) }

// LowerShadow 下影线长度。
func (c Candle) LowerShadow() float64 { return math.Min(c.Open, c.Close) - c.Low }

func (c Candle) Bullish() bool { return c.Close > c.Open }
func (c Candle) Bearish() bool { return c.Close < c.Open }

// Midpoint 实体中点。
func (c Candle) Midpoint() float64 { return (c.Open + c.Close) / 2 }

var (
	// ErrInvalidSeries 表示输入序列不满足日期递增或价格有效的前置条件。
	ErrInvalidSeries = errors.New("invalid price series")
	// ErrMissingColumn 表示 CSV 缺少必需列。
	ErrMissingColumn = errors.New("missing required column")
)

// ValidateSeries 检查日期严格递增、价格为正且有限、成交量非负。
// 空序列视为合法；高低价一致性不在此校验。
func ValidateSeries(candles []Candle) error {
	for i, c := range candles {
		if i > 0 && c.OpenTime <= candles[i-1].OpenTime {
			return fmt.Errorf("%w: bar %d date %d not after %d", ErrInvalidSeries, i, c.OpenTime, candles[i-1].OpenTime)
		}
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return fmt.Errorf("%w: bar %d has invalid price %v", ErrInvalidSeries, i, v)
			}
		}
		if math.IsNaN(c.Volume) || math.IsInf(c.Volume, 0) || c.Volume < 0 {
			return fmt.Errorf("%w: bar %d has invalid volume %v", ErrInvalidSeries, i, c.Volume)
		}
	}
	return nil
}

// Columns 是按列拆分后的对齐序列。
type Columns struct {
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// Split 将 K 线拆分为 OHLCV 列，不修改输入。
func Split(candles []Candle) Columns {
	n := len(candles)
	out := Columns{
		Opens:   make([]float64, n),
		Highs:   make([]float64, n),
		Lows:    make([]float64, n),
		Closes:  make([]float64, n),
		Volumes: make([]float64, n),
	}
	for i, c := range candles {
		out.Opens[i] = c.Open
		out.Highs[i] = c.High
		out.Lows[i] = c.Low
		out.Closes[i] = c.Close
		out.Volumes[i] = c.Volume
	}
	return out
}

// Closes 只取收盘价。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
