package strategy

import (
	"fmt"

	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// CalcOptions 批量计算参数。
type CalcOptions struct {
	// MergeAndFilter 合并同日信号并过滤连续同向弱信号。
	MergeAndFilter bool
	// Fusion 为空时融合策略使用投票模式、最少 2 票。
	Fusion *FusionConfig
}

func (o CalcOptions) fusion() FusionConfig {
	if o.Fusion != nil {
		return *o.Fusion
	}
	cfg := DefaultFusionConfig()
	cfg.MinConsensus = 2
	return cfg
}

// CalculateByStrategy 逐个策略计算，types 为空表示全部策略（含融合）。
// 结果顺序与 types 一致。
func CalculateByStrategy(candles []market.Candle, types []Type, opts CalcOptions) ([]Result, error) {
	if err := market.ValidateSeries(candles); err != nil {
		return nil, err
	}
	if len(types) == 0 {
		types = AllTypes()
	}
	out := make([]Result, 0, len(types))
	for _, t := range types {
		s, err := New(t, opts.fusion())
		if err != nil {
			return nil, err
		}
		res, err := s.Generate(candles)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Text(), err)
		}
		for i := range res.Signals {
			if res.Signals[i].Strategy == "" {
				res.Signals[i].Strategy = string(t)
			}
		}
		signal.SortByDate(res.Signals)
		if opts.MergeAndFilter {
			res.Signals = signal.MergeAndFilter(res.Signals)
		}
		out = append(out, res)
	}
	return out, nil
}

// CalculateAll 汇总所有策略的信号，按日期排序，必要时合并过滤。
func CalculateAll(candles []market.Candle, types []Type, opts CalcOptions) ([]signal.Signal, error) {
	perStrategy := opts
	perStrategy.MergeAndFilter = false
	results, err := CalculateByStrategy(candles, types, perStrategy)
	if err != nil {
		return nil, err
	}
	var all []signal.Signal
	for _, r := range results {
		all = append(all, r.Signals...)
	}
	if opts.MergeAndFilter {
		return signal.MergeAndFilter(all), nil
	}
	signal.SortByDate(all)
	return all, nil
}
