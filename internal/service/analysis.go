package service

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/analysis/pattern"
	"candlesig/internal/backtest"
	"candlesig/internal/chart"
	"candlesig/internal/decision"
	"candlesig/internal/export"
	"candlesig/internal/logger"
	"candlesig/internal/market"
	"candlesig/internal/signal"
	"candlesig/internal/strategy"
)

// Analysis 多阶段分析结果。
type Analysis struct {
	Symbol    string                  `json:"symbol"`
	Interval  string                  `json:"interval"`
	Count     int                     `json:"count"`
	Options   decision.Options        `json:"options"`
	Integrity *market.IntegrityReport `json:"integrity,omitempty"`
	Cached    bool                    `json:"cached"`
	decision.Result
}

func analysisKey(req Request, candles []market.Candle, opts decision.Options) string {
	raw, _ := json.Marshal(opts)
	sum := sha1.Sum(raw)
	last := candles[len(candles)-1]
	return fmt.Sprintf("analysis:%s:%s:%d:%d:%s", req.Symbol, req.Interval, len(candles), last.OpenTime, hex.EncodeToString(sum[:8]))
}

// Analyze 运行多阶段分析器，相同序列与参数的结果走缓存。
func (s *Service) Analyze(ctx context.Context, req Request, opts decision.Options) (*Analysis, error) {
	req, err := req.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	candles, err := s.LoadSeries(ctx, req)
	if err != nil {
		return nil, err
	}
	opts = opts.Normalize()
	key := analysisKey(req, candles, opts)
	if s.cache != nil && s.cfg.CacheTTL > 0 {
		var cached Analysis
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			logger.Warnf("[service] 读取缓存失败 %s: %v", key, err)
		} else if hit {
			cached.Cached = true
			return &cached, nil
		}
	}

	an, err := decision.NewAnalyzer(candles, opts)
	if err != nil {
		return nil, err
	}
	out := &Analysis{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Count:    len(candles),
		Options:  an.Options(),
		Result:   an.Analyze(),
	}
	if tf, err := market.ParseTimeframe(req.Interval); err == nil {
		rep := market.CheckIntegrity(candles, tf)
		out.Integrity = &rep
	}
	logger.Infof("[service] %s %s 多阶段分析完成: %d 根 K 线, %d 个信号", req.Symbol, req.Interval, len(candles), len(out.Signals))

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		if err := s.cache.Set(ctx, key, out, s.cfg.CacheTTL); err != nil {
			logger.Warnf("[service] 写入缓存失败 %s: %v", key, err)
		}
	}
	s.persist(ctx, req, SourceMultiStage, out.BaseSignals())
	return out, nil
}

// SignalsRequest 策略信号计算参数。
type SignalsRequest struct {
	Request
	Strategies []strategy.Type        `json:"strategies"`
	Merge      bool                   `json:"merge"`
	Fusion     *strategy.FusionConfig `json:"fusion,omitempty"`
}

// Signals 计算各策略信号；Merge 时合并同日信号并过滤连续同向弱信号。
func (s *Service) Signals(ctx context.Context, req SignalsRequest) ([]signal.Signal, error) {
	base, err := req.Request.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	candles, err := s.LoadSeries(ctx, base)
	if err != nil {
		return nil, err
	}
	signals, err := strategy.CalculateAll(candles, req.Strategies, strategy.CalcOptions{MergeAndFilter: req.Merge, Fusion: req.Fusion})
	if err != nil {
		return nil, err
	}
	s.persist(ctx, base, SourceStrategy, signals)
	return signals, nil
}

// StrategyResults 按策略分别返回信号。
func (s *Service) StrategyResults(ctx context.Context, req SignalsRequest) ([]strategy.Result, error) {
	base, err := req.Request.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	candles, err := s.LoadSeries(ctx, base)
	if err != nil {
		return nil, err
	}
	return strategy.CalculateByStrategy(candles, req.Strategies, strategy.CalcOptions{MergeAndFilter: req.Merge, Fusion: req.Fusion})
}

// Patterns 识别蜡烛图形态，types 为空表示全部。
func (s *Service) Patterns(ctx context.Context, req Request, opts pattern.Options, types ...pattern.Type) ([]pattern.Occurrence, error) {
	candles, err := s.LoadSeries(ctx, req)
	if err != nil {
		return nil, err
	}
	opts = pattern.NormalizeOptions(opts)
	if len(types) == 0 {
		return pattern.DetectAll(candles, opts), nil
	}
	return pattern.DetectTypes(candles, opts, types...), nil
}

// Indicators 最新指标值及状态。
func (s *Service) Indicators(ctx context.Context, req Request, cfg indicator.Settings) (indicator.Report, error) {
	req, err := req.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return indicator.Report{}, err
	}
	candles, err := s.LoadSeries(ctx, req)
	if err != nil {
		return indicator.Report{}, err
	}
	cfg.Symbol, cfg.Interval = req.Symbol, req.Interval
	return indicator.ComputeReport(candles, cfg)
}

// BacktestRequest 回测参数，Source 决定使用策略信号还是多阶段信号。
type BacktestRequest struct {
	SignalsRequest
	Source   string           `json:"source"`
	Decision decision.Options `json:"decision"`
	Options  backtest.Options `json:"options"`
}

// Backtest 生成信号后按信号强度模拟交易。
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (backtest.Result, error) {
	base, err := req.Request.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return backtest.Result{}, err
	}
	req.Request = base
	candles, err := s.LoadSeries(ctx, base)
	if err != nil {
		return backtest.Result{}, err
	}
	var signals []signal.Signal
	switch req.Source {
	case SourceMultiStage:
		an, err := decision.NewAnalyzer(candles, req.Decision)
		if err != nil {
			return backtest.Result{}, err
		}
		signals = an.Analyze().BaseSignals()
	case "", SourceStrategy:
		req.Source = SourceStrategy
		signals, err = strategy.CalculateAll(candles, req.Strategies, strategy.CalcOptions{MergeAndFilter: true, Fusion: req.Fusion})
		if err != nil {
			return backtest.Result{}, err
		}
	default:
		return backtest.Result{}, fmt.Errorf("%w: %s", ErrUnknownSource, req.Source)
	}
	res, err := backtest.Run(candles, signals, req.Options)
	if err != nil {
		return backtest.Result{}, err
	}
	if s.repo != nil && s.cfg.Persist {
		if err := s.repo.SaveBacktest(ctx, base.Symbol, base.Interval, req.Source, res); err != nil {
			logger.Warnf("[service] 保存回测记录失败: %v", err)
		}
	}
	return res, nil
}

// ChartRequest 图表参数。
type ChartRequest struct {
	Request
	Decision decision.Options `json:"decision"`
	MA       []int            `json:"ma"`
}

// ChartHTML 渲染带多阶段信号与形态标记的 K 线页面。
func (s *Service) ChartHTML(ctx context.Context, req ChartRequest) ([]byte, error) {
	in, err := s.chartInput(ctx, req)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := chart.RenderKline(&buf, in); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChartPNG 同 ChartHTML，经无头浏览器截图。
func (s *Service) ChartPNG(ctx context.Context, req ChartRequest, so chart.SnapshotOptions) ([]byte, error) {
	in, err := s.chartInput(ctx, req)
	if err != nil {
		return nil, err
	}
	return chart.Snapshot(ctx, in, so)
}

func (s *Service) chartInput(ctx context.Context, req ChartRequest) (chart.Input, error) {
	base, err := req.Request.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return chart.Input{}, err
	}
	candles, err := s.LoadSeries(ctx, base)
	if err != nil {
		return chart.Input{}, err
	}
	an, err := decision.NewAnalyzer(candles, req.Decision)
	if err != nil {
		return chart.Input{}, err
	}
	ma := req.MA
	if len(ma) == 0 {
		ma = an.Options().MAWindows
	}
	res := an.Analyze()
	return chart.Input{
		Title:    fmt.Sprintf("%s %s", base.Symbol, base.Interval),
		Candles:  candles,
		MA:       ma,
		Signals:  res.BaseSignals(),
		Patterns: an.Patterns(),
	}, nil
}

// ExportRows 多阶段信号与形态按 K 线展开为导出行。
func (s *Service) ExportRows(ctx context.Context, req Request, opts decision.Options) ([]export.Row, error) {
	candles, err := s.LoadSeries(ctx, req)
	if err != nil {
		return nil, err
	}
	an, err := decision.NewAnalyzer(candles, opts)
	if err != nil {
		return nil, err
	}
	res := an.Analyze()
	return export.BuildRows(candles, res.BaseSignals(), an.Patterns()), nil
}
