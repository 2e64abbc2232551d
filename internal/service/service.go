package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"candlesig/internal/backtest"
	"candlesig/internal/gateway/cache"
	"candlesig/internal/logger"
	"candlesig/internal/market"
	"candlesig/internal/signal"
	"candlesig/internal/store"
)

// ErrNoData 既没有缓存序列也没有行情源可用。
var ErrNoData = errors.New("no candles available")

// ErrUnknownSource 回测信号来源不是 strategy / multi_stage。
var ErrUnknownSource = errors.New("未知信号来源")

// 信号存储来源标记。
const (
	SourceStrategy   = "strategy"
	SourceMultiStage = "multi_stage"
)

// SignalRepository 信号与回测摘要的持久化。
type SignalRepository interface {
	ReplaceSignals(ctx context.Context, symbol, interval, source string, signals []signal.Signal) error
	SaveBacktest(ctx context.Context, symbol, interval, source string, res backtest.Result) error
}

// Config 服务参数。
type Config struct {
	// HistoryLimit 默认拉取/分析的 K 线数量。
	HistoryLimit int
	// MaxSeries 每个序列在内存中保留的最大 K 线数。
	MaxSeries int
	// CacheTTL 多阶段分析结果缓存时长，<=0 不缓存。
	CacheTTL time.Duration
	// BatchConcurrency 批量分析的并发数。
	BatchConcurrency int
	// Persist 是否将信号写入 SignalRepository。
	Persist bool
}

func (c Config) withDefaults() Config {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 500
	}
	if c.MaxSeries <= 0 {
		c.MaxSeries = 2000
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 4
	}
	return c
}

// Service 汇总行情加载、形态/策略/多阶段分析、回测与持久化。
type Service struct {
	cfg    Config
	source market.Source
	series store.SeriesStore
	cache  cache.Cache
	repo   SignalRepository

	jobsMu sync.RWMutex
	jobs   map[string]*BatchJob
}

// Deps 可选依赖，nil 字段表示不启用该能力（series 缺省为内存实现）。
type Deps struct {
	Source market.Source
	Series store.SeriesStore
	Cache  cache.Cache
	Repo   SignalRepository
}

func New(cfg Config, deps Deps) *Service {
	if deps.Series == nil {
		deps.Series = store.NewMemorySeriesStore()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		source: deps.Source,
		series: deps.Series,
		cache:  deps.Cache,
		repo:   deps.Repo,
		jobs:   make(map[string]*BatchJob),
	}
}

func (s *Service) Config() Config { return s.cfg }

// Request 标识一个待分析的序列。
type Request struct {
	Symbol   string `json:"symbol" form:"symbol"`
	Interval string `json:"interval" form:"interval"`
	Limit    int    `json:"limit" form:"limit"`
}

func (r Request) normalize(def int) (Request, error) {
	r.Symbol = strings.ToUpper(strings.TrimSpace(r.Symbol))
	r.Interval = strings.ToLower(strings.TrimSpace(r.Interval))
	if r.Symbol == "" {
		return r, errors.New("symbol 不能为空")
	}
	if r.Interval == "" {
		r.Interval = "1d"
	}
	if r.Limit <= 0 {
		r.Limit = def
	}
	return r, nil
}

// Import 将外部 K 线（如 CSV）写入序列缓存，之后的分析直接使用。
func (s *Service) Import(ctx context.Context, symbol, interval string, candles []market.Candle) error {
	if len(candles) == 0 {
		return fmt.Errorf("%w: no candles to import", market.ErrInvalidSeries)
	}
	if err := market.ValidateSeries(candles); err != nil {
		return err
	}
	req, err := Request{Symbol: symbol, Interval: interval}.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	max := s.cfg.MaxSeries
	if len(candles) > max {
		max = len(candles)
	}
	return s.series.Merge(ctx, req.Symbol, req.Interval, candles, max)
}

// LoadSeries 优先读内存序列，不足 limit 且配置了行情源时补拉并合并。
func (s *Service) LoadSeries(ctx context.Context, req Request) ([]market.Candle, error) {
	req, err := req.normalize(s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	cached, err := s.series.Window(ctx, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		return nil, err
	}
	if len(cached) >= req.Limit || s.source == nil {
		if len(cached) == 0 {
			return nil, fmt.Errorf("%s %s: %w", req.Symbol, req.Interval, ErrNoData)
		}
		return cached, nil
	}
	fetched, err := s.source.FetchHistory(ctx, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		if len(cached) > 0 {
			logger.Warnf("[service] %s %s 拉取失败，使用缓存的 %d 根: %v", req.Symbol, req.Interval, len(cached), err)
			return cached, nil
		}
		return nil, fmt.Errorf("拉取 %s %s 失败: %w", req.Symbol, req.Interval, err)
	}
	if err := s.series.Merge(ctx, req.Symbol, req.Interval, fetched, s.cfg.MaxSeries); err != nil {
		return nil, err
	}
	out, err := s.series.Window(ctx, req.Symbol, req.Interval, req.Limit)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s %s: %w", req.Symbol, req.Interval, ErrNoData)
	}
	logger.Debugf("[service] %s %s 加载 %d 根 K 线", req.Symbol, req.Interval, len(out))
	return out, nil
}

func (s *Service) persist(ctx context.Context, req Request, source string, signals []signal.Signal) {
	if s.repo == nil || !s.cfg.Persist {
		return
	}
	if err := s.repo.ReplaceSignals(ctx, req.Symbol, req.Interval, source, signals); err != nil {
		logger.Warnf("[service] 保存 %s %s 信号失败: %v", req.Symbol, source, err)
	}
}
