package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"candlesig/internal/chart"
	"candlesig/internal/coins"
	"candlesig/internal/config"
	"candlesig/internal/config/writer"
	"candlesig/internal/gateway/binance"
	"candlesig/internal/gateway/cache"
	"candlesig/internal/gateway/database"
	"candlesig/internal/logger"
	"candlesig/internal/market"
	"candlesig/internal/scheduler"
	"candlesig/internal/service"
	"candlesig/internal/store"
	"candlesig/internal/transport/http/api"
)

// ConfigPath 配置文件路径（for Wire）。
type ConfigPath string

// ProvideConfig 读取配置并初始化日志（for Wire）。
func ProvideConfig(path ConfigPath) (*config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

// ProvideSource 构建 Binance 行情源；binance.disabled 时返回 nil，只用导入数据。
func ProvideSource(cfg *config.Config) (market.Source, func(), error) {
	if cfg.Binance.Disabled {
		logger.Infof("[app] binance 已禁用，仅使用导入的 K 线")
		return nil, func() {}, nil
	}
	src, err := binance.New(cfg.BinanceConfig())
	if err != nil {
		return nil, nil, err
	}
	return src, func() { _ = src.Close() }, nil
}

// ProvideSeriesStore 内存 K 线序列。
func ProvideSeriesStore() store.SeriesStore {
	return store.NewMemorySeriesStore()
}

// ProvideCache 配置了 redis.addr 时使用 redis，否则进程内缓存。
func ProvideCache(cfg *config.Config) (cache.Cache, func(), error) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		return cache.NewMemoryCache(), func() {}, nil
	}
	rc := cache.NewRedisCache(cfg.RedisConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, nil, err
	}
	logger.Infof("[app] 使用 redis 缓存 %s", cfg.Redis.Addr)
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideSignalStore database.enabled 为 false 时返回 nil。
func ProvideSignalStore(cfg *config.Config) (*database.SignalStore, func(), error) {
	if !cfg.Database.Enabled {
		return nil, func() {}, nil
	}
	if cfg.Database.Driver == database.DriverSQLite && cfg.Database.DSN != ":memory:" {
		if dir := filepath.Dir(cfg.Database.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("创建数据库目录失败: %w", err)
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("[app] 信号存储 %s", cfg.Database.Driver)
	return st, func() { _ = st.Close() }, nil
}

// ProvideService 组装分析服务。
func ProvideService(cfg *config.Config, src market.Source, series store.SeriesStore, c cache.Cache, st *database.SignalStore) *service.Service {
	deps := service.Deps{Source: src, Series: series, Cache: c}
	if st != nil {
		deps.Repo = st
	}
	return service.New(cfg.ServiceConfig(), deps)
}

func ProvideProfileWriter(cfg *config.Config) *writer.ProfileWriter {
	return writer.NewProfileWriter(cfg.HTTP.ProfilesPath)
}

// ProvideServer 构建 HTTP 接口。
func ProvideServer(cfg *config.Config, svc *service.Service, pw *writer.ProfileWriter, st *database.SignalStore) (*api.Server, error) {
	hc := api.Config{
		Addr:     cfg.HTTP.Addr,
		Svc:      svc,
		Profiles: pw,
		Snapshot: chart.SnapshotOptions{Width: cfg.Chart.Width, Height: cfg.Chart.Height},
		Analysis: cfg.Analysis,
		Backtest: cfg.BacktestOptions(),
	}
	if st != nil {
		hc.History = st
	}
	return api.NewServer(hc)
}

// ProvideScheduler 注册配置中的定时任务，任务可引用 profile 的品种与分析参数。
func ProvideScheduler(cfg *config.Config, svc *service.Service, pw *writer.ProfileWriter) (*scheduler.Scheduler, error) {
	sched := scheduler.New(svc, 0, logRun)
	for _, tc := range cfg.Schedule {
		task, err := buildTask(cfg, pw, tc)
		if err != nil {
			return nil, err
		}
		if err := sched.Register(task); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func buildTask(cfg *config.Config, pw *writer.ProfileWriter, tc config.TaskConfig) (scheduler.Task, error) {
	params := service.BatchParams{
		Symbols:  tc.Symbols,
		Interval: tc.Interval,
		Limit:    tc.Limit,
		Options:  cfg.Analysis,
	}
	if tc.Profile != "" {
		entry, err := pw.GetProfile(tc.Profile)
		if err != nil {
			return scheduler.Task{}, fmt.Errorf("task %s: %w", tc.Name, err)
		}
		params.Options = entry.Analysis
		if len(params.Symbols) == 0 {
			params.Symbols = entry.Symbols
		}
		if params.Limit <= 0 {
			params.Limit = entry.Limit
		}
	}
	task := scheduler.Task{Name: tc.Name, Spec: tc.Cron, Params: params}
	if tc.SymbolsURL != "" {
		task.Universe = coins.NewDynamicProvider(coins.DynamicConfig{
			URL:            tc.SymbolsURL,
			Quote:          tc.Quote,
			RefreshSeconds: tc.RefreshSeconds,
			Fallback:       params.Symbols,
			Override:       tc.Override,
		})
	} else if tc.Quote != "" {
		task.Universe = coins.NewStaticProvider(params.Symbols, tc.Quote)
	}
	return task, nil
}

func logRun(run scheduler.Run) {
	for _, item := range run.Items {
		if item.Error != "" {
			logger.Warnf("[schedule] %s %s: %s", run.Task, item.Symbol, item.Error)
			continue
		}
		if item.Latest == nil {
			logger.Infof("[schedule] %s %s: 无信号", run.Task, item.Symbol)
			continue
		}
		logger.Infof("[schedule] %s %s: 最新 %s (%d 个信号, 趋势 %d 天)",
			run.Task, item.Symbol, item.Latest.ShowText, item.Signals, item.TrendDays)
	}
}
