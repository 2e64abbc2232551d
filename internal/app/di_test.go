package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"candlesig/internal/config"
	"candlesig/internal/config/writer"
	"candlesig/internal/decision"
	"candlesig/internal/gateway/cache"
	"candlesig/internal/logger"
	"candlesig/internal/scheduler"
	"candlesig/internal/service"
	"candlesig/internal/signal"
)

func TestBuildTaskUsesProfile(t *testing.T) {
	cfg := &config.Config{}
	cfg.Normalize()
	pw := writer.NewProfileWriter(filepath.Join(t.TempDir(), "profiles.yaml"))
	opts := decision.DefaultOptions()
	opts.Warmup = 30
	if err := pw.UpdateProfile("daily", writer.ProfileEntry{Symbols: []string{"BTCUSDT", "ETHUSDT"}, Limit: 300, Analysis: opts}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	task, err := buildTask(cfg, pw, config.TaskConfig{Name: "t1", Cron: "0 0 1 * * *", Interval: "1d", Profile: "daily"})
	if err != nil {
		t.Fatalf("buildTask: %v", err)
	}
	if len(task.Params.Symbols) != 2 || task.Params.Limit != 300 || task.Params.Options.Warmup != 30 {
		t.Fatalf("profile not applied: %+v", task.Params)
	}

	task, err = buildTask(cfg, pw, config.TaskConfig{Name: "t2", Cron: "0 0 1 * * *", Symbols: []string{"SOLUSDT"}, Profile: "daily"})
	if err != nil {
		t.Fatalf("buildTask: %v", err)
	}
	if len(task.Params.Symbols) != 1 || task.Params.Symbols[0] != "SOLUSDT" {
		t.Fatalf("explicit symbols should win: %v", task.Params.Symbols)
	}

	task, err = buildTask(cfg, pw, config.TaskConfig{Name: "t4", Symbols: []string{"btc"}, Quote: "USDT"})
	if err != nil || task.Universe == nil || task.Universe.Name() != "static" {
		t.Fatalf("quote should install static universe: %+v %v", task, err)
	}
	task, err = buildTask(cfg, pw, config.TaskConfig{Name: "t5", SymbolsURL: "http://127.0.0.1:1/symbols"})
	if err != nil || task.Universe == nil || task.Universe.Name() != "dynamic" {
		t.Fatalf("symbols_url should install dynamic universe: %+v %v", task, err)
	}

	if _, err := buildTask(cfg, pw, config.TaskConfig{Name: "t3", Profile: "ghost"}); err == nil {
		t.Fatalf("expected missing profile error")
	}
}

func TestProvidersWithoutExternalServices(t *testing.T) {
	cfg := &config.Config{}
	cfg.Binance.Disabled = true
	cfg.Normalize()

	src, cleanup, err := ProvideSource(cfg)
	if err != nil || src != nil {
		t.Fatalf("disabled source: %v %v", src, err)
	}
	cleanup()

	c, cleanup, err := ProvideCache(cfg)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	defer cleanup()
	if _, ok := c.(*cache.MemoryCache); !ok {
		t.Fatalf("expected memory cache, got %T", c)
	}

	st, cleanup, err := ProvideSignalStore(cfg)
	if err != nil || st != nil {
		t.Fatalf("disabled store: %v %v", st, err)
	}
	cleanup()

	svc := ProvideService(cfg, src, ProvideSeriesStore(), c, st)
	if _, err := svc.LoadSeries(context.Background(), service.Request{Symbol: "BTCUSDT"}); err == nil {
		t.Fatalf("expected no data without source")
	}

	cfg.HTTP.ProfilesPath = filepath.Join(t.TempDir(), "profiles.yaml")
	pw := ProvideProfileWriter(cfg)
	if _, err := ProvideServer(cfg, svc, pw, st); err != nil {
		t.Fatalf("server: %v", err)
	}
	cfg.Schedule = []config.TaskConfig{{Name: "nightly", Cron: "0 0 2 * * *", Symbols: []string{"BTCUSDT"}}}
	sched, err := ProvideScheduler(cfg, svc, pw)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	if len(sched.Tasks()) != 1 {
		t.Fatalf("expected one task")
	}
}

func TestProvideSignalStoreSQLite(t *testing.T) {
	cfg := &config.Config{}
	cfg.Database.Enabled = true
	cfg.Database.DSN = filepath.Join(t.TempDir(), "db", "signals.db")
	cfg.Normalize()

	st, cleanup, err := ProvideSignalStore(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer cleanup()
	if st == nil {
		t.Fatalf("expected store")
	}
}

func TestLogRunWritesEachItem(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	latest := &decision.Signal{Signal: signal.Signal{Type: signal.Buy}, ShowText: "🔴 MB(开多)"}
	logRun(scheduler.Run{Task: "nightly", Items: []service.BatchItem{
		{Symbol: "BTCUSDT", Signals: 3, Latest: latest, TrendDays: 12},
		{Symbol: "ETHUSDT"},
		{Symbol: "BADUSDT", Error: "无数据"},
	}})
	out := buf.String()
	for _, want := range []string{"BTCUSDT: 最新 🔴 MB(开多) (3 个信号, 趋势 12 天)", "ETHUSDT: 无信号", "BADUSDT: 无数据"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %s", want, out)
		}
	}
}
