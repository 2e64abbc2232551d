package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/analysis/pattern"
	"candlesig/internal/backtest"
	"candlesig/internal/decision"
	"candlesig/internal/gateway/cache"
	"candlesig/internal/market"
	"candlesig/internal/signal"
	"candlesig/internal/strategy"
)

const dayMillis = int64(24 * time.Hour / time.Millisecond)

func wave(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		c := 100 + 10*math.Sin(float64(i)/8) + float64(i)*0.1
		o := c - math.Cos(float64(i)/3)
		out[i] = market.Candle{
			OpenTime: int64(i) * dayMillis,
			Open:     o,
			High:     math.Max(o, c) + 1,
			Low:      math.Min(o, c) - 1,
			Close:    c,
			Volume:   1000 + 400*math.Abs(math.Sin(float64(i)/2)),
		}
	}
	return out
}

type fakeSource struct {
	mu      sync.Mutex
	candles []market.Candle
	err     error
	calls   int
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if symbol == "BROKEN" {
		return nil, errors.New("boom")
	}
	out := f.candles
	if limit < len(out) {
		out = out[len(out)-limit:]
	}
	return append([]market.Candle(nil), out...), nil
}

func (f *fakeSource) Close() error { return nil }

type fakeRepo struct {
	mu        sync.Mutex
	signals   map[string][]signal.Signal
	backtests []backtest.Result
}

func (r *fakeRepo) ReplaceSignals(_ context.Context, symbol, interval, source string, signals []signal.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.signals == nil {
		r.signals = make(map[string][]signal.Signal)
	}
	r.signals[symbol+"|"+interval+"|"+source] = signals
	return nil
}

func (r *fakeRepo) SaveBacktest(_ context.Context, symbol, interval, source string, res backtest.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backtests = append(r.backtests, res)
	return nil
}

func newTestService(src *fakeSource, repo *fakeRepo) *Service {
	deps := Deps{Cache: cache.NewMemoryCache()}
	if src != nil {
		deps.Source = src
	}
	if repo != nil {
		deps.Repo = repo
	}
	return New(Config{HistoryLimit: 150, CacheTTL: time.Minute, Persist: true}, deps)
}

func TestLoadSeriesFetchesOnceThenUsesStore(t *testing.T) {
	src := &fakeSource{candles: wave(200)}
	svc := newTestService(src, nil)
	ctx := context.Background()
	got, err := svc.LoadSeries(ctx, Request{Symbol: "btcusdt"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 150 || got[149].OpenTime != 199*dayMillis {
		t.Fatalf("got %d bars", len(got))
	}
	if _, err := svc.LoadSeries(ctx, Request{Symbol: "BTCUSDT", Interval: "1D", Limit: 100}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", src.calls)
	}
}

func TestLoadSeriesWithoutSource(t *testing.T) {
	svc := newTestService(nil, nil)
	if _, err := svc.LoadSeries(context.Background(), Request{Symbol: "X"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := svc.LoadSeries(context.Background(), Request{}); err == nil {
		t.Fatalf("expected symbol error")
	}
	if err := svc.Import(context.Background(), "X", "1d", wave(80)); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, err := svc.LoadSeries(context.Background(), Request{Symbol: "x"})
	if err != nil || len(got) != 80 {
		t.Fatalf("load after import: %d %v", len(got), err)
	}
	if err := svc.Import(context.Background(), "X", "1d", nil); !errors.Is(err, market.ErrInvalidSeries) {
		t.Fatalf("expected invalid series error, got %v", err)
	}
	if err := svc.Import(context.Background(), "Y", "1d", []market.Candle{}); !errors.Is(err, market.ErrInvalidSeries) {
		t.Fatalf("empty slice should be rejected, got %v", err)
	}
	if _, err := svc.LoadSeries(context.Background(), Request{Symbol: "Y"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("rejected import must not create a series: %v", err)
	}
}

func TestLoadSeriesFallsBackToCacheOnFetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	svc := newTestService(src, nil)
	_ = svc.Import(context.Background(), "ETHUSDT", "1d", wave(40))
	got, err := svc.LoadSeries(context.Background(), Request{Symbol: "ETHUSDT"})
	if err != nil || len(got) != 40 {
		t.Fatalf("fallback: %d %v", len(got), err)
	}
}

func TestAnalyzeCachesAndPersists(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(&fakeSource{candles: wave(200)}, repo)
	ctx := context.Background()
	first, err := svc.Analyze(ctx, Request{Symbol: "BTCUSDT"}, decision.Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if first.Cached || first.Count != 150 || first.Options.Warmup != 60 {
		t.Fatalf("first = %+v", first.Statistics)
	}
	if first.Statistics.TotalDays != 150-60 {
		t.Fatalf("total days = %d", first.Statistics.TotalDays)
	}
	if first.Integrity == nil || !first.Integrity.Complete() {
		t.Fatalf("integrity = %+v", first.Integrity)
	}
	second, err := svc.Analyze(ctx, Request{Symbol: "BTCUSDT"}, decision.Options{})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !second.Cached || len(second.Signals) != len(first.Signals) || second.Statistics.SignalDays != first.Statistics.SignalDays || second.Statistics.TrendDays != first.Statistics.TrendDays {
		t.Fatalf("expected cached identical result")
	}
	if _, ok := repo.signals["BTCUSDT|1d|"+SourceMultiStage]; !ok {
		t.Fatalf("signals not persisted: %v", repo.signals)
	}
}

func TestSignalsPatternsIndicators(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(&fakeSource{candles: wave(200)}, repo)
	ctx := context.Background()
	req := Request{Symbol: "BTCUSDT", Interval: "1d"}

	sigs, err := svc.Signals(ctx, SignalsRequest{Request: req, Strategies: []strategy.Type{strategy.MACD, strategy.RSI}, Merge: true})
	if err != nil {
		t.Fatalf("signals: %v", err)
	}
	for i := 1; i < len(sigs); i++ {
		if sigs[i].Date <= sigs[i-1].Date {
			t.Fatalf("merged signals must have unique ascending dates")
		}
	}
	if _, ok := repo.signals["BTCUSDT|1d|"+SourceStrategy]; !ok {
		t.Fatalf("strategy signals not persisted")
	}

	results, err := svc.StrategyResults(ctx, SignalsRequest{Request: req, Strategies: []strategy.Type{strategy.SMA}})
	if err != nil || len(results) != 1 || results[0].Type != strategy.SMA {
		t.Fatalf("results = %+v, %v", results, err)
	}

	occ, err := svc.Patterns(ctx, req, pattern.Options{}, pattern.Doji)
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	for _, o := range occ {
		if o.Type != pattern.Doji {
			t.Fatalf("unexpected pattern %s", o.Type)
		}
	}

	rep, err := svc.Indicators(ctx, req, indicator.Settings{})
	if err != nil {
		t.Fatalf("indicators: %v", err)
	}
	if rep.Symbol != "BTCUSDT" || rep.Count != 150 || len(rep.Values) == 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestBacktestSources(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(&fakeSource{candles: wave(200)}, repo)
	ctx := context.Background()
	req := BacktestRequest{SignalsRequest: SignalsRequest{Request: Request{Symbol: "BTCUSDT"}}}
	res, err := svc.Backtest(ctx, req)
	if err != nil && !errors.Is(err, backtest.ErrNoSignals) {
		t.Fatalf("backtest: %v", err)
	}
	if err == nil && (res.RunID == "" || len(repo.backtests) != 1) {
		t.Fatalf("backtest not persisted")
	}
	req.Source = "unknown"
	if _, err := svc.Backtest(ctx, req); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestChartHTML(t *testing.T) {
	svc := newTestService(&fakeSource{candles: wave(120)}, nil)
	html, err := svc.ChartHTML(context.Background(), ChartRequest{Request: Request{Symbol: "BTCUSDT"}, MA: []int{5, 20}})
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if !strings.Contains(string(html), "BTCUSDT 1d") || !strings.Contains(string(html), "MA20") {
		t.Fatalf("unexpected chart html")
	}
}

func TestAnalyzeBatch(t *testing.T) {
	svc := newTestService(&fakeSource{candles: wave(200)}, nil)
	items, err := svc.AnalyzeBatch(context.Background(), BatchParams{Symbols: []string{"btcusdt", "BROKEN", " BTCUSDT ", "ethusdt"}}, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(items) != 3 || items[0].Symbol != "BTCUSDT" || items[1].Symbol != "BROKEN" || items[2].Symbol != "ETHUSDT" {
		t.Fatalf("items = %+v", items)
	}
	if items[1].Error == "" || items[0].Error != "" {
		t.Fatalf("items = %+v", items)
	}
	if _, err := svc.AnalyzeBatch(context.Background(), BatchParams{}, nil); err == nil {
		t.Fatalf("expected error for empty symbols")
	}
}

func TestSubmitBatchTracksJob(t *testing.T) {
	svc := newTestService(&fakeSource{candles: wave(200)}, nil)
	job, err := svc.SubmitBatch(BatchParams{Symbols: []string{"BTCUSDT", "BROKEN"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID == "" || job.Total != 2 {
		t.Fatalf("job = %+v", job)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, ok := svc.JobSnapshot(job.ID)
		if !ok {
			t.Fatalf("job missing")
		}
		if snap.Status == JobStatusPartial {
			if snap.Completed != 2 || len(snap.Items) != 2 || snap.Items[0].Symbol != "BROKEN" {
				t.Fatalf("snapshot = %+v", snap)
			}
			break
		}
		if snap.Status == JobStatusFailed || snap.Status == JobStatusDone {
			t.Fatalf("unexpected status %s", snap.Status)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(svc.JobsSnapshot()) != 1 {
		t.Fatalf("jobs snapshot")
	}
	if _, ok := svc.JobSnapshot("nope"); ok {
		t.Fatalf("unexpected job")
	}
}
