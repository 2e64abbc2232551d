package coins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"candlesig/internal/logger"
)

// SymbolProvider 定时批量分析使用的品种列表来源。
type SymbolProvider interface {
	List(ctx context.Context) ([]string, error)
	Name() string
}

// NormalizeSymbols 大写、去空白、去重；quote 非空时为缺少计价币的代码补上后缀（BTC -> BTCUSDT）。
func NormalizeSymbols(symbols []string, quote string) ([]string, error) {
	if len(symbols) == 0 {
		return nil, errors.New("symbol list is empty")
	}
	quote = strings.ToUpper(strings.TrimSpace(quote))
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		s = strings.ReplaceAll(s, "/", "")
		if s == "" {
			continue
		}
		if quote != "" && !strings.HasSuffix(s, quote) {
			s += quote
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("symbol list is empty after normalization")
	}
	return out, nil
}

type StaticProvider struct {
	symbols []string
	quote   string
}

func NewStaticProvider(symbols []string, quote string) *StaticProvider {
	return &StaticProvider{symbols: symbols, quote: quote}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) List(_ context.Context) ([]string, error) {
	return NormalizeSymbols(p.symbols, p.quote)
}

// DynamicConfig 远程品种列表参数。
type DynamicConfig struct {
	URL            string
	Quote          string
	TimeoutSeconds int
	RefreshSeconds int
	Fallback       []string
	// Override 为 true 时远程结果替换 Fallback，否则两者合并。
	Override bool
}

// DynamicProvider 从 HTTP 接口拉取品种列表，按 RefreshSeconds 缓存，失败时沿用上次结果或 Fallback。
// 响应可以是 ["BTC", ...]、{"symbols": [...]} 或 {"items": [{"symbol": ...}]}。
type DynamicProvider struct {
	url      string
	quote    string
	refresh  time.Duration
	fallback []string
	override bool
	client   *http.Client

	mu          sync.RWMutex
	targets     []string
	lastFetched time.Time
	lastErr     error
}

func NewDynamicProvider(cfg DynamicConfig) *DynamicProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	refresh := time.Duration(cfg.RefreshSeconds) * time.Second
	if refresh <= 0 {
		refresh = time.Hour
	}
	fallback, _ := NormalizeSymbols(cfg.Fallback, cfg.Quote)
	return &DynamicProvider{
		url:      strings.TrimSpace(cfg.URL),
		quote:    cfg.Quote,
		refresh:  refresh,
		fallback: fallback,
		override: cfg.Override,
		client:   &http.Client{Timeout: timeout},
		targets:  fallback,
	}
}

func (p *DynamicProvider) Name() string { return "dynamic" }

// List 需要时刷新后返回当前列表。
func (p *DynamicProvider) List(ctx context.Context) ([]string, error) {
	_ = p.Refresh(ctx)
	out := p.Targets()
	if len(out) == 0 {
		p.mu.RLock()
		err := p.lastErr
		p.mu.RUnlock()
		if err == nil {
			err = errors.New("symbol list is empty")
		}
		return nil, err
	}
	return out, nil
}

func (p *DynamicProvider) Targets() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.targets...)
}

// Refresh 距上次成功拉取不足 refresh 时直接返回。
func (p *DynamicProvider) Refresh(ctx context.Context) error {
	if p.url == "" {
		return nil
	}
	p.mu.RLock()
	last := p.lastFetched
	p.mu.RUnlock()
	if !last.IsZero() && time.Since(last) < p.refresh {
		return nil
	}

	symbols, err := p.fetch(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.lastErr = err
		logger.Warnf("[coins] 拉取品种列表失败，沿用 %d 个: %v", len(p.targets), err)
		return err
	}
	if p.override {
		p.targets = symbols
	} else {
		p.targets = mergeAndDedup(symbols, p.fallback)
	}
	p.lastFetched = time.Now()
	p.lastErr = nil
	logger.Infof("[coins] 品种列表已更新，共 %d 个", len(p.targets))
	return nil
}

func (p *DynamicProvider) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching symbols: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var arr []string
	if err := json.Unmarshal(body, &arr); err == nil {
		return NormalizeSymbols(arr, p.quote)
	}
	var obj struct {
		Symbols []string `json:"symbols"`
		Items   []struct {
			Symbol string `json:"symbol"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	list := obj.Symbols
	for _, it := range obj.Items {
		list = append(list, it.Symbol)
	}
	return NormalizeSymbols(list, p.quote)
}

func mergeAndDedup(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
