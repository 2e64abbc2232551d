package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	gobinance "github.com/adshao/go-binance/v2"

	"candlesig/internal/logger"
	"candlesig/internal/market"
)

const maxHistoryLimit = 1000

// Source 实现了 market.Source，通过现货 REST 接口拉取历史 K 线。
type Source struct {
	cfg    Config
	client *gobinance.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := gobinance.NewClient(final.APIKey, final.SecretKey)
	client.BaseURL = strings.TrimRight(final.BaseURL, "/")
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	logger.Debugf("[binance] klines %s %s limit=%d", symbol, interval, limit)
	raw, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance history error: %w", err)
	}
	out := make([]market.Candle, 0, len(raw))
	for _, k := range raw {
		if k == nil {
			continue
		}
		out = append(out, toCandle(k))
	}
	return out, nil
}

func (s *Source) Close() error { return nil }

func toCandle(k *gobinance.Kline) market.Candle {
	return market.Candle{
		OpenTime:  k.OpenTime,
		CloseTime: k.CloseTime,
		Open:      toFloat(k.Open),
		High:      toFloat(k.High),
		Low:       toFloat(k.Low),
		Close:     toFloat(k.Close),
		Volume:    toFloat(k.Volume),
		Trades:    k.TradeNum,
	}
}

func toFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}
