package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"candlesig/internal/market"
)

// SeriesStore 按 symbol+interval 缓存 K 线序列，供分析服务复用已拉取的数据。
type SeriesStore interface {
	Merge(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error
	Window(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// MemorySeriesStore 内存实现
type MemorySeriesStore struct {
	mu   sync.RWMutex
	data map[string][]market.Candle
}

func NewMemorySeriesStore() *MemorySeriesStore {
	return &MemorySeriesStore{data: make(map[string][]market.Candle)}
}

func seriesKey(symbol, interval string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "@" + strings.ToLower(strings.TrimSpace(interval))
}

// Merge 按开盘时间合并新数据，同一时间戳覆盖旧值，超出 max 时裁掉最早的部分。
func (s *MemorySeriesStore) Merge(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(interval) == "" {
		return errors.New("symbol/interval 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = 1000
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seriesKey(symbol, interval)
	cur := append([]market.Candle(nil), s.data[k]...)
	for _, candle := range ks {
		n := len(cur)
		switch {
		case n == 0 || candle.OpenTime > cur[n-1].OpenTime:
			cur = append(cur, candle)
		case candle.OpenTime == cur[n-1].OpenTime:
			// 未收盘 K 线的增量更新。
			cur[n-1] = candle
		default:
			cur = insertOrReplace(cur, candle)
		}
	}
	if len(cur) > max {
		cur = cur[len(cur)-max:]
	}
	s.data[k] = cur
	return nil
}

func insertOrReplace(cur []market.Candle, c market.Candle) []market.Candle {
	for i := range cur {
		if cur[i].OpenTime == c.OpenTime {
			cur[i] = c
			return cur
		}
		if cur[i].OpenTime > c.OpenTime {
			cur = append(cur, market.Candle{})
			copy(cur[i+1:], cur[i:])
			cur[i] = c
			return cur
		}
	}
	return append(cur, c)
}

// Window 返回最近 limit 根 K 线（按时间升序）。limit<=0 返回全部。
func (s *MemorySeriesStore) Window(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(interval) == "" {
		return nil, errors.New("symbol/interval 不能为空")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[seriesKey(symbol, interval)]
	if limit <= 0 || limit > len(cur) {
		limit = len(cur)
	}
	out := make([]market.Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}

// Drop 清除一个序列。
func (s *MemorySeriesStore) Drop(symbol, interval string) {
	s.mu.Lock()
	delete(s.data, seriesKey(symbol, interval))
	s.mu.Unlock()
}
