package market

import "context"

// Source 统一对接外部行情供应商，只负责历史 K 线。
type Source interface {
	// FetchHistory 拉取最近 limit 根 K 线并按时间升序返回。
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	// Close 释放底层资源。
	Close() error
}
