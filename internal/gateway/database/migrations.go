package database

import (
	"context"
	"fmt"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		source TEXT NOT NULL,
		date INTEGER NOT NULL,
		price REAL NOT NULL,
		type TEXT NOT NULL,
		strength TEXT NOT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		pattern_name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_lookup ON signals (symbol, interval, source, date)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		source TEXT NOT NULL,
		initial_capital TEXT NOT NULL,
		final_value TEXT NOT NULL,
		total_return REAL NOT NULL,
		trades INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		created_at INTEGER NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS signals (
		id BIGSERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		source TEXT NOT NULL,
		date BIGINT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		type TEXT NOT NULL,
		strength TEXT NOT NULL,
		strategy TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		pattern_name TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_signals_lookup ON signals (symbol, interval, source, date)`,
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		run_id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		source TEXT NOT NULL,
		initial_capital TEXT NOT NULL,
		final_value TEXT NOT NULL,
		total_return DOUBLE PRECISION NOT NULL,
		trades INTEGER NOT NULL,
		win_rate DOUBLE PRECISION NOT NULL,
		created_at BIGINT NOT NULL
	)`,
}

// migrate 建表（幂等）。
func (s *SignalStore) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == DriverPostgres {
		schema = postgresSchema
	}
	for _, q := range schema {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("初始化表结构失败: %w", err)
		}
	}
	return nil
}
