package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"candlesig/internal/backtest"
	"candlesig/internal/signal"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SignalStore 持久化分析信号与回测摘要，默认 sqlite，可选 postgres。
type SignalStore struct {
	mu     sync.Mutex
	db     *sqlx.DB
	driver string
}

// Open 打开数据库并建表。dsn 对 sqlite 为文件路径（":memory:" 为内存库）。
func Open(ctx context.Context, driver, dsn string) (*SignalStore, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("dsn 不能为空")
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite 单写者，内存库也需要共享同一连接。
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	s := &SignalStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SignalStore) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SignalStore) handle() (*sqlx.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("signal store 未初始化")
	}
	return s.db, nil
}

// SignalRecord 一条持久化信号。
type SignalRecord struct {
	ID          int64   `db:"id" json:"id"`
	Symbol      string  `db:"symbol" json:"symbol"`
	Interval    string  `db:"interval" json:"interval"`
	Source      string  `db:"source" json:"source"`
	Date        int64   `db:"date" json:"date"`
	Price       float64 `db:"price" json:"price"`
	Type        string  `db:"type" json:"type"`
	Strength    string  `db:"strength" json:"strength"`
	Strategy    string  `db:"strategy" json:"strategy"`
	Action      string  `db:"action" json:"action"`
	Score       float64 `db:"score" json:"score"`
	Reason      string  `db:"reason" json:"reason"`
	PatternName string  `db:"pattern_name" json:"pattern_name"`
	CreatedAt   int64   `db:"created_at" json:"created_at"`
}

// Signal 还原为通用信号。合并来源以逗号分隔存放在 strategy 列。
func (r SignalRecord) Signal() signal.Signal {
	s := signal.Signal{
		Date:        r.Date,
		Price:       r.Price,
		Type:        signal.Type(r.Type),
		Strength:    signal.Strength(r.Strength),
		Action:      signal.Action(r.Action),
		Score:       r.Score,
		Reason:      r.Reason,
		PatternName: r.PatternName,
	}
	if strings.Contains(r.Strategy, ",") {
		s.Strategies = strings.Split(r.Strategy, ",")
	} else {
		s.Strategy = r.Strategy
	}
	return s
}

// ReplaceSignals 以 symbol+interval+source 为单位整体替换信号，保证重复分析幂等。
func (s *SignalStore) ReplaceSignals(ctx context.Context, symbol, interval, source string, signals []signal.Signal) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || interval == "" || source == "" {
		return errors.New("symbol/interval/source 不能为空")
	}
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM signals WHERE symbol=? AND interval=? AND source=?`), symbol, interval, source); err != nil {
		return fmt.Errorf("清理旧信号失败: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, sg := range signals {
		rec := SignalRecord{
			Symbol:      symbol,
			Interval:    interval,
			Source:      source,
			Date:        sg.Date,
			Price:       sg.Price,
			Type:        string(sg.Type),
			Strength:    string(sg.Strength),
			Strategy:    strings.Join(sg.StrategyCodes(), ","),
			Action:      string(sg.Action),
			Score:       sg.Score,
			Reason:      sg.Reason,
			PatternName: sg.PatternName,
			CreatedAt:   now,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO signals (symbol, interval, source, date, price, type, strength, strategy, action, score, reason, pattern_name, created_at)
			VALUES (:symbol, :interval, :source, :date, :price, :type, :strength, :strategy, :action, :score, :reason, :pattern_name, :created_at)`, rec); err != nil {
			return fmt.Errorf("写入信号失败: %w", err)
		}
	}
	return tx.Commit()
}

// SignalQuery 查询条件，零值字段不参与过滤。
type SignalQuery struct {
	Symbol   string
	Interval string
	Source   string
	From     int64
	To       int64
	Limit    int
}

// ListSignals 按日期升序返回。
func (s *SignalStore) ListSignals(ctx context.Context, q SignalQuery) ([]SignalRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if q.Symbol != "" {
		where = append(where, "symbol=?")
		args = append(args, strings.ToUpper(q.Symbol))
	}
	if q.Interval != "" {
		where = append(where, "interval=?")
		args = append(args, q.Interval)
	}
	if q.Source != "" {
		where = append(where, "source=?")
		args = append(args, q.Source)
	}
	if q.From > 0 {
		where = append(where, "date>=?")
		args = append(args, q.From)
	}
	if q.To > 0 {
		where = append(where, "date<=?")
		args = append(args, q.To)
	}
	query := "SELECT * FROM signals"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	var out []SignalRecord
	if err := db.SelectContext(ctx, &out, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("查询信号失败: %w", err)
	}
	return out, nil
}

// BacktestRun 回测摘要。
type BacktestRun struct {
	RunID          string  `db:"run_id" json:"run_id"`
	Symbol         string  `db:"symbol" json:"symbol"`
	Interval       string  `db:"interval" json:"interval"`
	Source         string  `db:"source" json:"source"`
	InitialCapital string  `db:"initial_capital" json:"initial_capital"`
	FinalValue     string  `db:"final_value" json:"final_value"`
	TotalReturn    float64 `db:"total_return" json:"total_return"`
	Trades         int     `db:"trades" json:"trades"`
	WinRate        float64 `db:"win_rate" json:"win_rate"`
	CreatedAt      int64   `db:"created_at" json:"created_at"`
}

// SaveBacktest 记录一次回测摘要，金额以十进制字符串保存。
func (s *SignalStore) SaveBacktest(ctx context.Context, symbol, interval, source string, res backtest.Result) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	run := BacktestRun{
		RunID:          res.RunID,
		Symbol:         strings.ToUpper(symbol),
		Interval:       interval,
		Source:         source,
		InitialCapital: res.InitialCapital.String(),
		FinalValue:     res.FinalValue.String(),
		TotalReturn:    res.TotalReturn,
		Trades:         len(res.Trades),
		WinRate:        res.Metrics.WinRate,
		CreatedAt:      time.Now().UnixMilli(),
	}
	_, err = db.NamedExecContext(ctx, `
		INSERT INTO backtest_runs (run_id, symbol, interval, source, initial_capital, final_value, total_return, trades, win_rate, created_at)
		VALUES (:run_id, :symbol, :interval, :source, :initial_capital, :final_value, :total_return, :trades, :win_rate, :created_at)`, run)
	if err != nil {
		return fmt.Errorf("写入回测记录失败: %w", err)
	}
	return nil
}

// ListBacktests 最近的回测，按创建时间倒序。
func (s *SignalStore) ListBacktests(ctx context.Context, symbol string, limit int) ([]BacktestRun, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	var out []BacktestRun
	query := db.Rebind(fmt.Sprintf(`SELECT * FROM backtest_runs WHERE symbol=? ORDER BY created_at DESC LIMIT %d`, limit))
	if err := db.SelectContext(ctx, &out, query, strings.ToUpper(symbol)); err != nil {
		return nil, fmt.Errorf("查询回测记录失败: %w", err)
	}
	return out, nil
}
