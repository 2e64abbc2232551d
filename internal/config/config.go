package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"candlesig/internal/backtest"
	"candlesig/internal/decision"
	"candlesig/internal/gateway/binance"
	"candlesig/internal/gateway/cache"
	"candlesig/internal/service"
)

// EnvPrefix 环境变量覆盖的前缀。
const EnvPrefix = "CANDLESIG_"

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file" toml:"file"`
}

type HTTPConfig struct {
	Addr         string `yaml:"addr" toml:"addr"`
	ProfilesPath string `yaml:"profiles_path" toml:"profiles_path"`
}

type BinanceConfig struct {
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	APIKey         string `yaml:"api_key" toml:"api_key"`
	SecretKey      string `yaml:"secret_key" toml:"secret_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	// Disabled 为 true 时只使用导入的 CSV 数据。
	Disabled bool `yaml:"disabled" toml:"disabled"`
}

type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Driver  string `yaml:"driver" toml:"driver"`
	DSN     string `yaml:"dsn" toml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
	Prefix   string `yaml:"prefix" toml:"prefix"`
}

type ServiceConfig struct {
	HistoryLimit     int  `yaml:"history_limit" toml:"history_limit"`
	MaxSeries        int  `yaml:"max_series" toml:"max_series"`
	CacheTTLSeconds  int  `yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	BatchConcurrency int  `yaml:"batch_concurrency" toml:"batch_concurrency"`
	Persist          bool `yaml:"persist" toml:"persist"`
}

type BacktestConfig struct {
	InitialCapital  float64 `yaml:"initial_capital" toml:"initial_capital"`
	StrongBuyRatio  float64 `yaml:"strong_buy_ratio" toml:"strong_buy_ratio"`
	WeakBuyRatio    float64 `yaml:"weak_buy_ratio" toml:"weak_buy_ratio"`
	StrongSellRatio float64 `yaml:"strong_sell_ratio" toml:"strong_sell_ratio"`
	WeakSellRatio   float64 `yaml:"weak_sell_ratio" toml:"weak_sell_ratio"`
	RiskFreeRate    float64 `yaml:"risk_free_rate" toml:"risk_free_rate"`
}

// TaskConfig 定时批量分析任务，cron 带秒字段。
type TaskConfig struct {
	Name     string   `yaml:"name" toml:"name"`
	Cron     string   `yaml:"cron" toml:"cron"`
	Symbols  []string `yaml:"symbols" toml:"symbols"`
	Interval string   `yaml:"interval" toml:"interval"`
	Limit    int      `yaml:"limit" toml:"limit"`
	// Profile 使用 profiles.yaml 中的命名参数，空则用全局 analysis。
	Profile string `yaml:"profile" toml:"profile"`
	// SymbolsURL 远程品种列表，配置后 Symbols 作为 fallback。
	SymbolsURL     string `yaml:"symbols_url" toml:"symbols_url"`
	Quote          string `yaml:"quote" toml:"quote"`
	RefreshSeconds int    `yaml:"refresh_seconds" toml:"refresh_seconds"`
	Override       bool   `yaml:"override" toml:"override"`
}

type ChartConfig struct {
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`
}

// Config 应用配置，支持 yaml 与 toml。
type Config struct {
	Log      LogConfig        `yaml:"log" toml:"log"`
	HTTP     HTTPConfig       `yaml:"http" toml:"http"`
	Binance  BinanceConfig    `yaml:"binance" toml:"binance"`
	Database DatabaseConfig   `yaml:"database" toml:"database"`
	Redis    RedisConfig      `yaml:"redis" toml:"redis"`
	Service  ServiceConfig    `yaml:"service" toml:"service"`
	Analysis decision.Options `yaml:"analysis" toml:"analysis"`
	Backtest BacktestConfig   `yaml:"backtest" toml:"backtest"`
	Schedule []TaskConfig     `yaml:"schedule" toml:"schedule"`
	Chart    ChartConfig      `yaml:"chart" toml:"chart"`
}

// Load 读取配置文件（按扩展名选择 yaml/toml，path 为空或文件不存在时使用默认值），
// 随后加载同目录 .env 并应用 CANDLESIG_* 环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
		if len(data) > 0 {
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
		envPath := filepath.Join(filepath.Dir(path), ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("加载 %s 失败: %w", envPath, err)
			}
		}
	}
	cfg.applyEnv()
	cfg.Normalize()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 toml 配置失败: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("解析 yaml 配置失败: %w", err)
		}
	default:
		return fmt.Errorf("不支持的配置格式: %s", filepath.Ext(path))
	}
	return nil
}

func (c *Config) applyEnv() {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				*dst = b
			}
		}
	}
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("HTTP_ADDR", &c.HTTP.Addr)
	str("BINANCE_BASE_URL", &c.Binance.BaseURL)
	str("BINANCE_API_KEY", &c.Binance.APIKey)
	str("BINANCE_SECRET_KEY", &c.Binance.SecretKey)
	flag("BINANCE_DISABLED", &c.Binance.Disabled)
	flag("DATABASE_ENABLED", &c.Database.Enabled)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	num("REDIS_DB", &c.Redis.DB)
	num("HISTORY_LIMIT", &c.Service.HistoryLimit)
	num("CACHE_TTL_SECONDS", &c.Service.CacheTTLSeconds)
}

// Normalize 补齐默认值。
func (c *Config) Normalize() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":9991"
	}
	if c.HTTP.ProfilesPath == "" {
		c.HTTP.ProfilesPath = "configs/profiles.yaml"
	}
	if c.Binance.TimeoutSeconds <= 0 {
		c.Binance.TimeoutSeconds = 15
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/candlesig.db"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "candlesig:"
	}
	if c.Service.HistoryLimit <= 0 {
		c.Service.HistoryLimit = 500
	}
	if c.Service.MaxSeries <= 0 {
		c.Service.MaxSeries = 2000
	}
	if c.Service.CacheTTLSeconds < 0 {
		c.Service.CacheTTLSeconds = 0
	}
	if c.Service.BatchConcurrency <= 0 {
		c.Service.BatchConcurrency = 4
	}
	c.Analysis = c.Analysis.Normalize()
	for i := range c.Schedule {
		t := &c.Schedule[i]
		if t.Name == "" {
			t.Name = fmt.Sprintf("task_%d", i+1)
		}
		if t.Cron == "" {
			t.Cron = "0 5 0 * * *"
		}
		if t.Interval == "" {
			t.Interval = "1d"
		}
	}
	if c.Chart.Width <= 0 {
		c.Chart.Width = 1280
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = 720
	}
}

// ServiceConfig 转换为服务参数。
func (c *Config) ServiceConfig() service.Config {
	return service.Config{
		HistoryLimit:     c.Service.HistoryLimit,
		MaxSeries:        c.Service.MaxSeries,
		CacheTTL:         time.Duration(c.Service.CacheTTLSeconds) * time.Second,
		BatchConcurrency: c.Service.BatchConcurrency,
		Persist:          c.Service.Persist && c.Database.Enabled,
	}
}

func (c *Config) BinanceConfig() binance.Config {
	return binance.Config{
		BaseURL:     c.Binance.BaseURL,
		APIKey:      c.Binance.APIKey,
		SecretKey:   c.Binance.SecretKey,
		HTTPTimeout: time.Duration(c.Binance.TimeoutSeconds) * time.Second,
	}
}

func (c *Config) RedisConfig() cache.RedisConfig {
	return cache.RedisConfig{Addr: c.Redis.Addr, Password: c.Redis.Password, DB: c.Redis.DB, Prefix: c.Redis.Prefix}
}

// BacktestOptions 零值比例交给 backtest.Options.Normalize 补齐。
func (c *Config) BacktestOptions() backtest.Options {
	opts := backtest.Options{
		StrongBuyRatio:  c.Backtest.StrongBuyRatio,
		WeakBuyRatio:    c.Backtest.WeakBuyRatio,
		StrongSellRatio: c.Backtest.StrongSellRatio,
		WeakSellRatio:   c.Backtest.WeakSellRatio,
		RiskFreeRate:    c.Backtest.RiskFreeRate,
	}
	if c.Backtest.InitialCapital > 0 {
		opts.InitialCapital = decimal.NewFromFloat(c.Backtest.InitialCapital)
	}
	return opts.Normalize()
}
