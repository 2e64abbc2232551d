package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candlesig.yaml")
	body := `
log:
  level: debug
http:
  addr: ":8080"
service:
  cache_ttl_seconds: 30
  persist: true
database:
  enabled: true
analysis:
  warmup: 30
  allow_loose_trigger: true
backtest:
  initial_capital: 50000
schedule:
  - symbols: [BTCUSDT, ETHUSDT]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CANDLESIG_REDIS_ADDR=127.0.0.1:6379\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CANDLESIG_HTTP_ADDR", ":9000")
	t.Setenv("CANDLESIG_REDIS_ADDR", "")
	os.Unsetenv("CANDLESIG_REDIS_ADDR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.HTTP.Addr != ":9000" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf(".env not applied: %q", cfg.Redis.Addr)
	}
	if cfg.Analysis.Warmup != 30 || !cfg.Analysis.AllowLooseTrigger || cfg.Analysis.MACDSlow != 26 {
		t.Fatalf("analysis = %+v", cfg.Analysis)
	}
	if len(cfg.Schedule) != 1 || cfg.Schedule[0].Name != "task_1" || cfg.Schedule[0].Interval != "1d" {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
	sc := cfg.ServiceConfig()
	if sc.CacheTTL != 30*time.Second || !sc.Persist || sc.HistoryLimit != 500 {
		t.Fatalf("service config = %+v", sc)
	}
	bo := cfg.BacktestOptions()
	if bo.InitialCapital.IntPart() != 50000 || bo.StrongBuyRatio != 0.8 {
		t.Fatalf("backtest options = %+v", bo)
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candlesig.toml")
	body := "[binance]\nbase_url = \"http://localhost:1\"\ntimeout_seconds = 3\n\n[analysis]\nvolume_ratio = 1.2\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bc := cfg.BinanceConfig()
	if bc.BaseURL != "http://localhost:1" || bc.HTTPTimeout != 3*time.Second {
		t.Fatalf("binance = %+v", bc)
	}
	if cfg.Analysis.VolumeRatio != 1.2 || cfg.Database.DSN != "data/candlesig.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadDefaultsAndErrors(t *testing.T) {
	cfg, err := Load("")
	if err != nil || cfg.HTTP.Addr != ":9991" || cfg.Analysis.Warmup != 60 {
		t.Fatalf("defaults = %+v %v", cfg, err)
	}
	bad := filepath.Join(t.TempDir(), "c.json")
	if err := os.WriteFile(bad, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
