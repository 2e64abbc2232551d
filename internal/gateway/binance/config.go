package binance

import "time"

// Config 描述 Binance Source 运行所需的参数。行情接口无需密钥。
type Config struct {
	BaseURL     string        `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey      string        `json:"-" yaml:"api_key" toml:"api_key"`
	SecretKey   string        `json:"-" yaml:"secret_key" toml:"secret_key"`
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout" toml:"http_timeout"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = "https://api.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}
