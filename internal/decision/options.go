package decision

import "candlesig/internal/analysis/pattern"

// Options 多阶段分析参数，零值字段由 Normalize 补齐默认值。
// 配置文件里省略的字段解码后同样是零值，因此数值字段无法显式设为 0：
// 需要"几乎没有"时用最小的正值（Warmup=1，MACDDeadZone=1e-9）。
type Options struct {
	// Warmup 预热 K 线数，之前的 bar 不做判断。<=0 取默认 60，最小有效值 1。
	Warmup int `json:"warmup" yaml:"warmup" toml:"warmup"`

	MACDFast   int `json:"macd_fast" yaml:"macd_fast" toml:"macd_fast"`
	MACDSlow   int `json:"macd_slow" yaml:"macd_slow" toml:"macd_slow"`
	MACDSignal int `json:"macd_signal" yaml:"macd_signal" toml:"macd_signal"`
	RSIPeriod  int `json:"rsi_period" yaml:"rsi_period" toml:"rsi_period"`

	// MACDDeadZone |DIFF| 不超过该值视为贴着 0 轴。<=0 取默认 0.5。
	MACDDeadZone float64 `json:"macd_dead_zone" yaml:"macd_dead_zone" toml:"macd_dead_zone"`
	RSIBull      float64 `json:"rsi_bull" yaml:"rsi_bull" toml:"rsi_bull"`
	RSIBear      float64 `json:"rsi_bear" yaml:"rsi_bear" toml:"rsi_bear"`

	MAWindows        []int   `json:"ma_windows" yaml:"ma_windows" toml:"ma_windows"`
	KeyAreaTolerance float64 `json:"key_area_tolerance" yaml:"key_area_tolerance" toml:"key_area_tolerance"`
	KeyAreaLookback  int     `json:"key_area_lookback" yaml:"key_area_lookback" toml:"key_area_lookback"`

	VolumeRatio       float64 `json:"volume_ratio" yaml:"volume_ratio" toml:"volume_ratio"`
	StrongVolumeRatio float64 `json:"strong_volume_ratio" yaml:"strong_volume_ratio" toml:"strong_volume_ratio"`
	// AllowLooseTrigger 形态 + 放量 LooseVolumeRatio 倍也可触发。
	AllowLooseTrigger bool    `json:"allow_loose_trigger" yaml:"allow_loose_trigger" toml:"allow_loose_trigger"`
	LooseVolumeRatio  float64 `json:"loose_volume_ratio" yaml:"loose_volume_ratio" toml:"loose_volume_ratio"`
	// AllowVolumeOnlyTrigger 无形态但极度放量且 K 线颜色与方向一致也可触发。
	AllowVolumeOnlyTrigger bool    `json:"allow_volume_only_trigger" yaml:"allow_volume_only_trigger" toml:"allow_volume_only_trigger"`
	VolumeOnlyRatio        float64 `json:"volume_only_ratio" yaml:"volume_only_ratio" toml:"volume_only_ratio"`

	DivergenceLookback int `json:"divergence_lookback" yaml:"divergence_lookback" toml:"divergence_lookback"`
	// StrongScore 入场评分达到该值为强信号。
	StrongScore int `json:"strong_score" yaml:"strong_score" toml:"strong_score"`

	Pattern pattern.Options `json:"pattern" yaml:"pattern" toml:"pattern"`
}

func DefaultOptions() Options {
	return Options{
		Warmup:             60,
		MACDFast:           12,
		MACDSlow:           26,
		MACDSignal:         9,
		RSIPeriod:          14,
		MACDDeadZone:       0.5,
		RSIBull:            55,
		RSIBear:            45,
		MAWindows:          []int{5, 10, 20, 60},
		KeyAreaTolerance:   0.02,
		KeyAreaLookback:    20,
		VolumeRatio:        1.3,
		StrongVolumeRatio:  1.5,
		LooseVolumeRatio:   1.1,
		VolumeOnlyRatio:    1.5,
		DivergenceLookback: 10,
		StrongScore:        3,
		Pattern:            pattern.DefaultOptions(),
	}
}

// Normalize 补齐缺省值，开关类字段保持原样。
func (o Options) Normalize() Options {
	def := DefaultOptions()
	if o.Warmup <= 0 {
		o.Warmup = def.Warmup
	}
	if o.MACDFast <= 0 {
		o.MACDFast = def.MACDFast
	}
	if o.MACDSlow <= 0 {
		o.MACDSlow = def.MACDSlow
	}
	if o.MACDSignal <= 0 {
		o.MACDSignal = def.MACDSignal
	}
	if o.RSIPeriod <= 1 {
		o.RSIPeriod = def.RSIPeriod
	}
	if o.MACDDeadZone <= 0 {
		o.MACDDeadZone = def.MACDDeadZone
	}
	if o.RSIBull <= 0 {
		o.RSIBull = def.RSIBull
	}
	if o.RSIBear <= 0 {
		o.RSIBear = def.RSIBear
	}
	if len(o.MAWindows) == 0 {
		o.MAWindows = def.MAWindows
	}
	if o.KeyAreaTolerance <= 0 {
		o.KeyAreaTolerance = def.KeyAreaTolerance
	}
	if o.KeyAreaLookback <= 0 {
		o.KeyAreaLookback = def.KeyAreaLookback
	}
	if o.VolumeRatio <= 0 {
		o.VolumeRatio = def.VolumeRatio
	}
	if o.StrongVolumeRatio <= 0 {
		o.StrongVolumeRatio = def.StrongVolumeRatio
	}
	if o.LooseVolumeRatio <= 0 {
		o.LooseVolumeRatio = def.LooseVolumeRatio
	}
	if o.VolumeOnlyRatio <= 0 {
		o.VolumeOnlyRatio = def.VolumeOnlyRatio
	}
	if o.DivergenceLookback <= 0 {
		o.DivergenceLookback = def.DivergenceLookback
	}
	if o.StrongScore <= 0 {
		o.StrongScore = def.StrongScore
	}
	o.Pattern = pattern.NormalizeOptions(o.Pattern)
	return o
}
