package pattern

// Options 形态识别阈值。零值字段由 NormalizeOptions 填充默认值。
type Options struct {
	// ShadowRatio 主影线与实体之比下限。
	ShadowRatio float64 `json:"shadow_ratio,omitempty" yaml:"shadow_ratio,omitempty" toml:"shadow_ratio,omitempty"`
	// UpperShadowRatio 次影线与实体之比上限。
	UpperShadowRatio float64 `json:"upper_shadow_ratio,omitempty" yaml:"upper_shadow_ratio,omitempty" toml:"upper_shadow_ratio,omitempty"`
	// CloseRatio 收盘价在 K 线区间中的位置下限（锤子线为 (close-low)/range）。
	CloseRatio float64 `json:"close_ratio,omitempty" yaml:"close_ratio,omitempty" toml:"close_ratio,omitempty"`
	MinBody    float64 `json:"min_body,omitempty" yaml:"min_body,omitempty" toml:"min_body,omitempty"`
	// StarBodyRatio 星线实体与第一根实体之比上限。
	StarBodyRatio float64 `json:"star_body_ratio,omitempty" yaml:"star_body_ratio,omitempty" toml:"star_body_ratio,omitempty"`
	// LargeBodyRatio 判定"大实体"时实体占区间的比例下限。
	LargeBodyRatio float64 `json:"large_body_ratio,omitempty" yaml:"large_body_ratio,omitempty" toml:"large_body_ratio,omitempty"`
	MinPenetration float64 `json:"min_penetration,omitempty" yaml:"min_penetration,omitempty" toml:"min_penetration,omitempty"`
	EngulfMinRatio float64 `json:"engulf_min_ratio,omitempty" yaml:"engulf_min_ratio,omitempty" toml:"engulf_min_ratio,omitempty"`
	DojiBodyRatio  float64 `json:"doji_body_ratio,omitempty" yaml:"doji_body_ratio,omitempty" toml:"doji_body_ratio,omitempty"`
	// TrendPeriod 形态之前用于判断趋势的收盘价数量。
	TrendPeriod int `json:"trend_period,omitempty" yaml:"trend_period,omitempty" toml:"trend_period,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		ShadowRatio:      2.0,
		UpperShadowRatio: 0.3,
		CloseRatio:       0.6,
		MinBody:          0.01,
		StarBodyRatio:    0.3,
		LargeBodyRatio:   0.6,
		MinPenetration:   0.5,
		EngulfMinRatio:   1.0,
		DojiBodyRatio:    0.1,
		TrendPeriod:      5,
	}
}

// NormalizeOptions 填充默认值。
func NormalizeOptions(in Options) Options {
	def := DefaultOptions()
	out := in
	if out.ShadowRatio <= 0 {
		out.ShadowRatio = def.ShadowRatio
	}
	if out.UpperShadowRatio <= 0 {
		out.UpperShadowRatio = def.UpperShadowRatio
	}
	if out.CloseRatio <= 0 || out.CloseRatio > 1 {
		out.CloseRatio = def.CloseRatio
	}
	if out.MinBody <= 0 {
		out.MinBody = def.MinBody
	}
	if out.StarBodyRatio <= 0 {
		out.StarBodyRatio = def.StarBodyRatio
	}
	if out.LargeBodyRatio <= 0 || out.LargeBodyRatio > 1 {
		out.LargeBodyRatio = def.LargeBodyRatio
	}
	if out.MinPenetration <= 0 || out.MinPenetration >= 1 {
		out.MinPenetration = def.MinPenetration
	}
	if out.EngulfMinRatio <= 0 {
		out.EngulfMinRatio = def.EngulfMinRatio
	}
	if out.DojiBodyRatio <= 0 {
		out.DojiBodyRatio = def.DojiBodyRatio
	}
	if out.TrendPeriod < 2 {
		out.TrendPeriod = def.TrendPeriod
	}
	return out
}
