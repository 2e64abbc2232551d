package strategy

import (
	"fmt"
	"strings"

	"candlesig/internal/logger"
	"candlesig/internal/market"
	"candlesig/internal/signal"
)

// FusionMode 融合方式。
type FusionMode string

const (
	FusionVoting   FusionMode = "voting"
	FusionWeighted FusionMode = "weighted"
	FusionAdaptive FusionMode = "adaptive"
)

// ParseFusionMode 空字符串视为投票模式。
func ParseFusionMode(s string) (FusionMode, error) {
	switch FusionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FusionVoting:
		return FusionVoting, nil
	case FusionWeighted:
		return FusionWeighted, nil
	case FusionAdaptive:
		return FusionAdaptive, nil
	default:
		return "", fmt.Errorf("%w: fusion mode %q", ErrUnknownStrategy, s)
	}
}

// FusionConfig 融合策略参数，权重以策略代码为键，缺省权重为 1。
type FusionConfig struct {
	Mode         FusionMode       `json:"mode" yaml:"mode" toml:"mode"`
	Strategies   []Type           `json:"strategies,omitempty" yaml:"strategies" toml:"strategies"`
	MinConsensus int              `json:"min_consensus" yaml:"min_consensus" toml:"min_consensus"`
	Weights      map[Type]float64 `json:"weights,omitempty" yaml:"weights" toml:"weights"`
	Threshold    float64          `json:"threshold" yaml:"threshold" toml:"threshold"`
	StrongScore  float64          `json:"strong_score" yaml:"strong_score" toml:"strong_score"`
	RegimeWindow int              `json:"regime_window" yaml:"regime_window" toml:"regime_window"`
}

func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		Mode:         FusionVoting,
		MinConsensus: 3,
		Threshold:    3.0,
		StrongScore:  5.0,
		RegimeWindow: 20,
	}
}

// Normalize 补齐缺省值。
func (c FusionConfig) Normalize() FusionConfig {
	def := DefaultFusionConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if len(c.Strategies) == 0 {
		c.Strategies = BaseTypes()
	}
	if c.MinConsensus <= 0 {
		c.MinConsensus = def.MinConsensus
	}
	if c.Threshold <= 0 {
		c.Threshold = def.Threshold
	}
	if c.StrongScore <= 0 {
		c.StrongScore = def.StrongScore
	}
	if c.RegimeWindow <= 0 {
		c.RegimeWindow = def.RegimeWindow
	}
	return c
}

var (
	trendingWeights = map[Type]float64{
		MACD: 2.0, SMA: 2.0, Turtle: 1.5, CBR: 1.0,
		RSI: 0.5, Bollinger: 0.5, KDJ: 0.5, Candlestick: 1.0,
	}
	rangingWeights = map[Type]float64{
		MACD: 0.5, SMA: 0.5, Turtle: 0.5, CBR: 0.5,
		RSI: 2.0, Bollinger: 2.0, KDJ: 2.0, Candlestick: 1.5,
	}
)

// RegimeWeights 返回自适应模式下对应市场状态的权重副本。
func RegimeWeights(r Regime) map[Type]float64 {
	src := rangingWeights
	if r == RegimeTrending {
		src = trendingWeights
	}
	out := make(map[Type]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// FusionStrategy 汇总成员策略的信号后按模式融合。
type FusionStrategy struct {
	cfg     FusionConfig
	members []Strategy
}

// NewFusionStrategy 成员策略中的融合类型会被忽略。
func NewFusionStrategy(cfg FusionConfig) (*FusionStrategy, error) {
	cfg = cfg.Normalize()
	if _, err := ParseFusionMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	fs := &FusionStrategy{cfg: cfg}
	for _, t := range cfg.Strategies {
		if t == Fusion {
			continue
		}
		s, err := newBase(t)
		if err != nil {
			return nil, err
		}
		fs.members = append(fs.members, s)
	}
	return fs, nil
}

func (f *FusionStrategy) Type() Type { return Fusion }

func (f *FusionStrategy) Config() FusionConfig { return f.cfg }

type vote struct {
	code Type
	sig  signal.Signal
}

// dateVotes 按日期首次出现顺序保存各方向的投票。
type dateVotes struct {
	order []int64
	buys  map[int64][]vote
	sells map[int64][]vote
}

func (f *FusionStrategy) collect(candles []market.Candle) dateVotes {
	dv := dateVotes{buys: map[int64][]vote{}, sells: map[int64][]vote{}}
	seen := map[int64]bool{}
	for _, m := range f.members {
		res, err := m.Generate(candles)
		if err != nil {
			logger.Warnf("融合策略: %s 计算失败，按无信号处理: %v", m.Type().Text(), err)
			continue
		}
		for _, s := range res.Signals {
			if !seen[s.Date] {
				seen[s.Date] = true
				dv.order = append(dv.order, s.Date)
			}
			v := vote{code: m.Type(), sig: s}
			if s.Type == signal.Buy {
				dv.buys[s.Date] = append(dv.buys[s.Date], v)
			} else {
				dv.sells[s.Date] = append(dv.sells[s.Date], v)
			}
		}
	}
	return dv
}

func (f *FusionStrategy) Generate(candles []market.Candle) (Result, error) {
	dv := f.collect(candles)
	res := Result{
		Type: Fusion,
		Metadata: map[string]any{
			"description": fmt.Sprintf("融合策略 - %s模式", f.cfg.Mode),
			"mode":        string(f.cfg.Mode),
			"strategies":  f.cfg.Strategies,
		},
	}
	switch f.cfg.Mode {
	case FusionWeighted:
		weights := make(map[Type]float64, len(f.cfg.Weights))
		for k, v := range f.cfg.Weights {
			weights[k] = v
		}
		res.Signals = f.weighted(dv, weights, "")
		res.Metadata["threshold"] = f.cfg.Threshold
	case FusionAdaptive:
		regime := DetectMarketRegime(candles, f.cfg.RegimeWindow)
		res.Signals = f.weighted(dv, RegimeWeights(regime), regime.Text())
		res.Metadata["threshold"] = f.cfg.Threshold
		res.Metadata["market_state"] = regime.Text()
	default:
		res.Signals = f.voting(dv)
		res.Metadata["min_consensus"] = f.cfg.MinConsensus
	}
	signal.SortByDate(res.Signals)
	return res, nil
}

func (f *FusionStrategy) voting(dv dateVotes) []signal.Signal {
	var out []signal.Signal
	for _, date := range dv.order {
		for _, group := range [][]vote{dv.buys[date], dv.sells[date]} {
			if len(group) < f.cfg.MinConsensus || len(group) == 0 {
				continue
			}
			details := signal.VotingDetails{ConsensusCount: len(group), MinConsensus: f.cfg.MinConsensus}
			strong := 0
			price := 0.0
			for _, v := range group {
				if v.sig.Strength == signal.Strong {
					strong++
				}
				price += v.sig.Price
				details.Votes = append(details.Votes, signal.Vote{
					Strategy: string(v.code),
					Strength: v.sig.Strength,
					Price:    v.sig.Price,
					Pattern:  v.sig.PatternName,
				})
			}
			s := signal.Signal{
				Date:       date,
				Price:      price / float64(len(group)),
				Type:       group[0].sig.Type,
				Strength:   strengthIf(float64(strong)/float64(len(group)) >= 0.5),
				Strategy:   string(Fusion),
				Strategies: voters(group),
				Details:    details,
			}
			s.Reason = fmt.Sprintf("%d个策略共识: %s", len(group), details.Summary(codeText))
			out = append(out, s)
		}
	}
	return out
}

func (f *FusionStrategy) weighted(dv dateVotes, weights map[Type]float64, marketState string) []signal.Signal {
	var out []signal.Signal
	for _, date := range dv.order {
		for _, group := range [][]vote{dv.buys[date], dv.sells[date]} {
			if len(group) == 0 {
				continue
			}
			details := signal.WeightedDetails{Threshold: f.cfg.Threshold, MarketState: marketState}
			price := 0.0
			for _, v := range group {
				w, ok := weights[v.code]
				if !ok {
					w = 1.0
				}
				base := 1.0
				if v.sig.Strength == signal.Strong {
					base = 2.0
				}
				details.Score += base * w
				price += v.sig.Price
				details.Contributions = append(details.Contributions, signal.Contribution{
					Strategy: string(v.code),
					Strength: v.sig.Strength,
					Weight:   w,
					Score:    base * w,
				})
			}
			if details.Score < f.cfg.Threshold {
				continue
			}
			s := signal.Signal{
				Date:       date,
				Price:      price / float64(len(group)),
				Type:       group[0].sig.Type,
				Strength:   strengthIf(details.Score >= f.cfg.StrongScore),
				Strategy:   string(Fusion),
				Strategies: voters(group),
				Score:      details.Score,
				Details:    details,
			}
			s.Reason = fmt.Sprintf("加权得分%.1f(阈值%.1f): %s", details.Score, details.Threshold, details.Summary(codeText))
			if marketState != "" {
				s.Reason = marketState + ", " + s.Reason
			}
			out = append(out, s)
		}
	}
	return out
}

func voters(group []vote) []string {
	out := make([]string, 0, len(group))
	for _, v := range group {
		out = append(out, string(v.code))
	}
	return out
}

func codeText(code string) string { return Type(code).Text() }
