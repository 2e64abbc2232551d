package signal

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DetailsKind string

const (
	DetailsVoting   DetailsKind = "voting"
	DetailsWeighted DetailsKind = "weighted"
)

// Details 是融合信号的附加说明，只有 VotingDetails 与 WeightedDetails 两种实现。
type Details interface {
	Kind() DetailsKind
	Summary(name func(code string) string) string
	sealed()
}

// Vote 投票模式下单个策略的一票。
type Vote struct {
	Strategy string   `json:"strategy"`
	Strength Strength `json:"strength"`
	Price    float64  `json:"price"`
	Pattern  string   `json:"pattern,omitempty"`
}

type VotingDetails struct {
	ConsensusCount int    `json:"consensus_count"`
	MinConsensus   int    `json:"min_consensus"`
	Votes          []Vote `json:"votes"`
}

func (VotingDetails) Kind() DetailsKind { return DetailsVoting }
func (VotingDetails) sealed()           {}

// Summary 形如 "MACD策略(强)、RSI策略(弱)"。
func (d VotingDetails) Summary(name func(code string) string) string {
	parts := make([]string, 0, len(d.Votes))
	for _, v := range d.Votes {
		parts = append(parts, fmt.Sprintf("%s(%s)", lookupName(name, v.Strategy), v.Strength.DisplayName()))
	}
	return strings.Join(parts, "、")
}

func (d VotingDetails) MarshalJSON() ([]byte, error) {
	type alias VotingDetails
	return json.Marshal(struct {
		Kind DetailsKind `json:"kind"`
		alias
	}{DetailsVoting, alias(d)})
}

// Contribution 加权模式下单个策略的得分贡献。
type Contribution struct {
	Strategy string   `json:"strategy"`
	Strength Strength `json:"strength"`
	Weight   float64  `json:"weight"`
	Score    float64  `json:"score"`
}

type WeightedDetails struct {
	Score         float64        `json:"score"`
	Threshold     float64        `json:"threshold"`
	MarketState   string         `json:"market_state,omitempty"`
	Contributions []Contribution `json:"contributions"`
}

func (WeightedDetails) Kind() DetailsKind { return DetailsWeighted }
func (WeightedDetails) sealed()           {}

// Summary 形如 "MACD策略(权重1.0×强=2.0)"。
func (d WeightedDetails) Summary(name func(code string) string) string {
	parts := make([]string, 0, len(d.Contributions))
	for _, c := range d.Contributions {
		parts = append(parts, fmt.Sprintf("%s(权重%.1f×%s=%.1f)", lookupName(name, c.Strategy), c.Weight, c.Strength.DisplayName(), c.Score))
	}
	return strings.Join(parts, "、")
}

func (d WeightedDetails) MarshalJSON() ([]byte, error) {
	type alias WeightedDetails
	return json.Marshal(struct {
		Kind DetailsKind `json:"kind"`
		alias
	}{DetailsWeighted, alias(d)})
}

func lookupName(name func(string) string, code string) string {
	if name == nil {
		return code
	}
	if n := name(code); n != "" {
		return n
	}
	return code
}

// DecodeDetails 按 kind 字段还原 Details，空输入返回 nil。
func DecodeDetails(raw []byte) (Details, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var head struct {
		Kind DetailsKind `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	switch head.Kind {
	case DetailsVoting:
		var d VotingDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode voting details: %w", err)
		}
		return d, nil
	case DetailsWeighted:
		var d WeightedDetails
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode weighted details: %w", err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown details kind %q", head.Kind)
	}
}
