package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Builder 构造一个使用默认参数的基础策略。
type Builder func() Strategy

var (
	buildersMu sync.RWMutex
	builders   = map[Type]Builder{
		MACD:        func() Strategy { return NewMACDStrategy() },
		SMA:         func() Strategy { return NewSMAStrategy() },
		Turtle:      func() Strategy { return NewTurtleStrategy() },
		CBR:         func() Strategy { return NewCBRStrategy() },
		RSI:         func() Strategy { return NewRSIStrategy() },
		Bollinger:   func() Strategy { return NewBollingerStrategy() },
		KDJ:         func() Strategy { return NewKDJStrategy() },
		Candlestick: func() Strategy { return NewCandlestickStrategy() },
	}
)

// Register 替换或新增某个基础策略的构造函数，融合策略不可注册。
func Register(t Type, b Builder) error {
	if t == Fusion || t == "" || b == nil {
		return fmt.Errorf("%w: cannot register %q", ErrUnknownStrategy, t)
	}
	buildersMu.Lock()
	builders[t] = b
	buildersMu.Unlock()
	return nil
}

// Registered 返回已注册的基础策略代码（按字典序）。
func Registered() []Type {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	out := make([]Type, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func newBase(t Type) (Strategy, error) {
	buildersMu.RLock()
	b, ok := builders[t]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, t)
	}
	return b(), nil
}

// New 按类型创建策略；融合策略使用 fusion 参数。
func New(t Type, fusion FusionConfig) (Strategy, error) {
	if t == Fusion {
		return NewFusionStrategy(fusion)
	}
	return newBase(t)
}
