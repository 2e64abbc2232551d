package report

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"candlesig/internal/backtest"
	"candlesig/internal/decision"
	"candlesig/internal/signal"
)

func TestTrimTo(t *testing.T) {
	if got := TrimTo("锤子线看涨", 2); got != "锤子..." {
		t.Fatalf("got %q", got)
	}
	if got := TrimTo("abc", 0); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestSignalsTable(t *testing.T) {
	if SignalsTable("x", nil) != "" {
		t.Fatalf("empty input should render nothing")
	}
	out := SignalsTable("信号", []signal.Signal{{Date: 0, Price: 12.345, Type: signal.Buy, Strength: signal.Strong, Strategies: []string{"M", "K"}, Reason: "金叉"}})
	for _, want := range []string{"1970-01-01", "12.35", "MB(买入)", "M,K", "金叉"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestDecisionAndStatistics(t *testing.T) {
	sig := decision.Signal{Signal: signal.Signal{Price: 10, Score: 5, PatternName: "锤子线", Reason: "⓵ 多头"}, ShowText: signal.EnterLong.ShowText()}
	if out := DecisionTable("", []decision.Signal{sig}); !strings.Contains(out, "🟢买入开多") || !strings.Contains(out, "锤子线") {
		t.Fatalf("decision table:\n%s", out)
	}
	if out := StatisticsTable(decision.Statistics{TotalDays: 120, SignalDays: 3}); !strings.Contains(out, "120") {
		t.Fatalf("statistics table:\n%s", out)
	}
}

func TestBacktestTable(t *testing.T) {
	res := backtest.Result{
		InitialCapital: decimal.NewFromInt(100000),
		FinalValue:     decimal.NewFromInt(143632),
		TotalReturn:    43.632,
		Advice:         "当前无明确交易信号",
		Trades:         []backtest.Trade{{Type: signal.Buy, Price: decimal.NewFromInt(11), Shares: 7272, Amount: decimal.NewFromInt(79992), Capital: decimal.NewFromInt(20008), Position: 7272}},
		Risk:           &backtest.RiskMetrics{MaxDrawdown: -0.1},
	}
	out := BacktestTable(res)
	for _, want := range []string{"143632.00", "43.63%", "7272", "-10.00%", "当前无明确交易信号"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q:\n%s", want, out)
		}
	}
}

func TestPrettyJSON(t *testing.T) {
	if got := PrettyJSON(map[string]int{"a": 1}); got != "{\n  \"a\": 1\n}" {
		t.Fatalf("got %q", got)
	}
}
