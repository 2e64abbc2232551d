package signal

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

const day = int64(86400000)

func sig(d int64, typ Type, strength Strength, strategy string) Signal {
	return Signal{Date: d * day, Price: 10, Type: typ, Strength: strength, Strategy: strategy}
}

func TestMergeByDatePrefersStrong(t *testing.T) {
	in := []Signal{
		sig(1, Buy, Weak, "M"),
		sig(1, Buy, Strong, "S"),
		sig(1, Sell, Strong, "T"),
		sig(2, Sell, Weak, "R"),
	}
	got := MergeByDate(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 merged signals, got %d", len(got))
	}
	first := got[0]
	if first.Strategy != "S" || first.Strength != Strong {
		t.Fatalf("first strong should win, got %+v", first)
	}
	if !reflect.DeepEqual(first.Strategies, []string{"S", "T"}) {
		t.Fatalf("strong contributors = %v", first.Strategies)
	}
	if got[1].Strategy != "R" || got[1].Strategies != nil {
		t.Fatalf("single signal should pass through, got %+v", got[1])
	}
}

func TestMergeByDateAllWeak(t *testing.T) {
	got := MergeByDate([]Signal{sig(3, Sell, Weak, "K"), sig(3, Buy, Weak, "B")})
	if len(got) != 1 {
		t.Fatalf("expected 1, got %d", len(got))
	}
	if got[0].Strategy != "K" || !reflect.DeepEqual(got[0].Strategies, []string{"K", "B"}) {
		t.Fatalf("unexpected weak merge: %+v", got[0])
	}
}

func TestMergeByDateIdempotentOnDistinctDates(t *testing.T) {
	in := []Signal{sig(1, Buy, Weak, "M"), sig(2, Sell, Strong, "S"), sig(5, Buy, Strong, "T")}
	once := MergeByDate(in)
	twice := MergeByDate(once)
	if !reflect.DeepEqual(in, once) || !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge should be identity on distinct dates")
	}
}

func TestMergeDoesNotAliasInput(t *testing.T) {
	in := []Signal{{Date: day, Type: Buy, Strength: Weak, Strategies: []string{"M"}}}
	out := MergeByDate(in)
	out[0].Strategies[0] = "X"
	if in[0].Strategies[0] != "M" {
		t.Fatalf("input mutated through merge output")
	}
}

func TestFilterConsecutive(t *testing.T) {
	in := []Signal{
		sig(0, Buy, Weak, "M"),
		sig(2, Buy, Weak, "M"),   // 2 天内同向弱信号，丢弃
		sig(3, Buy, Weak, "M"),   // 恰好 3 天，不超过，丢弃
		sig(4, Buy, Strong, "M"), // 强信号保留
		sig(5, Sell, Weak, "M"),  // 方向改变保留
		sig(9, Sell, Weak, "M"),  // 距上一条 4 天保留
		sig(10, Sell, Weak, "M"), // 丢弃
	}
	got := FilterConsecutive(in)
	var days []int64
	for _, s := range got {
		days = append(days, s.Date/day)
	}
	if !reflect.DeepEqual(days, []int64{0, 4, 5, 9}) {
		t.Fatalf("kept days = %v", days)
	}
}

func TestFilterIsSubsequence(t *testing.T) {
	in := []Signal{sig(0, Buy, Weak, "A"), sig(1, Buy, Weak, "B"), sig(1, Sell, Weak, "C"), sig(7, Sell, Weak, "D")}
	got := FilterConsecutive(in)
	j := 0
	for _, s := range got {
		for j < len(in) && in[j].Strategy != s.Strategy {
			j++
		}
		if j == len(in) {
			t.Fatalf("%s not found in order", s.Strategy)
		}
		j++
	}
	if len(FilterConsecutive(nil)) != 0 {
		t.Fatalf("nil input should stay empty")
	}
}

func TestMergeAndFilterSortsByDate(t *testing.T) {
	in := []Signal{sig(9, Sell, Weak, "S"), sig(1, Buy, Weak, "M"), sig(1, Buy, Strong, "T")}
	got := MergeAndFilter(in)
	if len(got) != 2 || got[0].Date != day || got[0].Strategy != "T" || got[1].Date != 9*day {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestDetailsJSONRoundTrip(t *testing.T) {
	s := Signal{Date: day, Type: Buy, Strength: Strong, Details: VotingDetails{
		ConsensusCount: 2,
		MinConsensus:   2,
		Votes:          []Vote{{Strategy: "M", Strength: Strong}, {Strategy: "R", Strength: Weak}},
	}}
	raw, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"kind":"voting"`) {
		t.Fatalf("kind tag missing: %s", raw)
	}
	var probe struct {
		Details json.RawMessage `json:"details"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d, err := DecodeDetails(probe.Details)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	vd, ok := d.(VotingDetails)
	if !ok || vd.ConsensusCount != 2 || len(vd.Votes) != 2 {
		t.Fatalf("unexpected details: %#v", d)
	}
	names := map[string]string{"M": "MACD策略", "R": "RSI策略"}
	if got := vd.Summary(func(c string) string { return names[c] }); got != "MACD策略(强)、RSI策略(弱)" {
		t.Fatalf("summary = %q", got)
	}

	w := WeightedDetails{Score: 3, Threshold: 3, Contributions: []Contribution{{Strategy: "M", Strength: Weak, Weight: 1.5, Score: 1.5}}}
	if got := w.Summary(nil); got != "M(权重1.5×弱=1.5)" {
		t.Fatalf("weighted summary = %q", got)
	}
	if _, err := DecodeDetails([]byte(`{"kind":"other"}`)); err == nil {
		t.Fatalf("unknown kind should fail")
	}
}

func TestEnumTexts(t *testing.T) {
	if Buy.FullText() != "🔴 MB(买入)" || Sell.FullText() != "🟢 MS(卖出)" {
		t.Fatalf("type texts: %s %s", Buy.FullText(), Sell.FullText())
	}
	if Strong.FullText() != "🔥 强" || Weak.FullText() != "🥀 弱" {
		t.Fatalf("strength texts")
	}
	if ExitLong.ShowText() != "🟡卖出平多" || !ExitShort.IsExit() || EnterLong.IsExit() {
		t.Fatalf("action helpers")
	}
}
