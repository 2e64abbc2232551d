package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"candlesig/internal/backtest"
	"candlesig/internal/decision"
	"candlesig/internal/signal"
)

const reasonWidth = 80

// PrettyJSON 序列化为缩进 JSON；失败时返回错误文本。
func PrettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<json error: %v>", err)
	}
	return string(b)
}

// TrimTo 按字符数截断，超长追加省略号。
func TrimTo(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func day(ms int64) string { return time.UnixMilli(ms).UTC().Format("2006-01-02") }

// SignalsTable 策略信号表。
func SignalsTable(title string, signals []signal.Signal) string {
	if len(signals) == 0 {
		return ""
	}
	t := newTable(title)
	t.AppendHeader(table.Row{"日期", "价格", "信号", "强度", "策略", "原因"})
	for _, s := range signals {
		t.AppendRow(table.Row{
			day(s.Date),
			fmt.Sprintf("%.2f", s.Price),
			s.Type.FullText(),
			s.Strength.FullText(),
			strings.Join(s.StrategyCodes(), ","),
			TrimTo(strings.ReplaceAll(s.Reason, "\n", " "), reasonWidth),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return t.Render()
}

// DecisionTable 多阶段分析信号表。
func DecisionTable(title string, signals []decision.Signal) string {
	if len(signals) == 0 {
		return ""
	}
	t := newTable(title)
	t.AppendHeader(table.Row{"日期", "价格", "动作", "得分", "形态", "原因"})
	for _, s := range signals {
		t.AppendRow(table.Row{
			day(s.Date),
			fmt.Sprintf("%.2f", s.Price),
			s.ShowText,
			fmt.Sprintf("%.0f", s.Score),
			s.PatternName,
			TrimTo(s.Reason, reasonWidth),
		})
	}
	return t.Render()
}

// StatisticsTable 多阶段分析的计数汇总。
func StatisticsTable(st decision.Statistics) string {
	t := newTable("多阶段分析统计")
	t.AppendHeader(table.Row{"指标", "天数"})
	rows := []struct {
		name string
		n    int
	}{
		{"总天数", st.TotalDays},
		{"预热天数", st.WarmupDays},
		{"震荡", st.RangingDays},
		{"趋势", st.TrendDays},
		{"多头", st.LongDays},
		{"空头", st.ShortDays},
		{"关键区域", st.KeyAreaDays},
		{"入场触发", st.TriggeredDays},
		{"成交量确认", st.VolumeConfirmedDays},
		{"风险", st.RiskDays},
		{"顶背离", st.BearishDivergenceDays},
		{"底背离", st.BullishDivergenceDays},
		{"信号", st.SignalDays},
		{"强买", st.StrongBuy},
		{"弱买", st.WeakBuy},
		{"强卖", st.StrongSell},
		{"弱卖", st.WeakSell},
	}
	for _, r := range rows {
		t.AppendRow(table.Row{r.name, r.n})
	}
	return t.Render()
}

// BacktestTable 回测摘要与交易明细。
func BacktestTable(res backtest.Result) string {
	var b strings.Builder
	sum := newTable("回测摘要")
	sum.AppendRows([]table.Row{
		{"初始资金", res.InitialCapital.StringFixed(2)},
		{"期末市值", res.FinalValue.StringFixed(2)},
		{"总收益率", fmt.Sprintf("%.2f%%", res.TotalReturn)},
		{"交易次数", res.Metrics.TotalTrades},
		{"胜率", fmt.Sprintf("%.2f%%", res.Metrics.WinRate)},
		{"盈亏比", fmt.Sprintf("%.2f", res.Metrics.ProfitLossRatio)},
	})
	if res.Risk != nil {
		sum.AppendRows([]table.Row{
			{"年化波动率", fmt.Sprintf("%.4f", res.Risk.Volatility)},
			{"最大回撤", fmt.Sprintf("%.2f%%", res.Risk.MaxDrawdown*100)},
			{"夏普比率", fmt.Sprintf("%.2f", res.Risk.SharpeRatio)},
		})
	}
	sum.AppendRow(table.Row{"建议", res.Advice})
	b.WriteString(sum.Render())
	if len(res.Trades) > 0 {
		tr := newTable("交易明细")
		tr.AppendHeader(table.Row{"日期", "方向", "价格", "数量", "金额", "现金", "持仓"})
		for _, x := range res.Trades {
			tr.AppendRow(table.Row{day(x.Date), x.Type.FullText(), x.Price.StringFixed(2), x.Shares, x.Amount.StringFixed(2), x.Capital.StringFixed(2), x.Position})
		}
		b.WriteString("\n")
		b.WriteString(tr.Render())
	}
	return b.String()
}
