package decision

import "fmt"

// Step 算法说明中的一步，供前端展示。
type Step struct {
	Step     string   `json:"step"`
	Why      string   `json:"why"`
	Icon     string   `json:"icon"`
	Strategy string   `json:"strategy"`
	Criteria []string `json:"criteria"`
}

// AlgorithmInfo 按当前参数生成多阶段分析的说明。
func AlgorithmInfo(opts Options) []Step {
	o := opts.Normalize()
	return []Step{
		{
			Step:     "市场状态判定",
			Why:      "先判断趋势方向，震荡行情不做交易",
			Icon:     "⓵",
			Strategy: "MACD + RSI",
			Criteria: []string{
				fmt.Sprintf("MACD DIFF > %g 为0轴上方，< -%g 为0轴下方，其余为0轴附近", o.MACDDeadZone, o.MACDDeadZone),
				fmt.Sprintf("RSI(%d) > %g 为多头趋势，< %g 为空头趋势", o.RSIPeriod, o.RSIBull, o.RSIBear),
				"0轴上方且RSI非空头为做多，0轴下方且RSI非多头为做空，其余为震荡",
				fmt.Sprintf("置信度 = min(|RSI - %g| / 20, 1)，RSI处于震荡区间时为0.5", o.RSIBull),
			},
		},
		{
			Step:     "关键区域识别",
			Why:      "在支撑或阻力附近入场，盈亏比更好",
			Icon:     "⓶",
			Strategy: "K线形态 + 结构位置",
			Criteria: []string{
				fmt.Sprintf("价格与均线%v偏离不超过%.0f%%", o.MAWindows, o.KeyAreaTolerance*100),
				fmt.Sprintf("价格接近前%d根K线的最高点或最低点（偏离不超过%.0f%%）", o.KeyAreaLookback, o.KeyAreaTolerance*100),
				"当日出现吞没、启明星/黄昏星、锤子线、射击之星等重要形态",
			},
		},
		{
			Step:     "入场触发验证",
			Why:      "形态给出方向，放量确认资金参与",
			Icon:     "⓷",
			Strategy: "K线形态 + 成交量",
			Criteria: triggerCriteria(o),
		},
		{
			Step:     "风险过滤",
			Why:      "背离预示动能衰竭，配合缩量时及时离场",
			Icon:     "⓸",
			Strategy: "RSI背离 + 成交量衰减",
			Criteria: []string{
				fmt.Sprintf("顶背离：价格接近前%d根K线高点(≥98%%)，RSI高点更早出现且当前RSI低于其95%%", o.DivergenceLookback),
				fmt.Sprintf("底背离：价格接近前%d根K线低点(≤102%%)，RSI低点更早出现且当前RSI高于其105%%", o.DivergenceLookback),
				"成交量低于10日均量时视为衰减，背离+衰减产生平仓信号（高风险），仅背离为中等风险",
			},
		},
		{
			Step:     "评估分数",
			Why:      "多维度加总，区分强弱信号",
			Icon:     "⭕",
			Strategy: "加权评分",
			Criteria: []string{
				"市场状态：置信度>0.7 +2分，>0.5 +1分",
				"关键区域：方向一致的支撑/阻力 +2分，其他关键区 +1分",
				fmt.Sprintf("成交量：≥%g倍 +2分，≥%g倍 +1分", o.StrongVolumeRatio, o.VolumeRatio),
				"风险：存在背离 -1分",
				fmt.Sprintf("总分≥%d为强信号，否则为弱信号；平仓信号固定%d分", o.StrongScore, exitScore),
			},
		},
	}
}

func triggerCriteria(o Options) []string {
	out := []string{
		"做多匹配看涨形态：看涨吞没、启明星、锤子线、倒锤子线、刺透形态、红三兵、看涨孕线",
		"做空匹配看跌形态：看跌吞没、黄昏星、射击之星、上吊线、乌云盖顶、三只乌鸦、看跌孕线",
		fmt.Sprintf("严格模式：形态 + 成交量≥5日均量的%g倍", o.VolumeRatio),
	}
	if o.AllowLooseTrigger {
		out = append(out, fmt.Sprintf("宽松模式：形态 + 成交量≥5日均量的%g倍", o.LooseVolumeRatio))
	}
	if o.AllowVolumeOnlyTrigger {
		out = append(out, fmt.Sprintf("极度放量：无形态时成交量≥%g倍且K线颜色与方向一致", o.VolumeOnlyRatio))
	}
	return out
}
