package market

// Gap 表示缺失的连续 K 线区间。
type Gap struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Count int64 `json:"count"`
}

// IntegrityReport 描述序列在其时间跨度内的覆盖情况。
type IntegrityReport struct {
	Start       int64 `json:"start"`
	End         int64 `json:"end"`
	Expected    int64 `json:"expected"`
	Present     int64 `json:"present"`
	Gaps        []Gap `json:"gaps"`
	AlignedFrom int64 `json:"aligned_from"`
	AlignedTo   int64 `json:"aligned_to"`
}

func (r IntegrityReport) Complete() bool { return len(r.Gaps) == 0 }

// CheckIntegrity 按周期扫描 K 线的 OpenTime，列出缺口。
// 日线遇到休市日也会报告缺口，调用方只将其作为提示。
func CheckIntegrity(candles []Candle, tf Timeframe) IntegrityReport {
	if len(candles) == 0 {
		return IntegrityReport{}
	}
	start := candles[0].OpenTime
	end := candles[len(candles)-1].OpenTime
	alStart, alEnd := tf.AlignRange(start, end)
	report := IntegrityReport{
		Start:       start,
		End:         end,
		AlignedFrom: alStart,
		AlignedTo:   alEnd,
		Expected:    tf.ExpectedCandles(alStart, alEnd),
	}
	if report.Expected <= 0 {
		return report
	}
	existing := make([]int64, 0, len(candles))
	for _, c := range candles {
		if c.OpenTime >= alStart && c.OpenTime <= alEnd {
			existing = append(existing, c.OpenTime)
		}
	}
	report.Present = int64(len(existing))

	step := tf.durationMillis()
	var gaps []Gap
	cursor := alStart
	idx := 0
	for cursor <= alEnd {
		for idx < len(existing) && existing[idx] < cursor {
			idx++
		}
		if idx < len(existing) && existing[idx] == cursor {
			idx++
			cursor += step
			continue
		}
		gapStart := cursor
		var missing int64
		for cursor <= alEnd {
			for idx < len(existing) && existing[idx] < cursor {
				idx++
			}
			if idx < len(existing) && existing[idx] == cursor {
				break
			}
			cursor += step
			missing++
		}
		if missing > 0 {
			gaps = append(gaps, Gap{From: gapStart, To: cursor - step, Count: missing})
		}
	}
	report.Gaps = gaps
	return report
}
