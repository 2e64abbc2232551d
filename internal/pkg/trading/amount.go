package trading

import "github.com/shopspring/decimal"

// CalcBuyShares 按资金比例计算可买入的整数股数：floor(capital*ratio/price)。
// ratio 超过 1 时按 1 处理，价格或资金非正时返回 0。
func CalcBuyShares(capital, price decimal.Decimal, ratio float64) int64 {
	if ratio <= 0 || !capital.IsPositive() || !price.IsPositive() {
		return 0
	}
	if ratio > 1 {
		ratio = 1
	}
	budget := capital.Mul(decimal.NewFromFloat(ratio))
	return budget.Div(price).Floor().IntPart()
}

// CalcSellShares 按持仓比例计算卖出股数，向下取整且不超过当前持仓。
func CalcSellShares(position int64, ratio float64) int64 {
	if ratio <= 0 || position <= 0 {
		return 0
	}
	if ratio > 1 {
		ratio = 1
	}
	shares := decimal.NewFromInt(position).Mul(decimal.NewFromFloat(ratio)).Floor().IntPart()
	if shares > position {
		return position
	}
	return shares
}

// Amount 成交金额 = 股数 * 价格。
func Amount(shares int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(shares))
}
