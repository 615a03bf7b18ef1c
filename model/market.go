package model

import "github.com/shopspring/decimal"

// MarketType 市场类型
type MarketType string

const (
	// MarketTypeSpot 现货市场
	MarketTypeSpot MarketType = "spot"
	// MarketTypeSwap 永续合约市场
	MarketTypeSwap MarketType = "swap"
)

// Market 市场信息，拉取后不可变，由适配器定期刷新
type Market struct {
	// ID 交易所原始市场ID，如 "BTCUSDT" 或 "BTC-USDT"
	ID string `json:"id"`
	// Symbol 统一格式交易对，如 "BTC/USDT"
	Symbol string `json:"symbol"`
	// Exchange 交易所名称
	Exchange string `json:"exchange"`
	// Base 基础货币
	Base string `json:"base"`
	// Quote 计价货币
	Quote string `json:"quote"`
	// Type 市场类型
	Type MarketType `json:"type"`
	// Active 是否可交易
	Active bool `json:"active"`
	// PriceStep 价格最小变动单位，0 表示未知
	PriceStep decimal.Decimal `json:"price_step"`
	// AmountStep 数量最小变动单位，0 表示未知
	AmountStep decimal.Decimal `json:"amount_step"`
	// MinAmount 最小下单数量
	MinAmount decimal.Decimal `json:"min_amount"`
	// MaxAmount 最大下单数量，0 表示不限制
	MaxAmount decimal.Decimal `json:"max_amount"`
}

// RoundPrice 按价格步长向下取整
func (m *Market) RoundPrice(price decimal.Decimal) decimal.Decimal {
	return floorToStep(price, m.PriceStep)
}

// RoundAmount 按数量步长向下取整
func (m *Market) RoundAmount(amount decimal.Decimal) decimal.Decimal {
	return floorToStep(amount, m.AmountStep)
}

// AmountAllowed 检查数量是否在最小/最大限制内
func (m *Market) AmountAllowed(amount decimal.Decimal) bool {
	if amount.LessThan(m.MinAmount) {
		return false
	}
	if m.MaxAmount.IsPositive() && amount.GreaterThan(m.MaxAmount) {
		return false
	}
	return true
}

func floorToStep(v, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return v
	}
	return v.Div(step).Floor().Mul(step)
}
