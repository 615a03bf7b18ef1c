package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide 订单方向
type OrderSide string

const (
	// OrderSideBuy 买入
	OrderSideBuy OrderSide = "buy"
	// OrderSideSell 卖出
	OrderSideSell OrderSide = "sell"
)

// OrderType 订单类型
type OrderType string

const (
	// OrderTypeMarket 市价单
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit 限价单
	OrderTypeLimit OrderType = "limit"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	// OrderStatusPending 已提交未成交
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPartiallyFilled 部分成交
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	// OrderStatusFilled 完全成交
	OrderStatusFilled OrderStatus = "filled"
	// OrderStatusCanceled 已取消
	OrderStatusCanceled OrderStatus = "canceled"
	// OrderStatusError 交易所返回错误
	OrderStatusError OrderStatus = "error"
)

// ErrOrderMismatch 合并的两个结果不属于同一订单
var ErrOrderMismatch = errors.New("cannot merge results of different orders")

// Fee 手续费
type Fee struct {
	// Currency 手续费币种
	Currency string `json:"currency"`
	// Cost 手续费金额
	Cost decimal.Decimal `json:"cost"`
}

// OrderRequest 下单请求
type OrderRequest struct {
	Symbol        string          `json:"symbol"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Price         decimal.Decimal `json:"price"`
	ClientOrderID string          `json:"client_order_id,omitempty"`
}

// OrderResult 交易所侧的订单结果
type OrderResult struct {
	// ID 交易所订单ID
	ID string `json:"id"`
	// ClientOrderID 客户端订单ID
	ClientOrderID string `json:"client_order_id,omitempty"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Side 方向
	Side OrderSide `json:"side"`
	// Status 状态
	Status OrderStatus `json:"status"`
	// Amount 订单数量
	Amount decimal.Decimal `json:"amount"`
	// Filled 已成交数量
	Filled decimal.Decimal `json:"filled"`
	// AveragePrice 平均成交价
	AveragePrice decimal.Decimal `json:"average_price"`
	// Fee 累计手续费
	Fee Fee `json:"fee"`
	// Timestamp 订单时间
	Timestamp time.Time `json:"timestamp"`
	// Message 交易所返回的附加信息（错误原因等）
	Message string `json:"message,omitempty"`
}

// Merge 将另一笔部分成交合并到当前结果：数量与手续费求和，
// 均价按数量加权。两个结果的订单ID或交易对不一致时返回 ErrOrderMismatch。
func (r OrderResult) Merge(other OrderResult) (OrderResult, error) {
	if r.ID != "" && other.ID != "" && r.ID != other.ID {
		return r, ErrOrderMismatch
	}
	if r.Symbol != "" && other.Symbol != "" && r.Symbol != other.Symbol {
		return r, ErrOrderMismatch
	}

	out := r
	total := r.Amount.Add(other.Amount)
	if total.IsPositive() {
		out.AveragePrice = r.AveragePrice.Mul(r.Amount).
			Add(other.AveragePrice.Mul(other.Amount)).
			Div(total)
	}
	out.Amount = total
	out.Filled = r.Filled.Add(other.Filled)
	out.Fee.Cost = r.Fee.Cost.Add(other.Fee.Cost)
	if other.Fee.Currency != "" {
		out.Fee.Currency = other.Fee.Currency
	}

	if out.ID == "" {
		out.ID = other.ID
	}
	if out.Symbol == "" {
		out.Symbol = other.Symbol
	}
	if out.ClientOrderID == "" {
		out.ClientOrderID = other.ClientOrderID
	}
	if other.Side != "" {
		out.Side = other.Side
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = other.Timestamp
	}
	if other.Status != "" {
		out.Status = other.Status
	}
	return out, nil
}

// MergeResults 依次合并多笔成交
func MergeResults(results ...OrderResult) (OrderResult, error) {
	var out OrderResult
	for i, r := range results {
		if i == 0 {
			out = r
			continue
		}
		var err error
		if out, err = out.Merge(r); err != nil {
			return out, err
		}
	}
	return out, nil
}
