package binance

import (
	"github.com/lemconn/exwire/types"
)

// binanceExchangeInfo 现货市场信息响应
type binanceExchangeInfo struct {
	Symbols []binanceSymbol `json:"symbols"`
}

// binanceSymbol 现货交易对信息
type binanceSymbol struct {
	Symbol     string          `json:"symbol"`
	BaseAsset  string          `json:"baseAsset"`
	QuoteAsset string          `json:"quoteAsset"`
	Status     string          `json:"status"`
	Filters    []binanceFilter `json:"filters"`
}

// binanceFilter 交易对过滤器
type binanceFilter struct {
	FilterType string          `json:"filterType"`
	MinQty     types.ExDecimal `json:"minQty,omitempty"`
	MaxQty     types.ExDecimal `json:"maxQty,omitempty"`
	StepSize   types.ExDecimal `json:"stepSize,omitempty"`
	TickSize   types.ExDecimal `json:"tickSize,omitempty"`
}

// binanceTicker 24小时行情
type binanceTicker struct {
	Symbol      string            `json:"symbol"`
	LastPrice   types.ExDecimal   `json:"lastPrice"`
	BidPrice    types.ExDecimal   `json:"bidPrice"`
	BidQty      types.ExDecimal   `json:"bidQty"`
	AskPrice    types.ExDecimal   `json:"askPrice"`
	AskQty      types.ExDecimal   `json:"askQty"`
	Volume      types.ExDecimal   `json:"volume"`
	QuoteVolume types.ExDecimal   `json:"quoteVolume"`
	CloseTime   types.ExTimestamp `json:"closeTime"`
}

// binanceDepth REST 深度快照
type binanceDepth struct {
	LastUpdateID int64               `json:"lastUpdateId"`
	Bids         [][]types.ExDecimal `json:"bids"`
	Asks         [][]types.ExDecimal `json:"asks"`
}

// binanceOrder 下单/撤单响应
type binanceOrder struct {
	Symbol              string            `json:"symbol"`
	OrderID             int64             `json:"orderId"`
	ClientOrderID       string            `json:"clientOrderId"`
	TransactTime        types.ExTimestamp `json:"transactTime"`
	Price               types.ExDecimal   `json:"price"`
	OrigQty             types.ExDecimal   `json:"origQty"`
	ExecutedQty         types.ExDecimal   `json:"executedQty"`
	CummulativeQuoteQty types.ExDecimal   `json:"cummulativeQuoteQty"`
	Status              string            `json:"status"`
	Type                string            `json:"type"`
	Side                string            `json:"side"`
	Fills               []binanceFill     `json:"fills"`
}

// binanceFill 订单成交明细
type binanceFill struct {
	Price           types.ExDecimal `json:"price"`
	Qty             types.ExDecimal `json:"qty"`
	Commission      types.ExDecimal `json:"commission"`
	CommissionAsset string          `json:"commissionAsset"`
	TradeID         int64           `json:"tradeId"`
}
