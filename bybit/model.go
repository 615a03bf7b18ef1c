package bybit

import (
	"github.com/lemconn/exwire/types"
)

// bybitList result 中的分页列表
type bybitList[T any] struct {
	Category string `json:"category"`
	List     []T    `json:"list"`
}

// bybitSymbol 交易对信息
type bybitSymbol struct {
	Symbol        string             `json:"symbol"`
	BaseCoin      string             `json:"baseCoin"`
	QuoteCoin     string             `json:"quoteCoin"`
	Status        string             `json:"status"`
	LotSizeFilter bybitLotSizeFilter `json:"lotSizeFilter"`
	PriceFilter   bybitPriceFilter   `json:"priceFilter"`
}

// bybitLotSizeFilter 数量过滤器
type bybitLotSizeFilter struct {
	BasePrecision types.ExDecimal `json:"basePrecision"`
	MinOrderQty   types.ExDecimal `json:"minOrderQty"`
	MaxOrderQty   types.ExDecimal `json:"maxOrderQty"`
}

// bybitPriceFilter 价格过滤器
type bybitPriceFilter struct {
	TickSize types.ExDecimal `json:"tickSize"`
}

// bybitTicker 行情
type bybitTicker struct {
	Symbol      string          `json:"symbol"`
	LastPrice   types.ExDecimal `json:"lastPrice"`
	Bid1Price   types.ExDecimal `json:"bid1Price"`
	Bid1Size    types.ExDecimal `json:"bid1Size"`
	Ask1Price   types.ExDecimal `json:"ask1Price"`
	Ask1Size    types.ExDecimal `json:"ask1Size"`
	Volume24h   types.ExDecimal `json:"volume24h"`
	Turnover24h types.ExDecimal `json:"turnover24h"`
}

// bybitOrderBook 深度，u 为更新ID，seq 为撮合序号
type bybitOrderBook struct {
	Symbol string              `json:"s"`
	Bids   [][]types.ExDecimal `json:"b"`
	Asks   [][]types.ExDecimal `json:"a"`
	Ts     types.ExTimestamp   `json:"ts"`
	U      int64               `json:"u"`
	Seq    int64               `json:"seq"`
}

// bybitOrderAck 下单/撤单结果
type bybitOrderAck struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}
