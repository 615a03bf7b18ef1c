package gate

import (
	"github.com/lemconn/exwire/types"
)

// gateCurrencyPair 现货交易对
type gateCurrencyPair struct {
	ID              string          `json:"id"`
	Base            string          `json:"base"`
	Quote           string          `json:"quote"`
	MinBaseAmount   types.ExDecimal `json:"min_base_amount"`
	MaxBaseAmount   types.ExDecimal `json:"max_base_amount"`
	AmountPrecision int32           `json:"amount_precision"`
	Precision       int32           `json:"precision"`
	TradeStatus     string          `json:"trade_status"`
}

// gateTicker 行情
type gateTicker struct {
	CurrencyPair string          `json:"currency_pair"`
	Last         types.ExDecimal `json:"last"`
	LowestAsk    types.ExDecimal `json:"lowest_ask"`
	LowestSize   types.ExDecimal `json:"lowest_size"`
	HighestBid   types.ExDecimal `json:"highest_bid"`
	HighestSize  types.ExDecimal `json:"highest_size"`
	BaseVolume   types.ExDecimal `json:"base_volume"`
	QuoteVolume  types.ExDecimal `json:"quote_volume"`
}

// gateOrderBook 深度，with_id=true 时返回 id
type gateOrderBook struct {
	ID      int64               `json:"id"`
	Current types.ExTimestamp   `json:"current"`
	Asks    [][]types.ExDecimal `json:"asks"`
	Bids    [][]types.ExDecimal `json:"bids"`
}

// gateOrder 订单
type gateOrder struct {
	ID           string            `json:"id"`
	Text         string            `json:"text"`
	CurrencyPair string            `json:"currency_pair"`
	Status       string            `json:"status"`
	Side         string            `json:"side"`
	Amount       types.ExDecimal   `json:"amount"`
	Left         types.ExDecimal   `json:"left"`
	FilledAmount types.ExDecimal   `json:"filled_amount"`
	AvgDealPrice types.ExDecimal   `json:"avg_deal_price"`
	Fee          types.ExDecimal   `json:"fee"`
	FeeCurrency  string            `json:"fee_currency"`
	CreateTime   types.ExTimestamp `json:"create_time"`
	FinishAs     string            `json:"finish_as"`
}
