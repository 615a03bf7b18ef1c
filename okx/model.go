package okx

import (
	"github.com/lemconn/exwire/types"
)

// okxInstrument 现货交易对信息
type okxInstrument struct {
	InstType string          `json:"instType"`
	InstID   string          `json:"instId"`
	BaseCcy  string          `json:"baseCcy"`
	QuoteCcy string          `json:"quoteCcy"`
	State    string          `json:"state"`
	MinSz    types.ExDecimal `json:"minSz"`
	MaxLmtSz types.ExDecimal `json:"maxLmtSz"`
	LotSz    types.ExDecimal `json:"lotSz"`
	TickSz   types.ExDecimal `json:"tickSz"`
}

// okxTicker 行情，REST 与 WebSocket tickers 频道格式相同
type okxTicker struct {
	InstID    string            `json:"instId"`
	Last      types.ExDecimal   `json:"last"`
	AskPx     types.ExDecimal   `json:"askPx"`
	AskSz     types.ExDecimal   `json:"askSz"`
	BidPx     types.ExDecimal   `json:"bidPx"`
	BidSz     types.ExDecimal   `json:"bidSz"`
	Vol24h    types.ExDecimal   `json:"vol24h"`
	VolCcy24h types.ExDecimal   `json:"volCcy24h"`
	Ts        types.ExTimestamp `json:"ts"`
}

// okxBook 深度，档位为 [价格, 数量, 废弃字段, 订单数]
type okxBook struct {
	Asks      [][]types.ExDecimal `json:"asks"`
	Bids      [][]types.ExDecimal `json:"bids"`
	Ts        types.ExTimestamp   `json:"ts"`
	SeqID     int64               `json:"seqId"`
	PrevSeqID int64               `json:"prevSeqId"`
	Checksum  int64               `json:"checksum"`
}

// okxTrade 逐笔成交
type okxTrade struct {
	InstID  string            `json:"instId"`
	TradeID string            `json:"tradeId"`
	Px      types.ExDecimal   `json:"px"`
	Sz      types.ExDecimal   `json:"sz"`
	Side    string            `json:"side"`
	Ts      types.ExTimestamp `json:"ts"`
}

// okxOrderAck 下单/撤单结果
type okxOrderAck struct {
	OrdID   string            `json:"ordId"`
	ClOrdID string            `json:"clOrdId"`
	SCode   string            `json:"sCode"`
	SMsg    string            `json:"sMsg"`
	Ts      types.ExTimestamp `json:"ts"`
}
