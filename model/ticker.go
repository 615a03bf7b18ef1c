package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ticker 行情快照，每次更新整体替换，不做局部修改
type Ticker struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Bid 买一价
	Bid decimal.Decimal `json:"bid"`
	// BidSize 买一量
	BidSize decimal.Decimal `json:"bid_size"`
	// Ask 卖一价
	Ask decimal.Decimal `json:"ask"`
	// AskSize 卖一量
	AskSize decimal.Decimal `json:"ask_size"`
	// Last 最新成交价
	Last decimal.Decimal `json:"last"`
	// Volume 24小时成交量（基础货币）
	Volume decimal.Decimal `json:"volume"`
	// QuoteVolume 24小时成交额（计价货币）
	QuoteVolume decimal.Decimal `json:"quote_volume"`
	// Timestamp 时间戳
	Timestamp time.Time `json:"timestamp"`
}

// Spread 卖一价与买一价之差
func (t *Ticker) Spread() decimal.Decimal {
	return t.Ask.Sub(t.Bid)
}
