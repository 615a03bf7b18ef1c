package model

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// NoTradeID 交易所未提供成交ID时使用的占位值
const NoTradeID = ""

// TradeFlags 成交标记
type TradeFlags uint8

const (
	// TradeFlagSnapshot 来自订阅时推送的历史成交快照
	TradeFlagSnapshot TradeFlags = 1 << iota
	// TradeFlagLastFromSnapshot 快照中的最后一条
	TradeFlagLastFromSnapshot
)

// Trade 成交记录，构造后不可变
type Trade struct {
	// ID 交易所成交ID，可能为 NoTradeID
	ID string `json:"id"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Side 主动方方向
	Side OrderSide `json:"side"`
	// Price 成交价格
	Price decimal.Decimal `json:"price"`
	// Amount 成交数量
	Amount decimal.Decimal `json:"amount"`
	// Timestamp 成交时间
	Timestamp time.Time `json:"timestamp"`
	// Flags 快照标记
	Flags TradeFlags `json:"flags,omitempty"`
}

// IsFromSnapshot 是否来自快照
func (t Trade) IsFromSnapshot() bool {
	return t.Flags&TradeFlagSnapshot != 0
}

// IsLastFromSnapshot 是否为快照最后一条
func (t Trade) IsLastFromSnapshot() bool {
	return t.Flags&TradeFlagLastFromSnapshot != 0
}

// Less 按时间戳排序，时间相同再按ID排序（数字ID按数值比较）
func (t Trade) Less(other Trade) bool {
	if !t.Timestamp.Equal(other.Timestamp) {
		return t.Timestamp.Before(other.Timestamp)
	}
	a, errA := strconv.ParseInt(t.ID, 10, 64)
	b, errB := strconv.ParseInt(other.ID, 10, 64)
	if errA == nil && errB == nil {
		return a < b
	}
	return t.ID < other.ID
}

// SortTrades 原地排序
func SortTrades(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Less(trades[j])
	})
}

// MarkSnapshot 为一批快照成交打标记，最后一条额外标记 TradeFlagLastFromSnapshot
func MarkSnapshot(trades []Trade) {
	for i := range trades {
		trades[i].Flags |= TradeFlagSnapshot
	}
	if n := len(trades); n > 0 {
		trades[n-1].Flags |= TradeFlagLastFromSnapshot
	}
}
