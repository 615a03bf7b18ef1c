package bitfinex

import (
	"fmt"
	"time"

	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
)

// Bitfinex v2 用定长数组表示记录，以下为各记录的字段下标

// 行情: [BID, BID_SIZE, ASK, ASK_SIZE, DAILY_CHANGE, DAILY_CHANGE_RELATIVE, LAST_PRICE, VOLUME, HIGH, LOW]
const (
	tickerBid     = 0
	tickerBidSize = 1
	tickerAsk     = 2
	tickerAskSize = 3
	tickerLast    = 6
	tickerVolume  = 7
	tickerLen     = 10
)

// 订单: [ID, GID, CID, SYMBOL, MTS_CREATE, MTS_UPDATE, AMOUNT, AMOUNT_ORIG, TYPE, TYPE_PREV,
// MTS_TIF, _, FLAGS, STATUS, _, _, PRICE, PRICE_AVG, ...]
const (
	orderID         = 0
	orderCID        = 2
	orderMTSCreate  = 4
	orderAmount     = 6
	orderAmountOrig = 7
	orderStatus     = 13
	orderPriceAvg   = 17
	orderMinLen     = 18
)

// flagPostOnly 订单 flags 中的 post-only 位
const flagPostOnly = 4096

func toTicker(symbol string, row []types.ExDecimal) (model.Ticker, error) {
	if len(row) < tickerLen {
		return model.Ticker{}, fmt.Errorf("ticker has %d fields", len(row))
	}
	return model.Ticker{
		Symbol:      symbol,
		Bid:         row[tickerBid].Decimal,
		BidSize:     row[tickerBidSize].Decimal,
		Ask:         row[tickerAsk].Decimal,
		AskSize:     row[tickerAskSize].Decimal,
		Last:        row[tickerLast].Decimal,
		Volume:      row[tickerVolume].Decimal,
		QuoteVolume: row[tickerVolume].Decimal.Mul(row[tickerLast].Decimal),
		Timestamp:   time.Now(),
	}, nil
}

// bookLevel [PRICE, COUNT, AMOUNT]：AMOUNT 为正是买单，为负是卖单；COUNT 为 0 表示删除该价位
func bookLevel(row []types.ExDecimal) (side model.BookSide, level model.PriceLevel, ok bool) {
	if len(row) < 3 {
		return side, level, false
	}
	price, count, amount := row[0].Decimal, row[1].Decimal, row[2].Decimal
	side = model.BookSideBid
	if amount.IsNegative() {
		side = model.BookSideAsk
	}
	level.Price = price
	if count.IsPositive() {
		level.Amount = amount.Abs()
	}
	return side, level, true
}

// splitBook 将 [[PRICE, COUNT, AMOUNT], ...] 按方向拆分
func splitBook(rows [][]types.ExDecimal) (bids, asks []model.PriceLevel) {
	for _, r := range rows {
		side, lvl, ok := bookLevel(r)
		if !ok {
			continue
		}
		if side == model.BookSideBid {
			bids = append(bids, lvl)
		} else {
			asks = append(asks, lvl)
		}
	}
	return bids, asks
}

// toTrade [ID, MTS, AMOUNT, PRICE]，AMOUNT 为负表示卖方主动
func toTrade(symbol string, row []types.ExDecimal) (model.Trade, bool) {
	if len(row) < 4 {
		return model.Trade{}, false
	}
	side := model.OrderSideBuy
	if row[2].IsNegative() {
		side = model.OrderSideSell
	}
	return model.Trade{
		ID:        row[0].Decimal.String(),
		Symbol:    symbol,
		Side:      side,
		Price:     row[3].Decimal,
		Amount:    row[2].Decimal.Abs(),
		Timestamp: time.UnixMilli(row[1].IntPart()),
	}, true
}

// signedAmount 卖单数量取负
func signedAmount(side model.OrderSide, amount decimal.Decimal) decimal.Decimal {
	if side == model.OrderSideSell {
		return amount.Neg()
	}
	return amount
}
