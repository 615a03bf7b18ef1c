package bitfinex

import (
	"context"
	"net/url"
	"time"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/types"
)

func (x *Bitfinex) public(path string) *dispatch.Request {
	r := dispatch.Get(path)
	r.BaseURL = x.publicURL
	return r
}

// FetchMarkets 现货交易对列表，接口只返回名称，不含精度信息
func (x *Bitfinex) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	lists, err := dispatch.Do[[][]string](ctx, x.Dispatcher(), x.public("/v2/conf/pub:list:pair:exchange"))
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, nil
	}
	markets := make([]model.Market, 0, len(lists[0]))
	for _, pair := range lists[0] {
		symbol := fromBitfinexSymbol(pair)
		m := model.Market{
			ID:       "t" + pair,
			Symbol:   symbol,
			Exchange: bitfinexName,
			Type:     model.MarketTypeSpot,
			Active:   true,
		}
		// 无法识别的交易对名称不加入市场缓存
		var perr error
		if m.Base, m.Quote, perr = common.ParseSymbol(symbol); perr != nil {
			continue
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// LoadMarkets 加载市场信息
func (x *Bitfinex) LoadMarkets(ctx context.Context, reload bool) error {
	return x.Base.LoadMarkets(ctx, reload, x.FetchMarkets)
}

// FetchTicker 获取行情
func (x *Bitfinex) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := x.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	row, err := dispatch.Do[[]types.ExDecimal](ctx, x.Dispatcher(), x.public("/v2/ticker/"+url.PathEscape(id)))
	if err != nil {
		return model.Ticker{}, err
	}
	t, err := toTicker(symbol, row)
	if err != nil {
		return model.Ticker{}, types.NewProtocolError(bitfinexName, err)
	}
	return t, nil
}

// FetchOrderBook 获取 P0 精度深度快照，len 只支持 1、25、100
func (x *Bitfinex) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := x.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	length := 25
	switch n := args.LimitOr(25); {
	case n <= 1:
		length = 1
	case n > 25:
		length = 100
	}
	req := x.public("/v2/book/" + url.PathEscape(id) + "/P0")
	req.Params.SetQuery("len", length)

	rows, err := dispatch.Do[[][]types.ExDecimal](ctx, x.Dispatcher(), req)
	if err != nil {
		return orderbook.Update{}, err
	}
	bids, asks := splitBook(rows)
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
	}, nil
}
