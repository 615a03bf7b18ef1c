package okx

import (
	"context"
	"time"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/types"
)

// FetchMarkets 获取现货交易对
func (x *OKX) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	req := dispatch.Get("/api/v5/public/instruments")
	req.Params.SetQuery("instType", "SPOT")

	items, err := dispatch.Do[[]okxInstrument](ctx, x.Dispatcher(), req)
	if err != nil {
		return nil, err
	}
	markets := make([]model.Market, 0, len(items))
	for _, it := range items {
		markets = append(markets, model.Market{
			ID:         it.InstID,
			Symbol:     common.NormalizeSymbol(it.BaseCcy, it.QuoteCcy),
			Exchange:   okxName,
			Base:       it.BaseCcy,
			Quote:      it.QuoteCcy,
			Type:       model.MarketTypeSpot,
			Active:     it.State == "live",
			PriceStep:  it.TickSz.Decimal,
			AmountStep: it.LotSz.Decimal,
			MinAmount:  it.MinSz.Decimal,
			MaxAmount:  it.MaxLmtSz.Decimal,
		})
	}
	return markets, nil
}

// LoadMarkets 加载市场信息
func (x *OKX) LoadMarkets(ctx context.Context, reload bool) error {
	return x.Base.LoadMarkets(ctx, reload, x.FetchMarkets)
}

// FetchTicker 获取行情
func (x *OKX) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := x.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	req := dispatch.Get("/api/v5/market/ticker")
	req.Params.SetQuery("instId", id)

	items, err := dispatch.Do[[]okxTicker](ctx, x.Dispatcher(), req)
	if err != nil {
		return model.Ticker{}, err
	}
	if len(items) == 0 {
		return model.Ticker{}, types.NewExchangeError(okxName, "", "empty ticker for "+id)
	}
	return toTicker(symbol, items[0]), nil
}

func toTicker(symbol string, t okxTicker) model.Ticker {
	return model.Ticker{
		Symbol:      symbol,
		Bid:         t.BidPx.Decimal,
		BidSize:     t.BidSz.Decimal,
		Ask:         t.AskPx.Decimal,
		AskSize:     t.AskSz.Decimal,
		Last:        t.Last.Decimal,
		Volume:      t.Vol24h.Decimal,
		QuoteVolume: t.VolCcy24h.Decimal,
		Timestamp:   t.Ts.Time,
	}
}

// FetchOrderBook 获取深度快照
func (x *OKX) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := x.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	req := dispatch.Get("/api/v5/market/books")
	req.Params.SetQuery("instId", id)
	req.Params.SetQuery("sz", args.LimitOr(100))

	books, err := dispatch.Do[[]okxBook](ctx, x.Dispatcher(), req)
	if err != nil {
		return orderbook.Update{}, err
	}
	if len(books) == 0 {
		return orderbook.Update{}, types.NewExchangeError(okxName, "", "empty book for "+id)
	}
	b := books[0]
	ts := b.Ts.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      exchange.Levels(b.Bids),
		Asks:      exchange.Levels(b.Asks),
		Sequence:  b.SeqID,
		Timestamp: ts,
	}, nil
}
