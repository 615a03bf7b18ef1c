package bybit

import (
	"context"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/types"
)

// FetchMarkets 获取现货交易对
func (b *Bybit) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	req := dispatch.Get("/v5/market/instruments-info")
	req.Params.SetQuery("category", spotCategory)

	res, err := dispatch.Do[bybitList[bybitSymbol]](ctx, b.Dispatcher(), req)
	if err != nil {
		return nil, err
	}
	markets := make([]model.Market, 0, len(res.List))
	for _, s := range res.List {
		markets = append(markets, model.Market{
			ID:         s.Symbol,
			Symbol:     common.NormalizeSymbol(s.BaseCoin, s.QuoteCoin),
			Exchange:   bybitName,
			Base:       s.BaseCoin,
			Quote:      s.QuoteCoin,
			Type:       model.MarketTypeSpot,
			Active:     s.Status == "Trading",
			PriceStep:  s.PriceFilter.TickSize.Decimal,
			AmountStep: s.LotSizeFilter.BasePrecision.Decimal,
			MinAmount:  s.LotSizeFilter.MinOrderQty.Decimal,
			MaxAmount:  s.LotSizeFilter.MaxOrderQty.Decimal,
		})
	}
	return markets, nil
}

// LoadMarkets 加载市场信息
func (b *Bybit) LoadMarkets(ctx context.Context, reload bool) error {
	return b.Base.LoadMarkets(ctx, reload, b.FetchMarkets)
}

// FetchTicker 获取行情
func (b *Bybit) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := b.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	req := dispatch.Get("/v5/market/tickers")
	req.Params.SetQuery("category", spotCategory)
	req.Params.SetQuery("symbol", id)

	res, err := dispatch.Do[bybitList[bybitTicker]](ctx, b.Dispatcher(), req)
	if err != nil {
		return model.Ticker{}, err
	}
	if len(res.List) == 0 {
		return model.Ticker{}, types.NewExchangeError(bybitName, "", "empty ticker for "+id)
	}
	t := res.List[0]
	return model.Ticker{
		Symbol:      symbol,
		Bid:         t.Bid1Price.Decimal,
		BidSize:     t.Bid1Size.Decimal,
		Ask:         t.Ask1Price.Decimal,
		AskSize:     t.Ask1Size.Decimal,
		Last:        t.LastPrice.Decimal,
		Volume:      t.Volume24h.Decimal,
		QuoteVolume: t.Turnover24h.Decimal,
	}, nil
}

// FetchOrderBook 获取深度快照，现货最多 200 档
func (b *Bybit) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := b.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	limit := args.LimitOr(50)
	if limit > 200 {
		limit = 200
	}
	req := dispatch.Get("/v5/market/orderbook")
	req.Params.SetQuery("category", spotCategory)
	req.Params.SetQuery("symbol", id)
	req.Params.SetQuery("limit", limit)

	ob, err := dispatch.Do[bybitOrderBook](ctx, b.Dispatcher(), req)
	if err != nil {
		return orderbook.Update{}, err
	}
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      exchange.Levels(ob.Bids),
		Asks:      exchange.Levels(ob.Asks),
		Sequence:  ob.U,
		Timestamp: ob.Ts.Time,
	}, nil
}
