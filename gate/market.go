package gate

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
	"github.com/shopspring/decimal"
)

// FetchMarkets 获取现货交易对，精度位数转换为步长
func (g *Gate) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	pairs, err := dispatch.Do[[]gateCurrencyPair](ctx, g.Dispatcher(), dispatch.Get(gateAPIPrefix+"/spot/currency_pairs"))
	if err != nil {
		return nil, err
	}
	markets := make([]model.Market, 0, len(pairs))
	for _, p := range pairs {
		markets = append(markets, model.Market{
			ID:         p.ID,
			Symbol:     common.NormalizeSymbol(p.Base, p.Quote),
			Exchange:   gateName,
			Base:       p.Base,
			Quote:      p.Quote,
			Type:       model.MarketTypeSpot,
			Active:     p.TradeStatus == "tradable",
			PriceStep:  decimal.New(1, -p.Precision),
			AmountStep: decimal.New(1, -p.AmountPrecision),
			MinAmount:  p.MinBaseAmount.Decimal,
			MaxAmount:  p.MaxBaseAmount.Decimal,
		})
	}
	return markets, nil
}

// LoadMarkets 加载市场信息
func (g *Gate) LoadMarkets(ctx context.Context, reload bool) error {
	return g.Base.LoadMarkets(ctx, reload, g.FetchMarkets)
}

// FetchTicker 获取行情
func (g *Gate) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := g.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	req := dispatch.Get(gateAPIPrefix + "/spot/tickers")
	req.Params.SetQuery("currency_pair", id)

	items, err := dispatch.Do[[]gateTicker](ctx, g.Dispatcher(), req)
	if err != nil {
		return model.Ticker{}, err
	}
	if len(items) == 0 {
		return model.Ticker{}, types.NewExchangeError(gateName, "", "empty ticker for "+id)
	}
	t := items[0]
	return model.Ticker{
		Symbol:      symbol,
		Bid:         t.HighestBid.Decimal,
		BidSize:     t.HighestSize.Decimal,
		Ask:         t.LowestAsk.Decimal,
		AskSize:     t.LowestSize.Decimal,
		Last:        t.Last.Decimal,
		Volume:      t.BaseVolume.Decimal,
		QuoteVolume: t.QuoteVolume.Decimal,
		Timestamp:   time.Now(),
	}, nil
}

// FetchOrderBook 获取深度快照，with_id 返回的 id 作为序列号
func (g *Gate) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := g.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	req := dispatch.Get(gateAPIPrefix + "/spot/order_book")
	req.Params.SetQuery("currency_pair", id)
	req.Params.SetQuery("limit", args.LimitOr(100))
	req.Params.SetQuery("with_id", true)

	ob, err := dispatch.Do[gateOrderBook](ctx, g.Dispatcher(), req)
	if err != nil {
		return orderbook.Update{}, err
	}
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      exchange.Levels(ob.Bids),
		Asks:      exchange.Levels(ob.Asks),
		Sequence:  ob.ID,
		Timestamp: ob.Current.Time,
	}, nil
}
