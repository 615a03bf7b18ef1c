package binance

import (
	"context"
	"time"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
)

// FetchMarkets 获取现货市场列表
func (b *Binance) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	info, err := dispatch.Do[binanceExchangeInfo](ctx, b.Dispatcher(), dispatch.Get("/api/v3/exchangeInfo"))
	if err != nil {
		return nil, err
	}

	markets := make([]model.Market, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		market := model.Market{
			ID:       s.Symbol,
			Symbol:   common.NormalizeSymbol(s.BaseAsset, s.QuoteAsset),
			Exchange: binanceName,
			Base:     s.BaseAsset,
			Quote:    s.QuoteAsset,
			Type:     model.MarketTypeSpot,
			Active:   s.Status == "TRADING",
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				market.AmountStep = f.StepSize.Decimal
				market.MinAmount = f.MinQty.Decimal
				market.MaxAmount = f.MaxQty.Decimal
			case "PRICE_FILTER":
				market.PriceStep = f.TickSize.Decimal
			}
		}
		markets = append(markets, market)
	}
	return markets, nil
}

// LoadMarkets 加载市场信息
func (b *Binance) LoadMarkets(ctx context.Context, reload bool) error {
	return b.Base.LoadMarkets(ctx, reload, b.FetchMarkets)
}

// FetchTicker 获取24小时行情
func (b *Binance) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := b.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	req := dispatch.Get("/api/v3/ticker/24hr")
	req.Params.SetQuery("symbol", id)

	data, err := dispatch.Do[binanceTicker](ctx, b.Dispatcher(), req)
	if err != nil {
		return model.Ticker{}, err
	}
	return model.Ticker{
		Symbol:      symbol,
		Bid:         data.BidPrice.Decimal,
		BidSize:     data.BidQty.Decimal,
		Ask:         data.AskPrice.Decimal,
		AskSize:     data.AskQty.Decimal,
		Last:        data.LastPrice.Decimal,
		Volume:      data.Volume.Decimal,
		QuoteVolume: data.QuoteVolume.Decimal,
		Timestamp:   data.CloseTime.Time,
	}, nil
}

// FetchOrderBook 获取深度快照，Sequence 为 lastUpdateId
func (b *Binance) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := b.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	req := dispatch.Get("/api/v3/depth")
	req.Params.SetQuery("symbol", id)
	req.Params.SetQuery("limit", args.LimitOr(100))

	data, err := dispatch.Do[binanceDepth](ctx, b.Dispatcher(), req)
	if err != nil {
		return orderbook.Update{}, err
	}
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      exchange.Levels(data.Bids),
		Asks:      exchange.Levels(data.Asks),
		Sequence:  data.LastUpdateID,
		Timestamp: time.Now(),
	}, nil
}
