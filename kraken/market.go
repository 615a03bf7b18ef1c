package kraken

import (
	"context"
	"sort"
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

// FetchMarkets 获取交易对，通用格式取自 wsname
func (k *Kraken) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	pairs, err := dispatch.Do[map[string]krakenAssetPair](ctx, k.Dispatcher(), dispatch.Get("/0/public/AssetPairs"))
	if err != nil {
		return nil, err
	}
	markets := make([]model.Market, 0, len(pairs))
	for _, p := range pairs {
		if p.WSName == "" {
			continue
		}
		symbol := fromWSName(p.WSName)
		m := model.Market{
			ID:         p.Altname,
			Symbol:     symbol,
			Exchange:   krakenName,
			Type:       model.MarketTypeSpot,
			Active:     p.Status == "" || p.Status == "online",
			PriceStep:  p.TickSize.Decimal,
			AmountStep: decimal.New(1, -p.LotDecimals),
			MinAmount:  p.OrderMin.Decimal,
		}
		if m.PriceStep.IsZero() {
			m.PriceStep = decimal.New(1, -p.PairDecimals)
		}
		m.Base, m.Quote, _ = common.ParseSymbol(symbol)
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Symbol < markets[j].Symbol })
	return markets, nil
}

// LoadMarkets 加载市场信息
func (k *Kraken) LoadMarkets(ctx context.Context, reload bool) error {
	return k.Base.LoadMarkets(ctx, reload, k.FetchMarkets)
}

// firstResult 结果以交易所内部交易对名为键（如 XXBTZUSD），单交易对查询只取一项
func firstResult[T any](m map[string]T) (T, bool) {
	for _, v := range m {
		return v, true
	}
	var zero T
	return zero, false
}

// FetchTicker 获取行情
func (k *Kraken) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := k.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	req := dispatch.Get("/0/public/Ticker")
	req.Params.SetQuery("pair", id)

	res, err := dispatch.Do[map[string]krakenTicker](ctx, k.Dispatcher(), req)
	if err != nil {
		return model.Ticker{}, err
	}
	t, ok := firstResult(res)
	if !ok {
		return model.Ticker{}, types.NewExchangeError(krakenName, "", "empty ticker for "+id)
	}
	tk := model.Ticker{Symbol: symbol, Timestamp: time.Now()}
	if len(t.A) >= 3 {
		tk.Ask, tk.AskSize = t.A[0].Decimal, t.A[2].Decimal
	}
	if len(t.B) >= 3 {
		tk.Bid, tk.BidSize = t.B[0].Decimal, t.B[2].Decimal
	}
	if len(t.C) >= 1 {
		tk.Last = t.C[0].Decimal
	}
	if len(t.V) >= 2 {
		tk.Volume = t.V[1].Decimal
		if len(t.P) >= 2 {
			// p[1] 为 24 小时成交均价
			tk.QuoteVolume = t.V[1].Decimal.Mul(t.P[1].Decimal)
		}
	}
	return tk, nil
}

// FetchOrderBook 获取深度快照，REST 深度没有序列号
func (k *Kraken) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := k.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	req := dispatch.Get("/0/public/Depth")
	req.Params.SetQuery("pair", id)
	req.Params.SetQuery("count", args.LimitOr(100))

	res, err := dispatch.Do[map[string]krakenDepth](ctx, k.Dispatcher(), req)
	if err != nil {
		return orderbook.Update{}, err
	}
	d, ok := firstResult(res)
	if !ok {
		return orderbook.Update{}, types.NewExchangeError(krakenName, "", "empty book for "+id)
	}
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      exchange.Levels(d.Bids),
		Asks:      exchange.Levels(d.Asks),
		Timestamp: time.Now(),
	}, nil
}
