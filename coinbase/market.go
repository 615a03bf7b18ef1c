package coinbase

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
	"golang.org/x/sync/errgroup"
)

// FetchMarkets 获取现货产品，使用无需鉴权的 market 接口
func (c *Coinbase) FetchMarkets(ctx context.Context) ([]model.Market, error) {
	req := dispatch.Get(brokeragePrefix + "/market/products")
	req.Params.SetQuery("product_type", "SPOT")
	res, err := dispatch.Do[coinbaseProducts](ctx, c.Dispatcher(), req)
	if err != nil {
		return nil, err
	}
	markets := make([]model.Market, 0, len(res.Products))
	for _, p := range res.Products {
		if p.ProductType != "" && p.ProductType != "SPOT" {
			continue
		}
		step := p.PriceIncrement.Decimal
		if step.IsZero() {
			step = p.QuoteIncrement.Decimal
		}
		markets = append(markets, model.Market{
			ID:         p.ProductID,
			Symbol:     common.NormalizeSymbol(p.BaseCurrencyID, p.QuoteCurrencyID),
			Exchange:   coinbaseName,
			Base:       p.BaseCurrencyID,
			Quote:      p.QuoteCurrencyID,
			Type:       model.MarketTypeSpot,
			Active:     p.Status == "online" && !p.TradingDisabled,
			PriceStep:  step,
			AmountStep: p.BaseIncrement.Decimal,
			MinAmount:  p.BaseMinSize.Decimal,
			MaxAmount:  p.BaseMaxSize.Decimal,
		})
	}
	return markets, nil
}

// LoadMarkets 加载市场信息
func (c *Coinbase) LoadMarkets(ctx context.Context, reload bool) error {
	return c.Base.LoadMarkets(ctx, reload, c.FetchMarkets)
}

func (c *Coinbase) productBook(ctx context.Context, id string, limit int) (coinbaseProductBook, error) {
	req := dispatch.Get(brokeragePrefix + "/market/product_book")
	req.Params.SetQuery("product_id", id)
	req.Params.SetQuery("limit", limit)
	return dispatch.Do[coinbaseProductBook](ctx, c.Dispatcher(), req)
}

// FetchTicker 最优买卖价取自 product_book，成交量取自 product 详情，两次请求并发
func (c *Coinbase) FetchTicker(ctx context.Context, symbol string) (model.Ticker, error) {
	id, err := c.MarketID(symbol)
	if err != nil {
		return model.Ticker{}, err
	}

	var (
		book    coinbaseProductBook
		product coinbaseProduct
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		book, err = c.productBook(gctx, id, 1)
		return err
	})
	g.Go(func() error {
		var err error
		product, err = dispatch.Do[coinbaseProduct](gctx, c.Dispatcher(),
			dispatch.Get(brokeragePrefix+"/market/products/"+url.PathEscape(id)))
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Ticker{}, err
	}

	t := model.Ticker{
		Symbol:      symbol,
		Last:        product.Price.Decimal,
		Volume:      product.Volume24h.Decimal,
		QuoteVolume: product.Volume24h.Decimal.Mul(product.Price.Decimal),
		Timestamp:   book.PriceBook.Time.Time,
	}
	if len(book.PriceBook.Bids) > 0 {
		t.Bid, t.BidSize = book.PriceBook.Bids[0].Price.Decimal, book.PriceBook.Bids[0].Size.Decimal
	}
	if len(book.PriceBook.Asks) > 0 {
		t.Ask, t.AskSize = book.PriceBook.Asks[0].Price.Decimal, book.PriceBook.Asks[0].Size.Decimal
	}
	if !book.Last.IsZero() {
		t.Last = book.Last.Decimal
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	return t, nil
}

func levels(in []coinbaseLevel) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(in))
	for _, l := range in {
		out = append(out, model.PriceLevel{Price: l.Price.Decimal, Amount: l.Size.Decimal})
	}
	return out
}

// FetchOrderBook 获取深度快照，没有序列号
func (c *Coinbase) FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error) {
	args := option.ApplyArgs(opts...)
	id, err := c.MarketID(symbol)
	if err != nil {
		return orderbook.Update{}, err
	}
	book, err := c.productBook(ctx, id, args.LimitOr(50))
	if err != nil {
		return orderbook.Update{}, err
	}
	if book.PriceBook.ProductID != "" && book.PriceBook.ProductID != id {
		return orderbook.Update{}, types.NewExchangeError(coinbaseName, "", "unexpected product "+book.PriceBook.ProductID)
	}
	ts := book.PriceBook.Time.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return orderbook.Update{
		Market:    symbol,
		Snapshot:  true,
		Bids:      levels(book.PriceBook.Bids),
		Asks:      levels(book.PriceBook.Asks),
		Timestamp: ts,
	}, nil
}
