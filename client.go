package exwire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
	"golang.org/x/sync/errgroup"
)

// BookSink 接收定期持久化的订单簿视图，例如 cache.SnapshotStore.Save 或 sink.KafkaPublisher.Publish
type BookSink func(ctx context.Context, v model.OrderBookView) error

// Client 在交易所适配器之上组合订单簿引擎与行情流。
// 有 WebSocket 实现的交易所由多路复用器驱动订单簿，其余交易所按 PollInterval 轮询 REST 快照
type Client struct {
	exchange.Exchange

	opts   *option.ExchangeOptions
	log    logger.Interface
	engine *orderbook.Engine
	mux    *stream.Multiplexer

	mu      sync.RWMutex
	polled  map[string]int
	tickers map[string][]func(model.Ticker)
	trades  map[string][]func([]model.Trade)
}

// NewClient 创建交易所客户端
func NewClient(name string, opts ...option.Option) (*Client, error) {
	ex, err := NewExchange(name, opts...)
	if err != nil {
		return nil, err
	}
	return newClient(ex, option.Apply(opts...)), nil
}

func newClient(ex exchange.Exchange, o *option.ExchangeOptions) *Client {
	c := &Client{
		Exchange: ex,
		opts:     o,
		log:      o.Logger.WithFields(logger.NewField("exchange", ex.Name())),
		polled:   make(map[string]int),
		tickers:  make(map[string][]func(model.Ticker)),
		trades:   make(map[string][]func([]model.Trade)),
	}

	bookOpts := orderbook.Options{Exchange: ex.Name(), Convention: orderbook.SnapshotThenDeltas}
	streamer, streaming := ex.(exchange.Streamer)
	if streaming {
		bookOpts = streamer.BookOptions()
	}
	bookOpts.Logger = c.log
	if o.Metrics != nil {
		bookOpts.Recorder = o.Metrics
	}
	c.engine = orderbook.NewEngine(bookOpts)

	if streaming {
		so := stream.Options{
			Protocol: streamer.StreamProtocol(),
			Engine:   c.engine,
			OnTicker: c.onTicker,
			OnTrades: c.onTrades,
			Logger:   c.log,
		}
		if o.Metrics != nil {
			so.Recorder = o.Metrics
		}
		c.mux = stream.New(so)
	}
	return c
}

// Streaming 是否通过 WebSocket 接收行情
func (c *Client) Streaming() bool { return c.mux != nil }

// Engine 返回订单簿引擎
func (c *Client) Engine() *orderbook.Engine { return c.engine }

// Trader 返回下单接口
func (c *Client) Trader() (exchange.Trader, error) {
	t, ok := c.Exchange.(exchange.Trader)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTradingNotSupported, c.Name())
	}
	return t, nil
}

// Start 加载市场信息，有密钥时同步一次服务器时间
func (c *Client) Start(ctx context.Context) error {
	if loader, ok := c.Exchange.(exchange.MarketLoader); ok {
		if err := loader.LoadMarkets(ctx, false); err != nil {
			return fmt.Errorf("load markets: %w", err)
		}
	}
	if c.Dispatcher().HasCredentials() {
		if err := c.Dispatcher().SyncClock(ctx); err != nil {
			c.log.Warn("clock sync failed, using local time", logger.NewField("error", err.Error()))
		}
	}
	return nil
}

// WatchOrderBook 订阅订单簿，返回只保留最新视图的订阅。depth 为 0 表示全部档位。
// 之前 Unwatch 关闭的订单簿会重新打开
func (c *Client) WatchOrderBook(market string, depth int) (*orderbook.Subscription, error) {
	c.engine.Open(market)
	sub := c.engine.Subscribe(market, depth)
	if c.mux == nil {
		c.mu.Lock()
		c.polled[market] = depth
		c.mu.Unlock()
		return sub, nil
	}
	if err := c.mux.Subscribe(stream.Topic{Market: market, Kind: stream.KindBook}); err != nil {
		sub.Close()
		return nil, err
	}
	return sub, nil
}

// WatchTicker 订阅行情，fn 在读协程中调用，不能阻塞
func (c *Client) WatchTicker(market string, fn func(model.Ticker)) error {
	if c.mux == nil {
		return fmt.Errorf("%w: %s", ErrStreamingNotSupported, c.Name())
	}
	c.mu.Lock()
	c.tickers[market] = append(c.tickers[market], fn)
	c.mu.Unlock()
	return c.mux.Subscribe(stream.Topic{Market: market, Kind: stream.KindTicker})
}

// WatchTrades 订阅成交，fn 在读协程中调用，不能阻塞
func (c *Client) WatchTrades(market string, fn func([]model.Trade)) error {
	if c.mux == nil {
		return fmt.Errorf("%w: %s", ErrStreamingNotSupported, c.Name())
	}
	c.mu.Lock()
	c.trades[market] = append(c.trades[market], fn)
	c.mu.Unlock()
	return c.mux.Subscribe(stream.Topic{Market: market, Kind: stream.KindTrades})
}

// Unwatch 取消该市场的全部订阅并关闭其订单簿
func (c *Client) Unwatch(market string) error {
	c.mu.Lock()
	delete(c.polled, market)
	delete(c.tickers, market)
	delete(c.trades, market)
	c.mu.Unlock()

	if c.mux == nil {
		c.engine.Close(market)
		return nil
	}
	return c.mux.Unsubscribe(
		stream.Topic{Market: market, Kind: stream.KindBook},
		stream.Topic{Market: market, Kind: stream.KindTicker},
		stream.Topic{Market: market, Kind: stream.KindTrades},
	)
}

// OrderBook 返回当前订单簿视图及状态
func (c *Client) OrderBook(market string, depth int) (model.OrderBookView, orderbook.State, bool) {
	return c.engine.Snapshot(market, depth)
}

// Run 运行行情循环直到 ctx 结束或客户端关闭
func (c *Client) Run(ctx context.Context) error {
	if c.opts.ClockSync > 0 && c.Dispatcher().HasCredentials() {
		c.Dispatcher().StartClockSync(ctx, c.opts.ClockSync)
	}
	if c.mux != nil {
		return c.mux.Run(ctx)
	}
	return c.poll(ctx)
}

func (c *Client) poll(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		c.refresh(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// refresh 并发拉取所有轮询中的订单簿快照
func (c *Client) refresh(ctx context.Context) {
	c.mu.RLock()
	markets := make(map[string]int, len(c.polled))
	for m, d := range c.polled {
		markets[m] = d
	}
	c.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for market, depth := range markets {
		g.Go(func() error {
			var args []option.ArgsOption
			if depth > 0 {
				args = append(args, option.WithLimit(depth))
			}
			u, err := c.FetchOrderBook(gctx, market, args...)
			if err != nil {
				if ctx.Err() == nil {
					c.engine.MarkStale(market, err)
				}
				return nil
			}
			c.mu.RLock()
			_, watched := c.polled[market]
			c.mu.RUnlock()
			if !watched {
				// 请求期间被 Unwatch
				return nil
			}
			u.Market = market
			u.Snapshot = true
			c.engine.Apply(u)
			return nil
		})
	}
	_ = g.Wait()
}

// PersistBooks 每个 interval 把有变化的 Live 订单簿写入 sinks，直到 ctx 结束。
// 单个 sink 失败只记录日志
func (c *Client) PersistBooks(ctx context.Context, interval time.Duration, depth int, sinks ...BookSink) {
	if len(sinks) == 0 || interval <= 0 {
		return
	}
	last := make(map[string]time.Time)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, market := range c.engine.Markets() {
			v, state, ok := c.engine.Snapshot(market, depth)
			if !ok || state != orderbook.Live {
				continue
			}
			if prev, seen := last[market]; seen && prev.Equal(v.Timestamp) {
				continue
			}
			last[market] = v.Timestamp
			for _, s := range sinks {
				if err := s(ctx, v); err != nil && ctx.Err() == nil {
					c.log.Error(err, logger.NewField("market", market))
				}
			}
		}
	}
}

// Close 关闭行情连接和所有订单簿
func (c *Client) Close() error {
	var err error
	if c.mux != nil {
		err = c.mux.Close()
	}
	c.engine.CloseAll()
	return err
}

func (c *Client) onTicker(t model.Ticker) {
	c.mu.RLock()
	fns := c.tickers[t.Symbol]
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(t)
	}
}

func (c *Client) onTrades(market string, trades []model.Trade) {
	c.mu.RLock()
	fns := c.trades[market]
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(trades)
	}
}
