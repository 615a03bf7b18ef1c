// Package exchange 定义统一的交易所接口以及各交易所适配器共用的基础实现
package exchange

import (
	"context"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
)

// Exchange 顶层交易所接口，所有适配器都实现
type Exchange interface {
	// Name 返回交易所名称
	Name() string

	// Dispatcher 返回该交易所实例的请求调度器
	Dispatcher() *dispatch.Dispatcher

	// FetchTicker 获取行情
	FetchTicker(ctx context.Context, symbol string) (model.Ticker, error)

	// FetchOrderBook 获取 REST 订单簿快照，Sequence 为交易所提供的更新 ID（没有则为 0）
	FetchOrderBook(ctx context.Context, symbol string, opts ...option.ArgsOption) (orderbook.Update, error)

	// GetMarket 从内存中获取市场信息
	GetMarket(symbol string) (model.Market, error)
}

// MarketLoader 支持拉取市场列表的交易所
type MarketLoader interface {
	// FetchMarkets 获取市场列表
	FetchMarkets(ctx context.Context) ([]model.Market, error)
	// LoadMarkets 加载市场信息到内存
	LoadMarkets(ctx context.Context, reload bool) error
}

// Trader 支持下单的交易所
type Trader interface {
	// CreateOrder 创建订单
	CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error)
	// CancelOrder 取消订单
	CancelOrder(ctx context.Context, symbol, orderID string) error
}

// Streamer 支持 WebSocket 行情的交易所
type Streamer interface {
	// StreamProtocol 返回 WebSocket 协议策略
	StreamProtocol() stream.Protocol
	// BookOptions 返回该交易所订单簿的重建规则（快照约定、序列号、REST 种子）
	BookOptions() orderbook.Options
}
