// Package binance Binance 现货适配器：REST 签名协议、行情、下单以及深度增量流
package binance

import (
	"context"
	"strings"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
)

const (
	binanceName             = "binance"
	binanceBaseURL          = "https://api.binance.com"
	binanceSandboxURL       = "https://demo-api.binance.com"
	binanceStreamURL        = "wss://stream.binance.com:9443/ws"
	binanceSandboxStreamURL = "wss://demo-stream.binance.com/ws"
)

// Binance Binance 交易所实现
type Binance struct {
	*exchange.Base
	opts     *option.ExchangeOptions
	protocol *Protocol
	stream   *StreamProtocol
}

// NewBinance 创建 Binance 交易所实例
func NewBinance(opts ...option.Option) (*Binance, error) {
	o := option.Apply(opts...)

	p := NewProtocol(exchange.PickURL(o.BaseURL, o.Sandbox, binanceBaseURL, binanceSandboxURL))
	streamURL := exchange.PickURL(o.StreamURL, o.Sandbox, binanceStreamURL, binanceSandboxStreamURL)
	b := &Binance{
		opts:     o,
		protocol: p,
		stream:   NewStreamProtocol(streamURL),
	}
	b.Base = exchange.NewBase(binanceName, exchange.NewDispatcher(p, o), toBinanceSymbol)
	return b, nil
}

// StreamProtocol 返回 WebSocket 协议
func (b *Binance) StreamProtocol() stream.Protocol {
	return b.stream
}

// BookOptions Binance 深度流只推送增量，需要用 REST 快照做种子，
// 增量携带 U/u 序列区间
func (b *Binance) BookOptions() orderbook.Options {
	return orderbook.Options{
		Exchange:   binanceName,
		Convention: orderbook.DeltasOnly,
		Seeder: orderbook.SeederFunc(func(ctx context.Context, market string) (orderbook.Update, error) {
			return b.FetchOrderBook(ctx, market, option.WithLimit(1000))
		}),
		Logger: b.opts.Logger,
	}
}

// toBinanceSymbol BTC/USDT -> BTCUSDT
func toBinanceSymbol(symbol string) (string, error) {
	return common.JoinSymbol(symbol, "")
}

// fromBinanceSymbol BTCUSDT -> BTC/USDT，按常见计价货币拆分
func fromBinanceSymbol(id string) string {
	return common.SplitConcatSymbol(id, "USDT", "USDC", "FDUSD", "BUSD", "TUSD", "BTC", "ETH", "BNB", "EUR", "TRY")
}

// streamName BTC/USDT -> btcusdt
func streamName(symbol string) (string, error) {
	id, err := toBinanceSymbol(symbol)
	if err != nil {
		return "", err
	}
	return strings.ToLower(id), nil
}

var (
	_ exchange.Exchange     = (*Binance)(nil)
	_ exchange.MarketLoader = (*Binance)(nil)
	_ exchange.Trader       = (*Binance)(nil)
	_ exchange.Streamer     = (*Binance)(nil)
)
