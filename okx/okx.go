// Package okx OKX 现货适配器
package okx

import (
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
)

const (
	okxName      = "okx"
	okxBaseURL   = "https://www.okx.com"
	okxStreamURL = "wss://ws.okx.com:8443/ws/v5/public"
	// 模拟盘使用同一个 REST 域名，通过 x-simulated-trading 请求头区分
	okxSandboxStreamURL = "wss://wspap.okx.com:8443/ws/v5/public"

	// OptionTickByTick 使用需要登录的逐笔深度频道 books50-l2-tbt
	OptionTickByTick = "okx.tbt"
)

// OKX OKX 交易所实现
type OKX struct {
	*exchange.Base
	opts   *option.ExchangeOptions
	stream stream.Protocol
}

// NewOKX 创建 OKX 交易所实例
func NewOKX(opts ...option.Option) (*OKX, error) {
	o := option.Apply(opts...)

	streamURL := exchange.PickURL(o.StreamURL, o.Sandbox, okxStreamURL, okxSandboxStreamURL)

	x := &OKX{opts: o}
	p := NewProtocol(exchange.PickURL(o.BaseURL, false, okxBaseURL, ""), o.Sandbox)
	x.Base = exchange.NewBase(okxName, exchange.NewDispatcher(p, o), toOKXSymbol)

	sp := NewStreamProtocol(streamURL)
	if tbt, _ := o.Options[OptionTickByTick].(bool); tbt {
		x.stream = NewAuthStreamProtocol(sp, o.APIKey, o.SecretKey, o.Passphrase)
	} else {
		x.stream = sp
	}
	return x, nil
}

// StreamProtocol 返回 WebSocket 协议
func (x *OKX) StreamProtocol() stream.Protocol {
	return x.stream
}

// BookOptions OKX 订阅后先推送全量快照，之后推送带 seqId/prevSeqId 的增量
func (x *OKX) BookOptions() orderbook.Options {
	return orderbook.Options{
		Exchange:   okxName,
		Convention: orderbook.SnapshotThenDeltas,
		Logger:     x.opts.Logger,
	}
}

// toOKXSymbol BTC/USDT -> BTC-USDT
func toOKXSymbol(symbol string) (string, error) {
	return common.JoinSymbol(symbol, "-")
}

// fromOKXSymbol BTC-USDT -> BTC/USDT
func fromOKXSymbol(id string) string {
	return common.SplitSymbol(id, "-")
}

var (
	_ exchange.Exchange     = (*OKX)(nil)
	_ exchange.MarketLoader = (*OKX)(nil)
	_ exchange.Trader       = (*OKX)(nil)
	_ exchange.Streamer     = (*OKX)(nil)
)
