// Package exwire 统一的加密货币交易所客户端：REST 请求调度、订单簿重建与 WebSocket 行情多路复用
package exwire

import (
	"github.com/lemconn/exwire/binance"
	"github.com/lemconn/exwire/bitfinex"
	"github.com/lemconn/exwire/bybit"
	"github.com/lemconn/exwire/coinbase"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/gate"
	"github.com/lemconn/exwire/kraken"
	"github.com/lemconn/exwire/okx"
	"github.com/lemconn/exwire/option"
)

// 交易所名称常量
const (
	ExchangeBinance  = "binance"  // Binance 交易所
	ExchangeOKX      = "okx"      // OKX 交易所
	ExchangeBybit    = "bybit"    // Bybit 交易所
	ExchangeGate     = "gate"     // Gate 交易所
	ExchangeKraken   = "kraken"   // Kraken 交易所
	ExchangeBitfinex = "bitfinex" // Bitfinex 交易所
	ExchangeCoinbase = "coinbase" // Coinbase Advanced Trade
)

// init 初始化函数，注册所有支持的交易所
func init() {
	Register(ExchangeBinance, func(opts ...option.Option) (exchange.Exchange, error) {
		return binance.NewBinance(opts...)
	})
	Register(ExchangeOKX, func(opts ...option.Option) (exchange.Exchange, error) {
		return okx.NewOKX(opts...)
	})
	Register(ExchangeBybit, func(opts ...option.Option) (exchange.Exchange, error) {
		return bybit.NewBybit(opts...)
	})
	Register(ExchangeGate, func(opts ...option.Option) (exchange.Exchange, error) {
		return gate.NewGate(opts...)
	})
	Register(ExchangeKraken, func(opts ...option.Option) (exchange.Exchange, error) {
		return kraken.NewKraken(opts...)
	})
	Register(ExchangeBitfinex, func(opts ...option.Option) (exchange.Exchange, error) {
		return bitfinex.NewBitfinex(opts...)
	})
	Register(ExchangeCoinbase, func(opts ...option.Option) (exchange.Exchange, error) {
		return coinbase.NewCoinbase(opts...)
	})
}
