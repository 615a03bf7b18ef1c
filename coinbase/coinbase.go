// Package coinbase Coinbase Advanced Trade 现货 REST 适配器
package coinbase

import (
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
)

const (
	coinbaseName       = "coinbase"
	coinbaseBaseURL    = "https://api.coinbase.com"
	coinbaseSandboxURL = "https://api-sandbox.coinbase.com"
	brokeragePrefix    = "/api/v3/brokerage"
)

// Coinbase Coinbase 交易所实现。APIKey 为 CDP key 名称（organizations/.../apiKeys/...），
// SecretKey 为 PEM 格式的 EC 私钥
type Coinbase struct {
	*exchange.Base
	opts *option.ExchangeOptions
}

// NewCoinbase 创建 Coinbase 交易所实例
func NewCoinbase(opts ...option.Option) (*Coinbase, error) {
	o := option.Apply(opts...)
	p := NewProtocol(exchange.PickURL(o.BaseURL, o.Sandbox, coinbaseBaseURL, coinbaseSandboxURL))
	c := &Coinbase{opts: o}
	c.Base = exchange.NewBase(coinbaseName, exchange.NewDispatcher(p, o), toCoinbaseSymbol)
	return c, nil
}

// toCoinbaseSymbol BTC/USD -> BTC-USD
func toCoinbaseSymbol(symbol string) (string, error) {
	return common.JoinSymbol(symbol, "-")
}

var (
	_ exchange.Exchange     = (*Coinbase)(nil)
	_ exchange.MarketLoader = (*Coinbase)(nil)
	_ exchange.Trader       = (*Coinbase)(nil)
)
