// Package bybit Bybit v5 现货适配器
package bybit

import (
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
)

const (
	bybitName       = "bybit"
	bybitBaseURL    = "https://api.bybit.com"
	bybitSandboxURL = "https://api-demo.bybit.com"

	// spotCategory v5 统一接口的产品类型
	spotCategory = "spot"
)

// Bybit Bybit 交易所实现
type Bybit struct {
	*exchange.Base
	opts *option.ExchangeOptions
}

// NewBybit 创建 Bybit 交易所实例
func NewBybit(opts ...option.Option) (*Bybit, error) {
	o := option.Apply(opts...)
	p := NewProtocol(exchange.PickURL(o.BaseURL, o.Sandbox, bybitBaseURL, bybitSandboxURL))
	b := &Bybit{opts: o}
	b.Base = exchange.NewBase(bybitName, exchange.NewDispatcher(p, o), toBybitSymbol)
	return b, nil
}

// toBybitSymbol BTC/USDT -> BTCUSDT
func toBybitSymbol(symbol string) (string, error) {
	return common.JoinSymbol(symbol, "")
}

var (
	_ exchange.Exchange     = (*Bybit)(nil)
	_ exchange.MarketLoader = (*Bybit)(nil)
	_ exchange.Trader       = (*Bybit)(nil)
)
