// Package gate Gate.io v4 现货适配器
package gate

import (
	"strings"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
)

const (
	gateName       = "gate"
	gateBaseURL    = "https://api.gateio.ws"
	gateSandboxURL = "https://api-testnet.gateapi.io"

	// gateAPIPrefix 所有接口路径的前缀，签名串中需要包含
	gateAPIPrefix = "/api/v4"
)

// Gate Gate.io 交易所实现
type Gate struct {
	*exchange.Base
	opts *option.ExchangeOptions
}

// NewGate 创建 Gate 交易所实例
func NewGate(opts ...option.Option) (*Gate, error) {
	o := option.Apply(opts...)
	p := NewProtocol(exchange.PickURL(o.BaseURL, o.Sandbox, gateBaseURL, gateSandboxURL))
	g := &Gate{opts: o}
	g.Base = exchange.NewBase(gateName, exchange.NewDispatcher(p, o), toGateSymbol)
	return g, nil
}

// toGateSymbol BTC/USDT -> BTC_USDT
func toGateSymbol(symbol string) (string, error) {
	return common.JoinSymbol(symbol, "_")
}

// gateText 客户端订单ID必须以 "t-" 开头，总长不超过 28
func gateText(id string) string {
	if !strings.HasPrefix(id, "t-") {
		id = "t-" + id
	}
	if len(id) > 28 {
		id = id[:28]
	}
	return id
}

var (
	_ exchange.Exchange     = (*Gate)(nil)
	_ exchange.MarketLoader = (*Gate)(nil)
	_ exchange.Trader       = (*Gate)(nil)
)
