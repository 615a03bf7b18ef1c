// Package bitfinex Bitfinex v2 现货适配器：REST 行情与下单、按频道ID寻址的 WebSocket
package bitfinex

import (
	"strings"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
)

const (
	bitfinexName = "bitfinex"
	// 认证接口与公共接口使用不同域名
	bitfinexAuthURL   = "https://api.bitfinex.com"
	bitfinexPublicURL = "https://api-pub.bitfinex.com"
	bitfinexStreamURL = "wss://api-pub.bitfinex.com/ws/2"
)

// Bitfinex Bitfinex 交易所实现
type Bitfinex struct {
	*exchange.Base
	opts      *option.ExchangeOptions
	publicURL string
	stream    *StreamProtocol
}

// NewBitfinex 创建 Bitfinex 交易所实例。设置 BaseURL 时公共与认证接口都使用该地址
func NewBitfinex(opts ...option.Option) (*Bitfinex, error) {
	o := option.Apply(opts...)
	p := NewProtocol(exchange.PickURL(o.BaseURL, false, bitfinexAuthURL, ""))
	x := &Bitfinex{
		opts:      o,
		publicURL: exchange.PickURL(o.BaseURL, false, bitfinexPublicURL, ""),
		stream:    NewStreamProtocol(exchange.PickURL(o.StreamURL, false, bitfinexStreamURL, "")),
	}
	x.Base = exchange.NewBase(bitfinexName, exchange.NewDispatcher(p, o), toBitfinexSymbol)
	return x, nil
}

// StreamProtocol 返回 WebSocket 协议
func (x *Bitfinex) StreamProtocol() stream.Protocol {
	return x.stream
}

// BookOptions 订阅后先推送快照；默认不带序列号，引擎按到达顺序应用
func (x *Bitfinex) BookOptions() orderbook.Options {
	return orderbook.Options{
		Exchange:   bitfinexName,
		Convention: orderbook.SnapshotThenDeltas,
		Logger:     x.opts.Logger,
	}
}

// Bitfinex 的币种代码与通用代码不同的部分
var (
	toBitfinexCurrency = map[string]string{"USDT": "UST", "USDC": "UDC", "DASH": "DSH"}
	fromBitfinexCode   = map[string]string{"UST": "USDT", "UDC": "USDC", "DSH": "DASH"}
)

func commonCurrency(code string) string {
	if c, ok := fromBitfinexCode[code]; ok {
		return c
	}
	return code
}

// toBitfinexSymbol BTC/USDT -> tBTCUST，任一币种超过 3 位时用冒号分隔 (tDOGE:USD)
func toBitfinexSymbol(symbol string) (string, error) {
	base, quote, err := common.ParseSymbol(symbol)
	if err != nil {
		return "", err
	}
	if c, ok := toBitfinexCurrency[base]; ok {
		base = c
	}
	if c, ok := toBitfinexCurrency[quote]; ok {
		quote = c
	}
	if len(base) > 3 || len(quote) > 3 {
		return "t" + base + ":" + quote, nil
	}
	return "t" + base + quote, nil
}

// fromBitfinexSymbol tBTCUST / BTCUST / DOGE:USD -> BTC/USDT
func fromBitfinexSymbol(id string) string {
	id = strings.TrimPrefix(id, "t")
	if base, quote, ok := strings.Cut(id, ":"); ok {
		return common.NormalizeSymbol(commonCurrency(base), commonCurrency(quote))
	}
	if len(id) == 6 {
		return common.NormalizeSymbol(commonCurrency(id[:3]), commonCurrency(id[3:]))
	}
	return id
}

var (
	_ exchange.Exchange     = (*Bitfinex)(nil)
	_ exchange.MarketLoader = (*Bitfinex)(nil)
	_ exchange.Trader       = (*Bitfinex)(nil)
	_ exchange.Streamer     = (*Bitfinex)(nil)
)
