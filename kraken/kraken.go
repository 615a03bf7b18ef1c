// Package kraken Kraken 现货 REST 适配器
package kraken

import (
	"strings"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
)

const (
	krakenName    = "kraken"
	krakenBaseURL = "https://api.kraken.com"
)

// Kraken Kraken 交易所实现，没有现货模拟盘
type Kraken struct {
	*exchange.Base
	opts *option.ExchangeOptions
}

// NewKraken 创建 Kraken 交易所实例
func NewKraken(opts ...option.Option) (*Kraken, error) {
	o := option.Apply(opts...)
	p := NewProtocol(exchange.PickURL(o.BaseURL, false, krakenBaseURL, ""))
	k := &Kraken{opts: o}
	k.Base = exchange.NewBase(krakenName, exchange.NewDispatcher(p, o), toKrakenSymbol)
	return k, nil
}

// Kraken 的币种代码与通用代码不同的部分
var (
	toKrakenCurrency = map[string]string{"BTC": "XBT", "DOGE": "XDG"}
	fromKrakenCode   = map[string]string{"XBT": "BTC", "XDG": "DOGE"}
)

// commonCurrency XBT -> BTC
func commonCurrency(code string) string {
	code = strings.ToUpper(code)
	if c, ok := fromKrakenCode[code]; ok {
		return c
	}
	return code
}

// toKrakenSymbol BTC/USD -> XBTUSD
func toKrakenSymbol(symbol string) (string, error) {
	base, quote, err := common.ParseSymbol(symbol)
	if err != nil {
		return "", err
	}
	if c, ok := toKrakenCurrency[base]; ok {
		base = c
	}
	if c, ok := toKrakenCurrency[quote]; ok {
		quote = c
	}
	return base + quote, nil
}

// fromWSName XBT/USD -> BTC/USD
func fromWSName(wsname string) string {
	base, quote, ok := strings.Cut(wsname, "/")
	if !ok {
		return wsname
	}
	return common.NormalizeSymbol(commonCurrency(base), commonCurrency(quote))
}

var (
	_ exchange.Exchange     = (*Kraken)(nil)
	_ exchange.MarketLoader = (*Kraken)(nil)
	_ exchange.Trader       = (*Kraken)(nil)
)
