package option

import "strings"

// TimeInForce 限价单有效期，统一使用大写形式
type TimeInForce string

const (
	GTC TimeInForce = "GTC" // 一直有效直到成交或撤单
	IOC TimeInForce = "IOC" // 立即成交，剩余部分撤销
	FOK TimeInForce = "FOK" // 全部立即成交，否则整单撤销
)

// Upper 交易所要求大写时使用（Binance、Bybit、Kraken）
func (t TimeInForce) Upper() string { return strings.ToUpper(string(t)) }

// Lower 交易所要求小写时使用（Gate）
func (t TimeInForce) Lower() string { return strings.ToLower(string(t)) }

// IsGTC 未指定或 GTC
func (t TimeInForce) IsGTC() bool { return t == "" || strings.EqualFold(string(t), string(GTC)) }
