package common

import (
	"fmt"
	"strings"
)

// NormalizeSymbol 标准化交易对格式为 BASE/QUOTE (如 BTC/USDT)
func NormalizeSymbol(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}

// ParseSymbol 解析标准化交易对 (BTC/USDT -> base, quote)
func ParseSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid symbol format: %s, expected BASE/QUOTE", symbol)
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), nil
}

// JoinSymbol 用交易所分隔符拼接 (BTC/USDT, "-" -> BTC-USDT)
func JoinSymbol(symbol, sep string) (string, error) {
	base, quote, err := ParseSymbol(symbol)
	if err != nil {
		return "", err
	}
	return base + sep + quote, nil
}

// SplitSymbol 按交易所分隔符拆分并标准化 (BTC-USDT, "-" -> BTC/USDT)
func SplitSymbol(id, sep string) string {
	parts := strings.Split(id, sep)
	if len(parts) == 2 {
		return NormalizeSymbol(parts[0], parts[1])
	}
	return id
}

// SplitConcatSymbol 拆分无分隔符的交易所ID (BTCUSDT -> BTC/USDT)，按已知计价货币后缀匹配
func SplitConcatSymbol(id string, quotes ...string) string {
	upper := strings.ToUpper(id)
	for _, q := range quotes {
		if strings.HasSuffix(upper, q) && len(upper) > len(q) {
			return NormalizeSymbol(upper[:len(upper)-len(q)], q)
		}
	}
	return id
}
