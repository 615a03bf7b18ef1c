package types

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ExDecimal 支持空字符串的 decimal.Decimal 类型
// 用于 JSON 反序列化时处理空字符串、null 以及数字/字符串两种写法
type ExDecimal struct {
	decimal.Decimal
}

// UnmarshalJSON 自定义 JSON 反序列化，支持空字符串
func (d *ExDecimal) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	if s == "" || s == "null" {
		d.Decimal = decimal.Zero
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return NewProtocolError("", err)
	}
	d.Decimal = v
	return nil
}

// ParseDecimal 解析交易所返回的价格/数量字符串，空字符串视为 0
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewProtocolError("", err)
	}
	return v, nil
}
