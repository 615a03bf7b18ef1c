package exchange

import "errors"

var (
	// ErrMarketNotFound 市场未找到
	ErrMarketNotFound = errors.New("market not found")
	// ErrInvalidOrderType 无效的订单类型
	ErrInvalidOrderType = errors.New("invalid order type")
	// ErrInvalidAmount 无效的下单数量
	ErrInvalidAmount = errors.New("invalid order amount")
)
