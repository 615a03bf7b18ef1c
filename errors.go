package exwire

import (
	"errors"

	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/types"
)

var (
	// ErrExchangeNotSupported 不支持的交易所
	ErrExchangeNotSupported = errors.New("exchange not supported")
	// ErrStreamingNotSupported 交易所没有 WebSocket 行情实现
	ErrStreamingNotSupported = errors.New("streaming not supported")
	// ErrTradingNotSupported 交易所没有下单实现
	ErrTradingNotSupported = errors.New("trading not supported")

	// ErrMarketNotFound 市场未找到
	ErrMarketNotFound = exchange.ErrMarketNotFound
	// ErrInvalidOrderType 无效的订单类型
	ErrInvalidOrderType = exchange.ErrInvalidOrderType
	// ErrAuthenticationRequired 认证失败或缺少密钥，与 errors.Is 配合使用
	ErrAuthenticationRequired = types.ErrAuth
	// ErrRateLimitExceeded 请求频率超限（本地限频或交易所返回）
	ErrRateLimitExceeded = types.ErrRateLimit
)
