package option

// ExchangeArgsOptions 方法调用参数选项（用于 Exchange 方法调用）
type ExchangeArgsOptions struct {
	// Limit 限制返回数量，订单簿为每侧档位数
	Limit *int
	// TimeInForce 订单有效期（GTC/IOC/FOK，限价单使用，默认 GTC）
	TimeInForce *TimeInForce
	// PostOnly 只做 maker
	PostOnly *bool
}

// ArgsOption 方法调用参数选项函数类型
type ArgsOption func(*ExchangeArgsOptions)

// ApplyArgs 应用调用参数
func ApplyArgs(opts ...ArgsOption) *ExchangeArgsOptions {
	o := &ExchangeArgsOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLimit 设置限制返回数量
func WithLimit(limit int) ArgsOption {
	return func(opts *ExchangeArgsOptions) {
		opts.Limit = &limit
	}
}

// WithTimeInForce 设置订单有效期（GTC/IOC/FOK，所有交易所通用）
func WithTimeInForce(timeInForce TimeInForce) ArgsOption {
	return func(opts *ExchangeArgsOptions) {
		opts.TimeInForce = &timeInForce
	}
}

// WithPostOnly 设置只做 maker
func WithPostOnly(postOnly bool) ArgsOption {
	return func(opts *ExchangeArgsOptions) {
		opts.PostOnly = &postOnly
	}
}
