package option

import (
	"time"

	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/metrics"
)

// ExchangeOptions 交易所配置选项（用于 Exchange 初始化）
type ExchangeOptions struct {
	APIKey     string
	SecretKey  string
	Passphrase string // 密码短语（OKX 等交易所需要）
	Sandbox    bool
	Proxy      string
	BaseURL    string
	StreamURL  string // WebSocket 地址，覆盖默认值
	Debug      bool

	// RateLimit 每个 RateWindow 内允许的请求数，0 表示使用交易所默认值
	RateLimit   int
	RateWindow  time.Duration
	GateTimeout time.Duration

	// RetryMax 传输错误和限频错误的最大重试次数，0 表示不重试
	RetryMax     int
	RetryInitial time.Duration

	// ClockSync 服务器时间同步间隔，0 表示只在创建时同步一次
	ClockSync time.Duration

	// PollInterval 无 WebSocket 实现的交易所轮询 REST 订单簿的间隔，默认 2s
	PollInterval time.Duration

	Logger  logger.Interface
	Metrics *metrics.Metrics

	Options map[string]interface{} // 其他自定义选项
}

// Option 配置选项函数类型（用于 Exchange 初始化）
type Option func(*ExchangeOptions)

// DefaultPollInterval 默认 REST 订单簿轮询间隔
const DefaultPollInterval = 2 * time.Second

// Apply 应用选项并返回结果
func Apply(opts ...Option) *ExchangeOptions {
	o := &ExchangeOptions{
		RateWindow:   time.Second,
		PollInterval: DefaultPollInterval,
		Options:      make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	return o
}

// WithAPIKey 设置 API Key
func WithAPIKey(apiKey string) Option {
	return func(opts *ExchangeOptions) {
		opts.APIKey = apiKey
	}
}

// WithSecretKey 设置 Secret Key
func WithSecretKey(secretKey string) Option {
	return func(opts *ExchangeOptions) {
		opts.SecretKey = secretKey
	}
}

// WithPassphrase 设置 Passphrase（用于 OKX 等需要 passphrase 的交易所）
func WithPassphrase(passphrase string) Option {
	return func(opts *ExchangeOptions) {
		opts.Passphrase = passphrase
	}
}

// WithSandbox 设置是否使用模拟盘
func WithSandbox(sandbox bool) Option {
	return func(opts *ExchangeOptions) {
		opts.Sandbox = sandbox
	}
}

// WithProxy 设置代理
func WithProxy(proxy string) Option {
	return func(opts *ExchangeOptions) {
		opts.Proxy = proxy
	}
}

// WithBaseURL 设置基础 URL
func WithBaseURL(baseURL string) Option {
	return func(opts *ExchangeOptions) {
		opts.BaseURL = baseURL
	}
}

// WithStreamURL 设置 WebSocket 地址
func WithStreamURL(streamURL string) Option {
	return func(opts *ExchangeOptions) {
		opts.StreamURL = streamURL
	}
}

// WithDebug 设置是否启用调试模式
func WithDebug(debug bool) Option {
	return func(opts *ExchangeOptions) {
		opts.Debug = debug
	}
}

// WithRateLimit 设置本地限频：每 window 最多 limit 个请求
func WithRateLimit(limit int, window time.Duration) Option {
	return func(opts *ExchangeOptions) {
		opts.RateLimit = limit
		opts.RateWindow = window
	}
}

// WithGateTimeout 设置等待限频许可的超时时间
func WithGateTimeout(timeout time.Duration) Option {
	return func(opts *ExchangeOptions) {
		opts.GateTimeout = timeout
	}
}

// WithRetry 设置可重试错误的重试次数与初始退避
func WithRetry(max int, initial time.Duration) Option {
	return func(opts *ExchangeOptions) {
		opts.RetryMax = max
		opts.RetryInitial = initial
	}
}

// WithClockSync 设置服务器时间同步间隔
func WithClockSync(interval time.Duration) Option {
	return func(opts *ExchangeOptions) {
		opts.ClockSync = interval
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Interface) Option {
	return func(opts *ExchangeOptions) {
		opts.Logger = l
	}
}

// WithMetrics 设置 Prometheus 指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *ExchangeOptions) {
		opts.Metrics = m
	}
}

// WithPollInterval 设置 REST 订单簿轮询间隔，不大于 0 时使用默认值
func WithPollInterval(interval time.Duration) Option {
	return func(opts *ExchangeOptions) {
		opts.PollInterval = interval
	}
}

// WithOption 设置自定义选项
func WithOption(key string, value interface{}) Option {
	return func(opts *ExchangeOptions) {
		if opts.Options == nil {
			opts.Options = make(map[string]interface{})
		}
		opts.Options[key] = value
	}
}
