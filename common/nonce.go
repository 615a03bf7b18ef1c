package common

import (
	"strconv"
	"sync"
	"time"
)

// NonceStyle nonce 生成方式，由交易所配置决定
type NonceStyle int

const (
	// NonceNone 不需要 nonce
	NonceNone NonceStyle = iota
	// NonceUnixSeconds unix 秒
	NonceUnixSeconds
	// NonceUnixMillis unix 毫秒
	NonceUnixMillis
	// NonceUnixMillisString unix 毫秒，以字符串形式发送
	NonceUnixMillisString
	// NonceUnixMicros unix 微秒
	NonceUnixMicros
	// NonceExpires 请求过期时间（unix 秒），当前时间加上过期窗口
	NonceExpires
)

// Nonce 一次签名使用的 nonce
type Nonce struct {
	Value int64
	Style NonceStyle
}

// String 十进制字符串
func (n Nonce) String() string {
	return strconv.FormatInt(n.Value, 10)
}

// Any 按风格返回发送给交易所的值（字符串风格返回 string，其余返回 int64）
func (n Nonce) Any() any {
	if n.Style == NonceUnixMillisString {
		return n.String()
	}
	return n.Value
}

// NonceProvider 严格递增的 nonce 生成器，并发安全。
// 时钟回拨或同一时钟刻度内多次调用时退化为上一个值加一。
type NonceProvider struct {
	mu     sync.Mutex
	style  NonceStyle
	last   int64
	offset time.Duration
	expiry time.Duration
	now    func() time.Time
}

// NonceOption NonceProvider 配置项
type NonceOption func(*NonceProvider)

// WithNonceExpiry 设置 NonceExpires 风格的过期窗口，默认 60 秒
func WithNonceExpiry(d time.Duration) NonceOption {
	return func(p *NonceProvider) { p.expiry = d }
}

// WithNonceClock 替换时钟（测试用）
func WithNonceClock(now func() time.Time) NonceOption {
	return func(p *NonceProvider) { p.now = now }
}

// WithNonceOffset 设置固定的服务器时间偏移
func WithNonceOffset(d time.Duration) NonceOption {
	return func(p *NonceProvider) { p.offset = d }
}

// NewNonceProvider 创建 nonce 生成器
func NewNonceProvider(style NonceStyle, opts ...NonceOption) *NonceProvider {
	p := &NonceProvider{
		style:  style,
		expiry: time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Style 返回配置的风格
func (p *NonceProvider) Style() NonceStyle {
	return p.style
}

// Next 返回下一个 nonce，保证大于此前返回的任何值
func (p *NonceProvider) Next() Nonce {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.now().Add(p.offset)
	var v int64
	switch p.style {
	case NonceUnixSeconds:
		v = t.Unix()
	case NonceUnixMicros:
		v = t.UnixMicro()
	case NonceExpires:
		v = t.Add(p.expiry).Unix()
	default:
		v = t.UnixMilli()
	}
	if v <= p.last {
		v = p.last + 1
	}
	p.last = v
	return Nonce{Value: v, Style: p.style}
}

// SetOffset 设置本地时钟到服务器时钟的偏移
func (p *NonceProvider) SetOffset(d time.Duration) {
	p.mu.Lock()
	p.offset = d
	p.mu.Unlock()
}

// Offset 当前偏移
func (p *NonceProvider) Offset() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// ObserveServerTime 根据服务器返回的时间更新偏移
func (p *NonceProvider) ObserveServerTime(server time.Time) {
	p.mu.Lock()
	p.offset = server.Sub(p.now())
	p.mu.Unlock()
}
