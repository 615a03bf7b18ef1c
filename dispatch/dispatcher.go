// Package dispatch 通过共享的限频器、nonce 生成器和交易所签名协议发送公共与私有 REST 请求
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/types"
)

// Protocol 交易所的 REST 协议：请求地址、签名方式以及响应信封的解析
type Protocol interface {
	Name() string
	BaseURL() string
	NonceStyle() common.NonceStyle
	// Sign 为 call 构造待签名串并签名，结果写入请求头或参数
	Sign(call *Call, creds Credentials, nonce common.Nonce) error
	// CheckResponse 响应体或状态码表示失败时返回带类型的错误，否则返回 nil
	CheckResponse(status int, body []byte) error
}

// Unwrapper 数据包在信封里的协议实现，例如 {"code":"0","data":...}
type Unwrapper interface {
	Unwrap(body []byte) ([]byte, error)
}

// ClockSource 提供服务器时间的协议实现
type ClockSource interface {
	ServerTimeRequest() *Request
	ParseServerTime(body []byte) (time.Time, error)
}

// RateLimited 有公开请求额度的协议实现
type RateLimited interface {
	DefaultRateLimit() (limit int, window time.Duration)
}

// Recorder 接收请求指标
type Recorder interface {
	ObserveRequest(exchange, outcome string, d time.Duration)
	ObserveGateWait(exchange string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, time.Duration) {}
func (nopRecorder) ObserveGateWait(string, time.Duration)        {}

// Dispatcher 为一个交易所实例执行请求
type Dispatcher struct {
	protocol    Protocol
	creds       Credentials
	http        *common.HTTPClient
	gate        *common.RateGate
	nonce       *common.NonceProvider
	log         logger.Interface
	recorder    Recorder
	gateTimeout time.Duration

	maxRetries int
	newBackOff func() *backoff.ExponentialBackOff
}

// Option Dispatcher 配置项
type Option func(*Dispatcher)

// WithCredentials 设置 API 密钥
func WithCredentials(c Credentials) Option {
	return func(d *Dispatcher) { d.creds = c }
}

// WithRateGate 与同一交易所的其他组件共用限频器
func WithRateGate(g *common.RateGate) Option {
	return func(d *Dispatcher) { d.gate = g }
}

// WithGateTimeout 等待限频许可的最长时间
func WithGateTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.gateTimeout = t }
}

// WithNonceProvider 替换按协议 nonce 风格创建的生成器
func WithNonceProvider(p *common.NonceProvider) Option {
	return func(d *Dispatcher) { d.nonce = p }
}

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *common.HTTPClient) Option {
	return func(d *Dispatcher) { d.http = c }
}

// WithLogger 设置日志
func WithLogger(l logger.Interface) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithRetry 传输错误和限频错误最多重试 max 次，指数退避从 initial 开始。默认不重试
func WithRetry(max int, initial time.Duration) Option {
	return func(d *Dispatcher) {
		d.maxRetries = max
		d.newBackOff = func() *backoff.ExponentialBackOff {
			b := backoff.NewExponentialBackOff()
			if initial > 0 {
				b.InitialInterval = initial
			}
			return b
		}
	}
}

// New 为协议 p 创建 Dispatcher
func New(p Protocol, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		protocol:    p,
		log:         logger.NewNop(),
		recorder:    nopRecorder{},
		gateTimeout: 30 * time.Second,
		newBackOff:  backoff.NewExponentialBackOff,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.http == nil {
		d.http = common.NewHTTPClient(p.BaseURL())
	}
	if d.nonce == nil {
		d.nonce = common.NewNonceProvider(p.NonceStyle())
	}
	if d.gate == nil {
		limit, window := 0, time.Second
		if rl, ok := p.(RateLimited); ok {
			limit, window = rl.DefaultRateLimit()
		}
		d.gate = common.NewRateGate(limit, window)
	}
	return d
}

// Protocol 返回交易所协议
func (d *Dispatcher) Protocol() Protocol { return d.protocol }

// Nonces 返回 nonce 生成器
func (d *Dispatcher) Nonces() *common.NonceProvider { return d.nonce }

// Gate 返回限频器
func (d *Dispatcher) Gate() *common.RateGate { return d.gate }

// HasCredentials 是否可以调用私有接口
func (d *Dispatcher) HasCredentials() bool { return d.creds.Valid() }

// Execute 发送 req，成功时返回原始响应体。失败返回 *types.Error；
// 只有设置了 WithRetry 时才重试，且只重试传输错误和限频错误
func (d *Dispatcher) Execute(ctx context.Context, req *Request) ([]byte, error) {
	name := d.protocol.Name()
	if req.Auth && !d.creds.Valid() {
		return nil, types.NewAuthError(name, 0, "api key and secret are required for "+req.Path)
	}
	if logger.RequestID(ctx) == "" {
		ctx = logger.WithRequestID(ctx, "")
	}

	var b *backoff.ExponentialBackOff
	for attempt := 0; ; attempt++ {
		body, err := d.executeOnce(ctx, req)
		if err == nil {
			return body, nil
		}
		if attempt >= d.maxRetries || !types.IsRetryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if b == nil {
			b = d.newBackOff()
		}
		sleep := b.NextBackOff()
		if sleep == backoff.Stop {
			return nil, err
		}
		d.log.WarnContext(ctx, "retrying request",
			logger.NewField("exchange", name),
			logger.NewField("path", req.Path),
			logger.NewField("attempt", attempt+1),
			logger.NewField("sleep", sleep.String()),
			logger.NewField("error", err.Error()),
		)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, types.NewTransportError(name, ctx.Err())
		case <-timer.C:
		}
	}
}

func (d *Dispatcher) executeOnce(ctx context.Context, req *Request) ([]byte, error) {
	name := d.protocol.Name()
	start := time.Now()

	if !d.gate.WaitToProceed(ctx, d.gateTimeout) {
		if err := ctx.Err(); err != nil {
			return nil, types.NewTransportError(name, err)
		}
		return nil, types.NewRateLimitError(name, 0, "timed out waiting for local rate gate")
	}
	d.recorder.ObserveGateWait(name, time.Since(start))

	call := newCall(req, d.protocol.BaseURL())
	if req.Auth {
		if d.protocol.NonceStyle() != common.NonceNone {
			// 签名前生成，请求失败也不回收
			call.Nonce = d.nonce.Next()
		}
		if err := d.protocol.Sign(call, d.creds, call.Nonce); err != nil {
			return nil, d.finish(ctx, req, start, &types.Error{
				Kind: types.KindAuth, Exchange: name, Message: "sign request", Err: err,
			})
		}
	}

	body, err := call.Body()
	if err != nil {
		return nil, d.finish(ctx, req, start, types.NewProtocolError(name, fmt.Errorf("encode body: %w", err)))
	}

	resp, err := d.http.Do(ctx, call.Method, call.URL(), call.allHeaders(), body)
	if err != nil {
		return nil, d.finish(ctx, req, start, types.NewTransportError(name, err))
	}

	if err := d.classify(resp); err != nil {
		return nil, d.finish(ctx, req, start, err)
	}
	_ = d.finish(ctx, req, start, nil)
	return resp.Body, nil
}

func (d *Dispatcher) classify(resp *common.HTTPResponse) error {
	name := d.protocol.Name()
	switch {
	case resp.Status == http.StatusTooManyRequests || resp.Status == http.StatusTeapot:
		return types.NewRateLimitError(name, resp.Status, snippet(resp.Body))
	case resp.Status >= 500:
		// 部分交易所用 5xx 状态码返回业务错误
		if err := d.protocol.CheckResponse(resp.Status, resp.Body); err != nil {
			switch types.KindOf(err) {
			case types.KindExchange, types.KindAuth, types.KindRateLimit:
				return err
			}
		}
		return &types.Error{
			Kind: types.KindTransport, Exchange: name, Status: resp.Status,
			Message: snippet(resp.Body),
		}
	}

	err := d.protocol.CheckResponse(resp.Status, resp.Body)
	authStatus := resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden
	if err != nil {
		var te *types.Error
		if authStatus && errors.As(err, &te) && te.Kind == types.KindExchange {
			te.Kind = types.KindAuth
			te.Status = resp.Status
		}
		return err
	}
	if authStatus {
		return types.NewAuthError(name, resp.Status, snippet(resp.Body))
	}
	if resp.Status < 200 || resp.Status >= 300 {
		e := types.NewExchangeError(name, "", snippet(resp.Body))
		e.Status = resp.Status
		return e
	}
	return nil
}

func (d *Dispatcher) finish(ctx context.Context, req *Request, start time.Time, err error) error {
	name := d.protocol.Name()
	outcome := "ok"
	if err != nil {
		outcome = strings.ReplaceAll(types.KindOf(err).String(), " ", "_")
	}
	d.recorder.ObserveRequest(name, outcome, time.Since(start))

	fields := []logger.Field{
		logger.NewField("exchange", name),
		logger.NewField("method", req.Method),
		logger.NewField("path", req.Path),
		logger.NewField("auth", req.Auth),
		logger.NewField("elapsed", time.Since(start).String()),
	}
	if err != nil {
		d.log.WarnContext(ctx, "request failed", append(fields, logger.NewField("error", err.Error()))...)
	} else {
		d.log.DebugContext(ctx, "request done", fields...)
	}
	return err
}

// Do 执行 req 并把（解开信封后的）数据解码为 T
func Do[T any](ctx context.Context, d *Dispatcher, req *Request) (T, error) {
	var out T
	body, err := d.Execute(ctx, req)
	if err != nil {
		return out, err
	}
	if u, ok := d.protocol.(Unwrapper); ok {
		if body, err = u.Unwrap(body); err != nil {
			return out, err
		}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, types.NewProtocolError(d.protocol.Name(), fmt.Errorf("decode %s: %w", req.Path, err))
	}
	return out, nil
}

// SyncClock 获取服务器时间偏移供 nonce 使用，协议没有 ClockSource 时不做任何事
func (d *Dispatcher) SyncClock(ctx context.Context) error {
	cs, ok := d.protocol.(ClockSource)
	if !ok {
		return nil
	}
	sent := time.Now()
	body, err := d.Execute(ctx, cs.ServerTimeRequest())
	if err != nil {
		return err
	}
	server, err := cs.ParseServerTime(body)
	if err != nil {
		return types.NewProtocolError(d.protocol.Name(), err)
	}
	// 假定服务器在往返时间的中点生成时间戳
	rtt := time.Since(sent)
	d.nonce.ObserveServerTime(server.Add(rtt / 2))
	return nil
}

// StartClockSync 每隔 interval 刷新一次时间偏移，直到 ctx 结束
func (d *Dispatcher) StartClockSync(ctx context.Context, interval time.Duration) {
	if _, ok := d.protocol.(ClockSource); !ok || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if err := d.SyncClock(ctx); err != nil && ctx.Err() == nil {
				d.log.Error(err, logger.NewField("exchange", d.protocol.Name()))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func snippet(body []byte) string {
	const max = 256
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
