package coinbase

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/types"
)

// coinbaseError 非 2xx 响应体
type coinbaseError struct {
	Error        string `json:"error"`
	Code         int    `json:"code"`
	Message      string `json:"message"`
	ErrorDetails string `json:"error_details"`
}

// Protocol Coinbase Advanced Trade 协议：每个请求单独签发 ES256 JWT，
// uri 声明为 "METHOD host/path"，不需要 nonce
type Protocol struct {
	baseURL string
	signer  common.JWTSigner
}

// NewProtocol 创建 Coinbase REST 协议
func NewProtocol(baseURL string) *Protocol {
	return &Protocol{baseURL: baseURL}
}

// Name 交易所名称
func (p *Protocol) Name() string { return coinbaseName }

// BaseURL REST 地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle JWT 自带 nbf/exp 与随机 nonce 头
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceNone }

// DefaultRateLimit 公共接口每秒 10 次
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 10, time.Second }

// pemSecret 环境变量中的私钥常以字面量 \n 分行
func pemSecret(secret string) []byte {
	return []byte(strings.ReplaceAll(secret, `\n`, "\n"))
}

// Sign Authorization: Bearer <jwt>
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, _ common.Nonce) error {
	u, err := url.Parse(call.BaseURL)
	if err != nil {
		return fmt.Errorf("coinbase base url: %w", err)
	}
	signer := p.signer
	signer.KeyName = creds.APIKey
	token, err := signer.Sign(pemSecret(creds.Secret), []byte(call.Method+" "+u.Host+call.Path))
	if err != nil {
		return err
	}
	call.SetHeader("Authorization", "Bearer "+token)
	return nil
}

// CheckResponse 成功响应没有统一信封，只检查 error 字段
func (p *Protocol) CheckResponse(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	var e coinbaseError
	if err := json.Unmarshal(body, &e); err != nil || (e.Error == "" && e.Message == "") {
		return nil
	}
	return classify(e, status)
}

func classify(e coinbaseError, status int) *types.Error {
	msg := e.Message
	if msg == "" {
		msg = e.Error
	}
	switch e.Error {
	case "UNAUTHORIZED", "PERMISSION_DENIED", "unauthorized", "permission_denied":
		err := types.NewAuthError(coinbaseName, status, msg)
		err.Code = e.Error
		return err
	case "RESOURCE_EXHAUSTED", "rate_limit_exceeded":
		err := types.NewRateLimitError(coinbaseName, status, msg)
		err.Code = e.Error
		return err
	}
	err := types.NewExchangeError(coinbaseName, e.Error, msg)
	err.Status = status
	return err
}

// ServerTimeRequest 服务器时间接口
func (p *Protocol) ServerTimeRequest() *dispatch.Request {
	return dispatch.Get(brokeragePrefix + "/time")
}

// ParseServerTime 解析 {"iso":"...","epochSeconds":"...","epochMillis":"..."}
func (p *Protocol) ParseServerTime(body []byte) (time.Time, error) {
	var v struct {
		EpochMillis types.ExTimestamp `json:"epochMillis"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return time.Time{}, err
	}
	if v.EpochMillis.IsZero() {
		return time.Time{}, errors.New("missing epochMillis")
	}
	return v.EpochMillis.Time, nil
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.ClockSource = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
