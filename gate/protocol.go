package gate

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/types"
)

// gateError 错误响应 {"label":"INVALID_PARAM_VALUE","message":"..."}
type gateError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Protocol Gate v4 REST 协议：请求体 SHA512 摘要 + HMAC-SHA512 签名
type Protocol struct {
	baseURL string
}

// NewProtocol 创建 Gate REST 协议
func NewProtocol(baseURL string) *Protocol {
	return &Protocol{baseURL: baseURL}
}

// Name 交易所名称
func (p *Protocol) Name() string { return gateName }

// BaseURL REST 地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle 秒级时间戳
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceUnixSeconds }

// DefaultRateLimit 现货下单 10 次/秒
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 10, time.Second }

// Sign 签名串: METHOD\n/api/v4/path\nquery\nhex(SHA512(body))\ntimestamp
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, nonce common.Nonce) error {
	body, err := call.Body()
	if err != nil {
		return err
	}
	ts := nonce.String()
	payload := fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		call.Method, call.Path, call.Query(), common.HashSHA512(body), ts)

	call.SetHeader("KEY", creds.APIKey)
	call.SetHeader("Timestamp", ts)
	call.SetHeader("SIGN", common.SignHMAC512(payload, creds.Secret))
	return nil
}

// CheckResponse 有 label 字段即为错误
func (p *Protocol) CheckResponse(status int, body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var e gateError
	if err := json.Unmarshal(body, &e); err != nil {
		if status >= 200 && status < 300 {
			return types.NewProtocolError(gateName, fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	if e.Label == "" {
		return nil
	}
	switch e.Label {
	case "INVALID_KEY", "INVALID_SIGNATURE", "MISSING_REQUIRED_HEADER", "REQUEST_EXPIRED",
		"IP_FORBIDDEN", "READ_ONLY", "FORBIDDEN", "INVALID_CREDENTIALS":
		err := types.NewAuthError(gateName, status, e.Message)
		err.Code = e.Label
		return err
	case "TOO_MANY_REQUESTS":
		err := types.NewRateLimitError(gateName, status, e.Message)
		err.Code = e.Label
		return err
	}
	err := types.NewExchangeError(gateName, e.Label, e.Message)
	err.Status = status
	return err
}

// ServerTimeRequest 服务器时间接口
func (p *Protocol) ServerTimeRequest() *dispatch.Request {
	return dispatch.Get(gateAPIPrefix + "/spot/time")
}

// ParseServerTime 解析 {"server_time":1597026383085}
func (p *Protocol) ParseServerTime(body []byte) (time.Time, error) {
	var v struct {
		ServerTime types.ExTimestamp `json:"server_time"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return time.Time{}, err
	}
	if v.ServerTime.IsZero() {
		return time.Time{}, errors.New("missing server_time")
	}
	return v.ServerTime.Time, nil
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.ClockSource = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
