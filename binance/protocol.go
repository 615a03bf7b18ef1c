package binance

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/types"
)

// defaultRecvWindow 签名请求的有效窗口（毫秒）
const defaultRecvWindow = 5000

// Protocol Binance REST 协议：查询串 HMAC-SHA256 签名、错误码解析、服务器时间
type Protocol struct {
	baseURL    string
	recvWindow int64
}

// NewProtocol 创建 Binance REST 协议
func NewProtocol(baseURL string) *Protocol {
	return &Protocol{baseURL: baseURL, recvWindow: defaultRecvWindow}
}

// Name 交易所名称
func (p *Protocol) Name() string { return binanceName }

// BaseURL REST 地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle Binance 使用毫秒时间戳
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceUnixMillis }

// DefaultRateLimit 现货接口每分钟 1200 次
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 1200, time.Minute }

// Sign 追加 timestamp、recvWindow，对完整查询串签名，signature 放在最后
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, nonce common.Nonce) error {
	call.Params.SetQuery("timestamp", nonce.Value)
	if p.recvWindow > 0 {
		call.Params.SetQuery("recvWindow", p.recvWindow)
	}
	call.Params.SetQuery("signature", common.SignHMAC256(call.Query(), creds.Secret))
	call.SetHeader("X-MBX-APIKEY", creds.APIKey)
	return nil
}

// binanceError Binance 错误响应 {"code":-1121,"msg":"Invalid symbol."}
type binanceError struct {
	Code *int64 `json:"code"`
	Msg  string `json:"msg"`
}

// CheckResponse 负数错误码视为失败
func (p *Protocol) CheckResponse(status int, body []byte) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil
	}
	var e binanceError
	if err := json.Unmarshal(body, &e); err != nil {
		if status >= 200 && status < 300 {
			return types.NewProtocolError(binanceName, fmt.Errorf("decode response: %w", err))
		}
		return nil
	}
	if e.Code == nil || *e.Code >= 0 {
		return nil
	}
	code := strconv.FormatInt(*e.Code, 10)
	switch *e.Code {
	case -1021, -1022, -2014, -2015:
		// 时间戳超出窗口、签名错误、API Key 无效或无权限
		err := types.NewAuthError(binanceName, status, e.Msg)
		err.Code = code
		return err
	case -1003, -1015:
		err := types.NewRateLimitError(binanceName, status, e.Msg)
		err.Code = code
		return err
	}
	return types.NewExchangeError(binanceName, code, e.Msg)
}

// ServerTimeRequest 服务器时间接口
func (p *Protocol) ServerTimeRequest() *dispatch.Request {
	return dispatch.Get("/api/v3/time")
}

// ParseServerTime 解析 {"serverTime":1499827319559}
func (p *Protocol) ParseServerTime(body []byte) (time.Time, error) {
	var v struct {
		ServerTime types.ExTimestamp `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return time.Time{}, err
	}
	if v.ServerTime.IsZero() {
		return time.Time{}, fmt.Errorf("missing serverTime")
	}
	return v.ServerTime.Time, nil
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.ClockSource = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
