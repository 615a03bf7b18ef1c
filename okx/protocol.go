package okx

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/types"
)

// okxEnvelope OKX 统一响应 {"code":"0","msg":"","data":[...]}
type okxEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// okxItemStatus 批量/下单接口每项的结果码
type okxItemStatus struct {
	SCode string `json:"sCode"`
	SMsg  string `json:"sMsg"`
}

// Protocol OKX REST 协议：ISO 时间戳 + base64 HMAC-SHA256 签名
type Protocol struct {
	baseURL   string
	simulated bool
}

// NewProtocol 创建 OKX REST 协议，simulated 为 true 时请求模拟盘
func NewProtocol(baseURL string, simulated bool) *Protocol {
	return &Protocol{baseURL: baseURL, simulated: simulated}
}

// Name 交易所名称
func (p *Protocol) Name() string { return okxName }

// BaseURL REST 地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle 毫秒时间戳，签名时格式化为 ISO8601
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceUnixMillis }

// DefaultRateLimit 大部分接口 20 次/2秒
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 20, 2 * time.Second }

// isoTimestamp 2020-12-08T09:08:57.715Z
func isoTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z")
}

// Sign 签名串: timestamp + METHOD + requestPath(含查询串) + body
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, nonce common.Nonce) error {
	if creds.Passphrase == "" {
		return errors.New("okx requires a passphrase")
	}
	body, err := call.Body()
	if err != nil {
		return err
	}
	ts := isoTimestamp(nonce.Value)
	msg := ts + call.Method + call.PathWithQuery() + string(body)

	call.SetHeader("OK-ACCESS-KEY", creds.APIKey)
	call.SetHeader("OK-ACCESS-SIGN", common.SignHMAC256Base64(msg, creds.Secret))
	call.SetHeader("OK-ACCESS-TIMESTAMP", ts)
	call.SetHeader("OK-ACCESS-PASSPHRASE", creds.Passphrase)
	if p.simulated {
		call.SetHeader("x-simulated-trading", "1")
	}
	return nil
}

// CheckResponse code 非 "0" 时失败；下单类接口的具体原因在 data[].sCode
func (p *Protocol) CheckResponse(status int, body []byte) error {
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= 200 && status < 300 {
			return types.NewProtocolError(okxName, fmt.Errorf("decode envelope: %w", err))
		}
		return nil
	}
	if env.Code == "" || env.Code == "0" {
		return nil
	}
	code, msg := env.Code, env.Msg
	var items []okxItemStatus
	if json.Unmarshal(env.Data, &items) == nil {
		for _, it := range items {
			if it.SCode != "" && it.SCode != "0" {
				code, msg = it.SCode, it.SMsg
				break
			}
		}
	}
	return classify(code, status, msg)
}

// classify OKX 错误码分类，REST 与 WebSocket 共用
func classify(code string, status int, msg string) *types.Error {
	switch code {
	case "50100", "50101", "50102", "50103", "50104", "50105", "50106", "50107",
		"50111", "50112", "50113", "50114", "50119",
		"60004", "60005", "60006", "60007", "60009", "60011", "60022", "60024":
		// API Key、时间戳、签名、passphrase 或登录失败
		err := types.NewAuthError(okxName, status, msg)
		err.Code = code
		return err
	case "50011", "50061":
		err := types.NewRateLimitError(okxName, status, msg)
		err.Code = code
		return err
	}
	err := types.NewExchangeError(okxName, code, msg)
	err.Status = status
	return err
}

// Unwrap 返回 data 字段
func (p *Protocol) Unwrap(body []byte) ([]byte, error) {
	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.NewProtocolError(okxName, err)
	}
	return env.Data, nil
}

// ServerTimeRequest 服务器时间接口
func (p *Protocol) ServerTimeRequest() *dispatch.Request {
	return dispatch.Get("/api/v5/public/time")
}

// ParseServerTime 解析 {"code":"0","data":[{"ts":"1597026383085"}]}
func (p *Protocol) ParseServerTime(body []byte) (time.Time, error) {
	var v struct {
		Data []struct {
			Ts types.ExTimestamp `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return time.Time{}, err
	}
	if len(v.Data) == 0 || v.Data[0].Ts.IsZero() {
		return time.Time{}, errors.New("missing ts")
	}
	return v.Data[0].Ts.Time, nil
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.Unwrapper   = (*Protocol)(nil)
	_ dispatch.ClockSource = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
