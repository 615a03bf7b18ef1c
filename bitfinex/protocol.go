package bitfinex

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

// Protocol Bitfinex v2 REST 协议：微秒 nonce，HMAC-SHA384("/api" + path + nonce + body)
type Protocol struct {
	baseURL string
}

// NewProtocol 创建 Bitfinex REST 协议，baseURL 为认证接口地址
func NewProtocol(baseURL string) *Protocol {
	return &Protocol{baseURL: baseURL}
}

// Name 交易所名称
func (p *Protocol) Name() string { return bitfinexName }

// BaseURL 认证接口地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle 微秒
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceUnixMicros }

// DefaultRateLimit 认证接口 90 次/分钟
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 90, time.Minute }

// Sign 请求头 bfx-nonce、bfx-apikey、bfx-signature（hex）
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, nonce common.Nonce) error {
	call.Encoding = dispatch.EncodingJSON
	body, err := call.Body()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		body = []byte("{}")
		call.SetRawBody(body)
	}
	n := nonce.String()
	msg := "/api" + call.Path + n + string(body)
	sign, err := common.HMACSigner{Algo: common.SHA384, Encoding: common.Hex}.Sign([]byte(creds.Secret), []byte(msg))
	if err != nil {
		return err
	}
	call.SetHeader("bfx-nonce", n)
	call.SetHeader("bfx-apikey", creds.APIKey)
	call.SetHeader("bfx-signature", sign)
	return nil
}

// CheckResponse 错误为 ["error", code, "message"]，通常伴随 HTTP 500
func (p *Protocol) CheckResponse(status int, body []byte) error {
	body = bytes.TrimSpace(body)
	if !bytes.HasPrefix(body, []byte(`["error"`)) {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(body, &arr); err != nil || len(arr) < 3 {
		return types.NewProtocolError(bitfinexName, fmt.Errorf("malformed error response: %s", body))
	}
	var code int64
	var msg string
	_ = json.Unmarshal(arr[1], &code)
	_ = json.Unmarshal(arr[2], &msg)
	return classify(code, status, msg)
}

// classify REST 与 WebSocket 共用的错误码分类
func classify(code int64, status int, msg string) *types.Error {
	c := strconv.FormatInt(code, 10)
	switch {
	case code == 10100 || code == 10111 || code == 10112 || code == 10113 || code == 10114:
		// apikey 无效、签名错误、nonce 过小
		err := types.NewAuthError(bitfinexName, status, msg)
		err.Code = c
		return err
	case code == 11010 || msg == "ERR_RATE_LIMIT":
		err := types.NewRateLimitError(bitfinexName, status, msg)
		err.Code = c
		return err
	case msg == "apikey: invalid" || msg == "nonce: small" || msg == "invalid signature":
		err := types.NewAuthError(bitfinexName, status, msg)
		err.Code = c
		return err
	}
	err := types.NewExchangeError(bitfinexName, c, msg)
	err.Status = status
	return err
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
