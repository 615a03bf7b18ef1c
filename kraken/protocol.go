package kraken

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/types"
)

// krakenEnvelope {"error":[],"result":{...}}
type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Protocol Kraken REST 协议：表单内 nonce，HMAC-SHA512(path + SHA256(nonce + postdata))
type Protocol struct {
	baseURL string
}

// NewProtocol 创建 Kraken REST 协议
func NewProtocol(baseURL string) *Protocol {
	return &Protocol{baseURL: baseURL}
}

// Name 交易所名称
func (p *Protocol) Name() string { return krakenName }

// BaseURL REST 地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle 毫秒，必须严格递增
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceUnixMillis }

// DefaultRateLimit 入门级账户计数器约每 3 秒恢复 1 次，最多 15 次
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 15, 45 * time.Second }

// Sign nonce 写入表单；API-Sign = base64(HMAC-SHA512(base64decode(secret), path + SHA256(nonce + postdata)))
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, nonce common.Nonce) error {
	secret, err := base64.StdEncoding.DecodeString(creds.Secret)
	if err != nil {
		return fmt.Errorf("kraken secret must be base64: %w", err)
	}
	call.Encoding = dispatch.EncodingForm
	call.Params.SetBody("nonce", nonce.String())
	body, err := call.Body()
	if err != nil {
		return err
	}

	msg := append([]byte(call.Path), common.HashSHA256(append([]byte(nonce.String()), body...))...)
	sign, err := common.HMACSigner{Algo: common.SHA512, Encoding: common.Base64}.Sign(secret, msg)
	if err != nil {
		return err
	}
	call.SetHeader("API-Key", creds.APIKey)
	call.SetHeader("API-Sign", sign)
	return nil
}

// CheckResponse error 数组非空即失败，取第一条分类
func (p *Protocol) CheckResponse(status int, body []byte) error {
	var env krakenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= 200 && status < 300 {
			return types.NewProtocolError(krakenName, fmt.Errorf("decode envelope: %w", err))
		}
		return nil
	}
	if len(env.Error) == 0 {
		return nil
	}
	return classify(env.Error[0], status)
}

// classify 错误串形如 "EAPI:Invalid key"，整串作为 Code
func classify(msg string, status int) *types.Error {
	switch {
	case msg == "EAPI:Invalid key", msg == "EAPI:Invalid signature", msg == "EAPI:Invalid nonce",
		strings.HasPrefix(msg, "EGeneral:Permission denied"):
		err := types.NewAuthError(krakenName, status, msg)
		err.Code = msg
		return err
	case strings.HasSuffix(msg, "Rate limit exceeded"), msg == "EService:Throttled",
		strings.HasPrefix(msg, "EService:Throttled"):
		err := types.NewRateLimitError(krakenName, status, msg)
		err.Code = msg
		return err
	}
	err := types.NewExchangeError(krakenName, msg, msg)
	err.Status = status
	return err
}

// Unwrap 返回 result 字段
func (p *Protocol) Unwrap(body []byte) ([]byte, error) {
	var env krakenEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.NewProtocolError(krakenName, err)
	}
	return env.Result, nil
}

// ServerTimeRequest 服务器时间接口
func (p *Protocol) ServerTimeRequest() *dispatch.Request {
	return dispatch.Get("/0/public/Time")
}

// ParseServerTime 解析 {"result":{"unixtime":1688669448}}
func (p *Protocol) ParseServerTime(body []byte) (time.Time, error) {
	var v struct {
		Result struct {
			UnixTime int64 `json:"unixtime"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return time.Time{}, err
	}
	if v.Result.UnixTime == 0 {
		return time.Time{}, errors.New("missing unixtime")
	}
	return time.Unix(v.Result.UnixTime, 0), nil
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.Unwrapper   = (*Protocol)(nil)
	_ dispatch.ClockSource = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
