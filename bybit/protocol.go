package bybit

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/types"
)

// defaultRecvWindow 签名请求的有效窗口（毫秒）
const defaultRecvWindow = 5000

// bybitEnvelope v5 统一响应 {"retCode":0,"retMsg":"OK","result":{...},"time":...}
type bybitEnvelope struct {
	RetCode *int64            `json:"retCode"`
	RetMsg  string            `json:"retMsg"`
	Result  json.RawMessage   `json:"result"`
	Time    types.ExTimestamp `json:"time"`
}

// Protocol Bybit v5 REST 协议
type Protocol struct {
	baseURL    string
	recvWindow int64
}

// NewProtocol 创建 Bybit REST 协议
func NewProtocol(baseURL string) *Protocol {
	return &Protocol{baseURL: baseURL, recvWindow: defaultRecvWindow}
}

// Name 交易所名称
func (p *Protocol) Name() string { return bybitName }

// BaseURL REST 地址
func (p *Protocol) BaseURL() string { return p.baseURL }

// NonceStyle 毫秒时间戳
func (p *Protocol) NonceStyle() common.NonceStyle { return common.NonceUnixMillis }

// DefaultRateLimit 现货下单接口 20 次/秒
func (p *Protocol) DefaultRateLimit() (int, time.Duration) { return 20, time.Second }

// Sign 签名串: timestamp + apiKey + recvWindow + (GET 查询串 | POST 请求体)
func (p *Protocol) Sign(call *dispatch.Call, creds dispatch.Credentials, nonce common.Nonce) error {
	ts := nonce.String()
	recv := strconv.FormatInt(p.recvWindow, 10)

	payload := call.Query()
	if call.Method != http.MethodGet {
		body, err := call.Body()
		if err != nil {
			return err
		}
		payload = string(body)
	}

	call.SetHeader("X-BAPI-API-KEY", creds.APIKey)
	call.SetHeader("X-BAPI-TIMESTAMP", ts)
	call.SetHeader("X-BAPI-RECV-WINDOW", recv)
	call.SetHeader("X-BAPI-SIGN", common.SignHMAC256(ts+creds.APIKey+recv+payload, creds.Secret))
	return nil
}

// CheckResponse retCode 非 0 视为失败
func (p *Protocol) CheckResponse(status int, body []byte) error {
	var env bybitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status >= 200 && status < 300 {
			return types.NewProtocolError(bybitName, fmt.Errorf("decode envelope: %w", err))
		}
		return nil
	}
	if env.RetCode == nil || *env.RetCode == 0 {
		return nil
	}
	code := strconv.FormatInt(*env.RetCode, 10)
	switch *env.RetCode {
	case 10002, 10003, 10004, 10005, 10007, 10009, 33004:
		// 时间戳超出窗口、API Key 无效、签名错误、权限不足、key 过期
		err := types.NewAuthError(bybitName, status, env.RetMsg)
		err.Code = code
		return err
	case 10006, 10018:
		err := types.NewRateLimitError(bybitName, status, env.RetMsg)
		err.Code = code
		return err
	}
	err := types.NewExchangeError(bybitName, code, env.RetMsg)
	err.Status = status
	return err
}

// Unwrap 返回 result 字段
func (p *Protocol) Unwrap(body []byte) ([]byte, error) {
	var env bybitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.NewProtocolError(bybitName, err)
	}
	return env.Result, nil
}

// ServerTimeRequest 服务器时间接口
func (p *Protocol) ServerTimeRequest() *dispatch.Request {
	return dispatch.Get("/v5/market/time")
}

// ParseServerTime 使用外层 time 字段（毫秒）
func (p *Protocol) ParseServerTime(body []byte) (time.Time, error) {
	var env bybitEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return time.Time{}, err
	}
	if env.Time.IsZero() {
		return time.Time{}, errors.New("missing time")
	}
	return env.Time.Time, nil
}

var (
	_ dispatch.Protocol    = (*Protocol)(nil)
	_ dispatch.Unwrapper   = (*Protocol)(nil)
	_ dispatch.ClockSource = (*Protocol)(nil)
	_ dispatch.RateLimited = (*Protocol)(nil)
)
