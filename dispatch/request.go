package dispatch

import (
	"net/http"
	"strings"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/types"
)

// BodyEncoding 请求体的编码方式
type BodyEncoding int

const (
	// EncodingNone 不发送请求体，只使用 query 部分
	EncodingNone BodyEncoding = iota
	// EncodingJSON body 部分编码为 JSON 对象
	EncodingJSON
	// EncodingForm body 部分按表单编码
	EncodingForm
)

// Request 一次 REST 调用
type Request struct {
	Method string
	// BaseURL 非空时覆盖协议默认地址
	BaseURL string
	Path    string
	Params  *types.ExValues
	// Encoding 带 body 的 POST/PUT/DELETE 默认 JSON，其余默认不发送请求体
	Encoding BodyEncoding
	// Auth 私有接口
	Auth bool
	// RawJSON 用预先编码的 JSON 替换 body 部分，用于嵌套对象
	RawJSON []byte
}

// NewRequest 创建参数为空的请求
func NewRequest(method, path string, auth bool) *Request {
	return &Request{Method: method, Path: path, Params: types.NewExValues(), Auth: auth}
}

// Get 公共 GET 请求
func Get(path string) *Request {
	return NewRequest(http.MethodGet, path, false)
}

// Credentials 一个账户的 API 密钥
type Credentials struct {
	APIKey     string
	Secret     string
	Passphrase string
}

// Valid key 和 secret 是否都存在
func (c Credentials) Valid() bool {
	return c.APIKey != "" && c.Secret != ""
}

// Call 每次尝试交给 Protocol.Sign 的请求。签名可以追加参数和请求头，
// 发送的内容与签名后的 call 完全一致
type Call struct {
	Method   string
	BaseURL  string
	Path     string
	Params   *types.ExValues
	Encoding BodyEncoding
	Nonce    common.Nonce

	headers map[string]string
	body    []byte
	frozen  bool
}

func newCall(req *Request, defaultBase string) *Call {
	params := req.Params
	if params == nil {
		params = types.NewExValues()
	} else {
		params = params.Clone()
	}
	base := req.BaseURL
	if base == "" {
		base = defaultBase
	}
	enc := req.Encoding
	if enc == EncodingNone && req.Method != http.MethodGet && len(params.EncodeBody()) > 0 {
		enc = EncodingJSON
	}
	c := &Call{
		Method:   strings.ToUpper(req.Method),
		BaseURL:  strings.TrimRight(base, "/"),
		Path:     req.Path,
		Params:   params,
		Encoding: enc,
		headers:  make(map[string]string),
	}
	if len(req.RawJSON) > 0 {
		c.Encoding = EncodingJSON
		c.SetRawBody(req.RawJSON)
	}
	return c
}

// Body 返回编码后的请求体。第一次调用后固定，签名与发送使用同一份字节
func (c *Call) Body() ([]byte, error) {
	if c.frozen {
		return c.body, nil
	}
	switch c.Encoding {
	case EncodingJSON:
		b, err := c.Params.EncodeJSON()
		if err != nil {
			return nil, err
		}
		c.body = b
	case EncodingForm:
		if form := c.Params.EncodeForm(); form != "" {
			c.body = []byte(form)
		}
	}
	c.frozen = true
	return c.body, nil
}

// SetRawBody 用预先编码的字节替换请求体
func (c *Call) SetRawBody(b []byte) {
	c.body = b
	c.frozen = true
}

// Query 编码后的查询串，不含 '?'
func (c *Call) Query() string {
	return c.Params.EncodeQuery()
}

// PathWithQuery 请求路径加查询串
func (c *Call) PathWithQuery() string {
	return c.Params.JoinPath(c.Path)
}

// URL 完整地址
func (c *Call) URL() string {
	return c.BaseURL + c.PathWithQuery()
}

// SetHeader 只对本次调用设置请求头
func (c *Call) SetHeader(key, value string) {
	c.headers[key] = value
}

// Header 返回签名或请求参数设置的请求头
func (c *Call) Header(key string) string {
	if v, ok := c.headers[key]; ok {
		return v
	}
	return c.Params.GetHeader(key)
}

func (c *Call) allHeaders() map[string]string {
	out := make(map[string]string, len(c.headers)+2)
	for _, k := range c.Params.HeaderKeys() {
		out[k] = c.Params.GetHeader(k)
	}
	switch c.Encoding {
	case EncodingJSON:
		out["Content-Type"] = "application/json"
	case EncodingForm:
		out["Content-Type"] = "application/x-www-form-urlencoded"
	}
	for k, v := range c.headers {
		out[k] = v
	}
	return out
}
