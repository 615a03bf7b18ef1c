package common

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/lemconn/exwire/logger"
)

// HTTPResponse HTTP 响应，状态码交给上层判断
type HTTPResponse struct {
	Status int
	Header http.Header
	Body   []byte
}

// HTTPClient HTTP客户端
type HTTPClient struct {
	client *resty.Client
	log    logger.Interface
	proxy  string
	debug  bool
}

// NewHTTPClient 创建HTTP客户端
func NewHTTPClient(baseURL string) *HTTPClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second)
	return &HTTPClient{
		client: c,
		log:    logger.NewNop(),
	}
}

// SetProxy 设置代理，空字符串表示移除代理
func (c *HTTPClient) SetProxy(proxyURL string) {
	if proxyURL == "" {
		c.client.RemoveProxy()
	} else {
		c.client.SetProxy(proxyURL)
	}
	c.proxy = proxyURL
}

// GetProxy 获取当前代理设置
func (c *HTTPClient) GetProxy() string {
	return c.proxy
}

// SetHeader 设置公共请求头
func (c *HTTPClient) SetHeader(key, value string) {
	c.client.SetHeader(key, value)
}

// SetTimeout 设置超时时间
func (c *HTTPClient) SetTimeout(timeout time.Duration) {
	c.client.SetTimeout(timeout)
}

// SetDebug 设置是否输出请求/响应调试日志
func (c *HTTPClient) SetDebug(debug bool) {
	c.debug = debug
}

// SetLogger 设置日志
func (c *HTTPClient) SetLogger(l logger.Interface) {
	if l != nil {
		c.log = l
	}
}

// Do 发送请求。url 可以是完整地址，也可以是相对 baseURL 的路径。
// 只有网络层失败才返回 error，非 2xx 状态码由调用方处理。
func (c *HTTPClient) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*HTTPResponse, error) {
	req := c.client.R().
		SetContext(ctx).
		SetHeaders(headers)
	if len(body) > 0 {
		req.SetBody(body)
	}

	if c.debug {
		c.log.DebugContext(ctx, "http request",
			logger.NewField("method", method),
			logger.NewField("url", url),
			logger.NewField("headers", redact(headers)),
			logger.NewField("body", string(body)),
		)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, err
	}

	if c.debug {
		c.log.DebugContext(ctx, "http response",
			logger.NewField("status", resp.StatusCode()),
			logger.NewField("duration", resp.Time().String()),
			logger.NewField("body", string(resp.Body())),
		)
	}

	return &HTTPResponse{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}

// redact 调试日志中隐藏签名和密钥类请求头
func redact(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSecretHeader(k) && len(v) > 4 {
			v = v[:4] + "****"
		}
		out[k] = v
	}
	return out
}

func isSecretHeader(k string) bool {
	switch http.CanonicalHeaderKey(k) {
	case "Authorization", "Api-Sign", "Ok-Access-Sign", "Sign", "X-Bapi-Sign", "Bfx-Signature", "X-Mbx-Apikey":
		return true
	}
	return false
}
