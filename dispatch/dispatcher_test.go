package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	OK   bool            `json:"ok"`
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// fakeProtocol signs nonce+method+path+body with HMAC-SHA256 and wraps
// payloads in {"ok":..,"data":..}.
type fakeProtocol struct {
	base string
}

func (p *fakeProtocol) Name() string                  { return "fake" }
func (p *fakeProtocol) BaseURL() string               { return p.base }
func (p *fakeProtocol) NonceStyle() common.NonceStyle { return common.NonceUnixMillis }

func (p *fakeProtocol) Sign(call *Call, creds Credentials, nonce common.Nonce) error {
	body, err := call.Body()
	if err != nil {
		return err
	}
	msg := nonce.String() + call.Method + call.PathWithQuery() + string(body)
	call.SetHeader("X-Key", creds.APIKey)
	call.SetHeader("X-Nonce", nonce.String())
	call.SetHeader("X-Sign", common.SignHMAC256(msg, creds.Secret))
	return nil
}

func (p *fakeProtocol) CheckResponse(status int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return types.NewProtocolError(p.Name(), err)
	}
	if !env.OK {
		return types.NewExchangeError(p.Name(), env.Code, env.Msg)
	}
	return nil
}

func (p *fakeProtocol) Unwrap(body []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, types.NewProtocolError(p.Name(), err)
	}
	return env.Data, nil
}

func (p *fakeProtocol) ServerTimeRequest() *Request { return Get("/time") }

func (p *fakeProtocol) ParseServerTime(body []byte) (time.Time, error) {
	var v struct {
		Data struct {
			ServerTime int64 `json:"serverTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(v.Data.ServerTime), nil
}

var testCreds = Credentials{APIKey: "key", Secret: "secret"}

func verifySignature(t *testing.T, r *http.Request) {
	t.Helper()
	body, _ := io.ReadAll(r.Body)
	msg := r.Header.Get("X-Nonce") + r.Method + r.URL.RequestURI() + string(body)
	assert.Equal(t, common.SignHMAC256(msg, "secret"), r.Header.Get("X-Sign"))
	assert.Equal(t, "key", r.Header.Get("X-Key"))
}

func TestExecute_AuthRequiresCredentials(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	d := New(&fakeProtocol{base: srv.URL})
	_, err := d.Execute(context.Background(), NewRequest(http.MethodGet, "/private", true))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAuth)
	assert.Zero(t, atomic.LoadInt32(&hits), "no request may leave without keys")
}

func TestExecute_SignsAndSends(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		verifySignature(t, r)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"ok":true,"data":{"id":"42","qty":"1.5"}}`))
	}))
	defer srv.Close()

	d := New(&fakeProtocol{base: srv.URL}, WithCredentials(testCreds))
	req := NewRequest(http.MethodPost, "/order", true)
	req.Params.SetQuery("symbol", "BTCUSDT")
	req.Params.SetBody("side", "buy")
	req.Params.SetBody("qty", "1.5")

	type orderAck struct {
		ID  string          `json:"id"`
		Qty types.ExDecimal `json:"qty"`
	}
	ack, err := Do[orderAck](context.Background(), d, req)
	require.NoError(t, err)
	assert.Equal(t, "42", ack.ID)
	assert.Equal(t, "1.5", ack.Qty.String())
}

func TestExecute_PublicRequestIsNotSigned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Sign"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"ok":true,"data":[]}`))
	}))
	defer srv.Close()

	fixed := time.UnixMilli(1700000000000)
	nonces := common.NewNonceProvider(common.NonceUnixMillis, common.WithNonceClock(func() time.Time { return fixed }))
	d := New(&fakeProtocol{base: srv.URL}, WithCredentials(testCreds), WithNonceProvider(nonces))
	req := Get("/ticker")
	req.Params.SetQuery("symbol", "BTCUSDT")
	_, err := d.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), nonces.Next().Value, "public calls do not consume nonces")
}

func TestExecute_EnvelopeErrorIsExchangeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"code":"51008","msg":"insufficient balance"}`))
	}))
	defer srv.Close()

	d := New(&fakeProtocol{base: srv.URL}, WithCredentials(testCreds))
	_, err := d.Execute(context.Background(), NewRequest(http.MethodPost, "/order", true))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExchange)
	assert.False(t, types.IsRetryable(err))

	var te *types.Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "51008", te.Code)
	assert.Equal(t, "insufficient balance", te.Message)
}

func TestExecute_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusTooManyRequests, `{"ok":false}`, types.ErrRateLimit},
		{http.StatusTeapot, ``, types.ErrRateLimit},
		{http.StatusUnauthorized, `{"ok":false,"code":"50113","msg":"invalid sign"}`, types.ErrAuth},
		{http.StatusForbidden, `{"ok":true}`, types.ErrAuth},
		{http.StatusBadGateway, `bad gateway`, types.ErrTransport},
		{http.StatusInternalServerError, `{"ok":false,"code":"10020","msg":"bad amount"}`, types.ErrExchange},
		{http.StatusOK, `<html>`, types.ErrProtocol},
	}
	for _, c := range cases {
		t.Run(strconv.Itoa(c.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte(c.body))
			}))
			defer srv.Close()

			d := New(&fakeProtocol{base: srv.URL}, WithCredentials(testCreds))
			_, err := d.Execute(context.Background(), NewRequest(http.MethodGet, "/x", true))
			assert.ErrorIs(t, err, c.want)
		})
	}
}

func TestExecute_TransportErrorStillConsumesNonce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	fixed := time.UnixMilli(1700000000000)
	nonces := common.NewNonceProvider(common.NonceUnixMillis, common.WithNonceClock(func() time.Time { return fixed }))
	d := New(&fakeProtocol{base: srv.URL}, WithCredentials(testCreds), WithNonceProvider(nonces))

	_, err := d.Execute(context.Background(), NewRequest(http.MethodGet, "/x", true))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrTransport)
	assert.True(t, types.IsRetryable(err))

	// the failed call used 1700000000000
	assert.Equal(t, int64(1700000000001), nonces.Next().Value)
}

func TestExecute_RetriesRateLimitThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"data":1}`))
	}))
	defer srv.Close()

	d := New(&fakeProtocol{base: srv.URL}, WithRetry(3, 5*time.Millisecond))
	n, err := Do[int](context.Background(), d, Get("/ping"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestExecute_NoRetryForExchangeErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"ok":false,"msg":"bad symbol"}`))
	}))
	defer srv.Close()

	d := New(&fakeProtocol{base: srv.URL}, WithRetry(3, time.Millisecond))
	_, err := d.Execute(context.Background(), Get("/ticker"))
	assert.ErrorIs(t, err, types.ErrExchange)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestExecute_GateTimeoutIsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	gate := common.NewRateGate(1, time.Hour)
	d := New(&fakeProtocol{base: srv.URL}, WithRateGate(gate), WithGateTimeout(20*time.Millisecond))

	_, err := d.Execute(context.Background(), Get("/a"))
	require.NoError(t, err)
	_, err = d.Execute(context.Background(), Get("/b"))
	assert.ErrorIs(t, err, types.ErrRateLimit)
}

func TestSyncClock(t *testing.T) {
	server := time.Now().Add(3 * time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time", r.URL.Path)
		_, _ = w.Write([]byte(`{"ok":true,"data":{"serverTime":` + strconv.FormatInt(server.UnixMilli(), 10) + `}}`))
	}))
	defer srv.Close()

	d := New(&fakeProtocol{base: srv.URL})
	require.NoError(t, d.SyncClock(context.Background()))
	assert.InDelta(t, float64(3*time.Second), float64(d.Nonces().Offset()), float64(500*time.Millisecond))
}

func TestCall_FormBodyAndHeaders(t *testing.T) {
	req := NewRequest(http.MethodPost, "/0/private/Balance", true)
	req.Encoding = EncodingForm
	req.Params.SetBody("nonce", 5)
	req.Params.SetHeader("User-Agent", "exwire")

	call := newCall(req, "https://api.example.com/")
	body, err := call.Body()
	require.NoError(t, err)
	assert.Equal(t, "nonce=5", string(body))

	// the body is frozen once read
	call.Params.SetBody("late", 1)
	body, _ = call.Body()
	assert.Equal(t, "nonce=5", string(body))

	call.SetHeader("API-Key", "k")
	h := call.allHeaders()
	assert.Equal(t, "application/x-www-form-urlencoded", h["Content-Type"])
	assert.Equal(t, "exwire", h["User-Agent"])
	assert.Equal(t, "k", h["API-Key"])
	assert.Equal(t, "https://api.example.com/0/private/Balance", call.URL())

	// the original request is untouched
	assert.False(t, req.Params.HasBody("late"))
}

func TestCall_RawJSONBody(t *testing.T) {
	req := NewRequest(http.MethodPost, "/orders", true)
	req.RawJSON = []byte(`{"order_configuration":{"market_market_ioc":{"base_size":"1"}}}`)

	call := newCall(req, "https://api.example.com")
	body, err := call.Body()
	require.NoError(t, err)
	assert.JSONEq(t, string(req.RawJSON), string(body))
	assert.Equal(t, "application/json", call.allHeaders()["Content-Type"])
}
