package coinbase

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const keyName = "organizations/org/apiKeys/key"

func newKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func newTestCoinbase(t *testing.T, h http.HandlerFunc, secret string) (*Coinbase, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewCoinbase(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey(keyName),
		option.WithSecretKey(secret),
	)
	require.NoError(t, err)
	return c, srv
}

func TestCoinbase_FetchOrderBook(t *testing.T) {
	c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/market/product_book", r.URL.Path)
		assert.Equal(t, "BTC-USD", r.URL.Query().Get("product_id"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"pricebook":{"product_id":"BTC-USD","bids":[{"price":"64000.01","size":"0.5"}],"asks":[{"price":"64000.5","size":"1.25"},{"price":"64001","size":"2"}],"time":"2024-05-01T12:00:00.123456Z"},"last":"64000.2"}`))
	}, "")

	u, err := c.FetchOrderBook(context.Background(), "BTC/USD", option.WithLimit(10))
	require.NoError(t, err)
	assert.True(t, u.Snapshot)
	assert.Equal(t, "BTC/USD", u.Market)
	assert.Zero(t, u.Sequence)
	require.Len(t, u.Bids, 1)
	require.Len(t, u.Asks, 2)
	assert.Equal(t, "1.25", u.Asks[0].Amount.String())
	assert.Equal(t, 2024, u.Timestamp.Year())
}

func TestCoinbase_FetchTickerCombinesBookAndProduct(t *testing.T) {
	c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/brokerage/market/product_book":
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(`{"pricebook":{"product_id":"ETH-USD","bids":[{"price":"3000","size":"4"}],"asks":[{"price":"3000.5","size":"3"}],"time":"2024-05-01T12:00:00Z"}}`))
		case "/api/v3/brokerage/market/products/ETH-USD":
			_, _ = w.Write([]byte(`{"product_id":"ETH-USD","price":"3000.2","volume_24h":"100"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}, "")

	tk, err := c.FetchTicker(context.Background(), "ETH/USD")
	require.NoError(t, err)
	assert.Equal(t, "3000", tk.Bid.String())
	assert.Equal(t, "3", tk.AskSize.String())
	assert.Equal(t, "3000.2", tk.Last.String())
	assert.Equal(t, "300020", tk.QuoteVolume.String())
}

func TestCoinbase_LoadMarkets(t *testing.T) {
	c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SPOT", r.URL.Query().Get("product_type"))
		_, _ = w.Write([]byte(`{"products":[
			{"product_id":"BTC-USD","base_currency_id":"BTC","quote_currency_id":"USD","base_increment":"0.00000001","quote_increment":"0.01","price_increment":"0.01","base_min_size":"0.00000001","base_max_size":"3400","status":"online","trading_disabled":false,"product_type":"SPOT"},
			{"product_id":"OLD-USD","base_currency_id":"OLD","quote_currency_id":"USD","status":"delisted","trading_disabled":true,"product_type":"SPOT"}
		],"num_products":2}`))
	}, "")

	require.NoError(t, c.LoadMarkets(context.Background(), false))
	m, err := c.GetMarket("BTC/USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", m.ID)
	assert.True(t, m.Active)
	assert.Equal(t, "0.01", m.PriceStep.String())
	assert.Equal(t, "3400", m.MaxAmount.String())

	old, err := c.GetMarket("OLD/USD")
	require.NoError(t, err)
	assert.False(t, old.Active)
}

func TestCoinbase_CreateOrderSendsBearerJWT(t *testing.T) {
	key, secret := newKey(t)
	var host string
	c, srv := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/orders", r.URL.Path)
		auth := r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(auth, "Bearer "))

		tok, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(*jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"ES256"}))
		if assert.NoError(t, err) {
			claims := tok.Claims.(jwt.MapClaims)
			assert.Equal(t, keyName, claims["sub"])
			assert.Equal(t, "POST "+host+"/api/v3/brokerage/orders", claims["uri"])
		}

		body, _ := io.ReadAll(r.Body)
		var sent struct {
			ClientOrderID      string `json:"client_order_id"`
			ProductID          string `json:"product_id"`
			Side               string `json:"side"`
			OrderConfiguration map[string]map[string]any `json:"order_configuration"`
		}
		assert.NoError(t, json.Unmarshal(body, &sent))
		assert.Equal(t, "BTC-USD", sent.ProductID)
		assert.Equal(t, "BUY", sent.Side)
		assert.Equal(t, "abc", sent.ClientOrderID)
		gtc := sent.OrderConfiguration["limit_limit_gtc"]
		assert.Equal(t, "0.01", gtc["base_size"])
		assert.Equal(t, "60000", gtc["limit_price"])
		assert.Equal(t, true, gtc["post_only"])

		_, _ = w.Write([]byte(`{"success":true,"success_response":{"order_id":"11111-000000-000000","product_id":"BTC-USD","side":"BUY","client_order_id":"abc"}}`))
	}, strings.ReplaceAll(secret, "\n", `\n`))
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host = u.Host

	res, err := c.CreateOrder(context.Background(), model.OrderRequest{
		Symbol:        "BTC/USD",
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Amount:        decimal.RequireFromString("0.01"),
		Price:         decimal.NewFromInt(60000),
		ClientOrderID: "abc",
	}, option.WithPostOnly(true))
	require.NoError(t, err)
	assert.Equal(t, "11111-000000-000000", res.ID)
	assert.Equal(t, model.OrderStatusPending, res.Status)
}

func TestCoinbase_OrderFailureInBody(t *testing.T) {
	_, secret := newKey(t)
	c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error_response":{"error":"INSUFFICIENT_FUND","message":"Insufficient balance in source account","new_order_failure_reason":"INSUFFICIENT_FUND"}}`))
	}, secret)

	_, err := c.CreateOrder(context.Background(), model.OrderRequest{
		Symbol: "BTC/USD",
		Side:   model.OrderSideSell,
		Type:   model.OrderTypeMarket,
		Amount: decimal.RequireFromString("1"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrExchange)
	var te *types.Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "INSUFFICIENT_FUND", te.Code)
}

func TestCoinbase_ErrorClassification(t *testing.T) {
	_, secret := newKey(t)
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `{"error":"UNAUTHORIZED","code":16,"message":"Unauthorized"}`, types.ErrAuth},
		{http.StatusTooManyRequests, `{"error":"RESOURCE_EXHAUSTED","message":"too many"}`, types.ErrRateLimit},
		{http.StatusBadRequest, `{"error":"INVALID_ARGUMENT","message":"bad order id"}`, types.ErrExchange},
		{http.StatusNotFound, `not found`, types.ErrExchange},
	}
	for _, tc := range cases {
		c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}, secret)
		err := c.CancelOrder(context.Background(), "BTC/USD", "x")
		assert.ErrorIs(t, err, tc.want, tc.body)
	}
}

func TestCoinbase_CancelFailureReason(t *testing.T) {
	_, secret := newKey(t)
	c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"order_ids":["o-1"]}`, string(body))
		_, _ = w.Write([]byte(`{"results":[{"success":false,"failure_reason":"UNKNOWN_CANCEL_ORDER","order_id":"o-1"}]}`))
	}, secret)

	err := c.CancelOrder(context.Background(), "BTC/USD", "o-1")
	assert.ErrorIs(t, err, types.ErrExchange)
}

func TestCoinbase_BadKeyIsAuthError(t *testing.T) {
	c, _ := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}, "not a pem key")
	err := c.CancelOrder(context.Background(), "BTC/USD", "x")
	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestProtocol_ParseServerTime(t *testing.T) {
	p := NewProtocol(coinbaseBaseURL)
	ts, err := p.ParseServerTime([]byte(`{"iso":"2023-05-01T12:00:00Z","epochSeconds":"1682942400","epochMillis":"1682942400123"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1682942400123), ts.UnixMilli())
}
