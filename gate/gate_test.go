package gate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T, h http.HandlerFunc) *Gate {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewGate(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("key"),
		option.WithSecretKey("secret"),
	)
	require.NoError(t, err)
	return g
}

func TestGate_FetchOrderBook(t *testing.T) {
	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/spot/order_book", r.URL.Path)
		assert.Equal(t, "BTC_USDT", r.URL.Query().Get("currency_pair"))
		assert.Equal(t, "true", r.URL.Query().Get("with_id"))
		_, _ = w.Write([]byte(`{"id":123456,"current":1623898993123,"update":1623898993121,"asks":[["1.52","1.151"],["1.53","1.218"]],"bids":[["1.17","201.863"]]}`))
	})

	u, err := g.FetchOrderBook(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, int64(123456), u.Sequence)
	assert.Len(t, u.Asks, 2)
	assert.Equal(t, "201.863", u.Bids[0].Amount.String())
	assert.Equal(t, int64(1623898993123), u.Timestamp.UnixMilli())
}

func TestGate_LoadMarkets(t *testing.T) {
	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"ETH_USDT","base":"ETH","quote":"USDT","min_base_amount":"0.001","amount_precision":3,"precision":2,"trade_status":"tradable"},
			{"id":"OLD_USDT","base":"OLD","quote":"USDT","amount_precision":0,"precision":6,"trade_status":"untradable"}]`))
	})

	require.NoError(t, g.LoadMarkets(context.Background(), false))
	m, err := g.GetMarket("ETH/USDT")
	require.NoError(t, err)
	assert.True(t, m.Active)
	assert.Equal(t, "0.01", m.PriceStep.String())
	assert.Equal(t, "0.001", m.AmountStep.String())

	old, err := g.GetMarket("OLD/USDT")
	require.NoError(t, err)
	assert.False(t, old.Active)
	assert.Equal(t, "1", old.AmountStep.String())
}

func TestGate_CreateOrderSignature(t *testing.T) {
	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ts := r.Header.Get("Timestamp")
		payload := fmt.Sprintf("POST\n/api/v4/spot/orders\n\n%s\n%s", common.HashSHA512(body), ts)
		assert.Equal(t, common.SignHMAC512(payload, "secret"), r.Header.Get("SIGN"))
		assert.Equal(t, "key", r.Header.Get("KEY"))

		var sent map[string]string
		assert.NoError(t, json.Unmarshal(body, &sent))
		assert.Equal(t, "poc", sent["time_in_force"])
		assert.Equal(t, "t-abc", sent["text"])

		_, _ = w.Write([]byte(`{"id":"12332324","text":"t-abc","create_time":"1548000000","status":"open","currency_pair":"ETH_BTC","type":"limit","side":"buy",
			"amount":"1","price":"5.00032","left":"0.5","filled_amount":"0.5","avg_deal_price":"5.00032","fee":"0.005","fee_currency":"ETH"}`))
	})

	res, err := g.CreateOrder(context.Background(), model.OrderRequest{
		Symbol:        "ETH/BTC",
		Side:          model.OrderSideBuy,
		Type:          model.OrderTypeLimit,
		Amount:        decimal.NewFromInt(1),
		Price:         decimal.RequireFromString("5.00032"),
		ClientOrderID: "abc",
	}, option.WithPostOnly(true))
	require.NoError(t, err)
	assert.Equal(t, "12332324", res.ID)
	assert.Equal(t, model.OrderStatusPartiallyFilled, res.Status)
	assert.Equal(t, "ETH", res.Fee.Currency)
	assert.Equal(t, "0.005", res.Fee.Cost.String())
	assert.Equal(t, int64(1548000000), res.Timestamp.Unix())
}

func TestGate_CancelSignsQuery(t *testing.T) {
	g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v4/spot/orders/42", r.URL.Path)
		ts := r.Header.Get("Timestamp")
		payload := fmt.Sprintf("DELETE\n/api/v4/spot/orders/42\ncurrency_pair=BTC_USDT\n%s\n%s", common.HashSHA512(nil), ts)
		assert.Equal(t, common.SignHMAC512(payload, "secret"), r.Header.Get("SIGN"))
		_, _ = w.Write([]byte(`{"id":"42","status":"cancelled"}`))
	})

	require.NoError(t, g.CancelOrder(context.Background(), "BTC/USDT", "42"))
}

func TestGate_ErrorLabels(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `{"label":"INVALID_SIGNATURE","message":"Signature mismatch"}`, types.ErrAuth},
		{http.StatusTooManyRequests, `{"label":"TOO_MANY_REQUESTS","message":"Request Rate limit Exceeded"}`, types.ErrRateLimit},
		{http.StatusBadRequest, `{"label":"BALANCE_NOT_ENOUGH","message":"Not enough balance"}`, types.ErrExchange},
	}
	for _, c := range cases {
		g := newTestGate(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.status)
			_, _ = w.Write([]byte(c.body))
		})
		err := g.CancelOrder(context.Background(), "BTC/USDT", "1")
		assert.ErrorIs(t, err, c.want, c.body)
	}
}

func TestGateText(t *testing.T) {
	assert.Equal(t, "t-abc", gateText("abc"))
	assert.Equal(t, "t-abc", gateText("t-abc"))
	assert.Len(t, gateText(common.GenerateClientOrderID(gateName)), 28)
}

func TestProtocol_ParseServerTime(t *testing.T) {
	ts, err := NewProtocol(gateBaseURL).ParseServerTime([]byte(`{"server_time":1597026383085}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1597026383085), ts.UnixMilli())
}
