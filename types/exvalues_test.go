package types

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExValues_QueryFormatting(t *testing.T) {
	ts := time.Date(2025, 12, 19, 1, 2, 3, 4, time.FixedZone("CST", 8*3600))

	v := NewExValues()
	v.SetQuery("symbol", "BTCUSDT")
	v.SetQuery("limit", 100)
	v.SetQuery("postOnly", true)
	v.SetQuery("price", decimal.RequireFromString("12.340"))
	v.SetQuery("ratio", 0.25)
	v.SetQuery("since", ts)
	v.SetQuery("filter", json.RawMessage(`{"x":1}`))

	assert.Equal(t, "100", v.GetQuery("limit"))
	assert.Equal(t, "true", v.GetQuery("postOnly"))
	assert.Equal(t, "12.34", v.GetQuery("price"))
	assert.Equal(t, "0.25", v.GetQuery("ratio"))
	assert.Equal(t, "2025-12-18T17:02:03.000000004Z", v.GetQuery("since"))
	assert.Equal(t, `{"x":1}`, v.GetQuery("filter"))
	assert.Contains(t, v.EncodeQuery(), "symbol=BTCUSDT&limit=100&postOnly=true&price=12.34&ratio=0.25&since=")

	assert.False(t, v.HasQuery("missing"))
	assert.Empty(t, v.GetQuery("missing"))
}

func TestExValues_RepeatedKeys(t *testing.T) {
	v := NewExValues()
	v.SetQuery("id", []int{1, 2, 3})
	assert.Equal(t, "id=1&id=2&id=3", v.EncodeQuery())

	v.SetQuery("id", []string{"a"})
	assert.Equal(t, "id=a", v.EncodeQuery())

	v.AddQuery("id", []int64{7, 8})
	v.AddQuery("id", "z")
	assert.Equal(t, "id=a&id=7&id=8&id=z", v.EncodeQuery())
}

func TestExValues_JoinPath(t *testing.T) {
	v := NewExValues()
	assert.Equal(t, "/api/v3/depth", v.JoinPath("/api/v3/depth"))

	v.SetQuery("symbol", "BTCUSDT")
	v.AddQuery("type", "a")
	v.AddQuery("type", "b")
	assert.Equal(t, "/api/v3/depth?symbol=BTCUSDT&type=a&type=b", v.JoinPath("/api/v3/depth"))
	assert.Equal(t, "/v5/x?cat=spot&symbol=BTCUSDT&type=a&type=b", v.JoinPath("/v5/x?cat=spot"))
}

func TestExValues_Sections(t *testing.T) {
	v := NewExValues()
	v.SetBody("instId", "BTC-USDT")
	v.AddBody("tag", "a")
	v.AddBody("tag", "b")
	v.SetHeader("OK-ACCESS-KEY", "k")
	v.AddHeader("X-Multi", "1")
	v.AddHeader("X-Multi", "2")

	assert.True(t, v.HasBody("instId"))
	assert.False(t, v.HasQuery("instId"))
	assert.Equal(t, "a", v.GetBody("tag"))
	assert.Equal(t, map[string]any{"instId": "BTC-USDT", "tag": []string{"a", "b"}}, v.EncodeBody())

	assert.True(t, v.HasHeader("OK-ACCESS-KEY"))
	assert.Equal(t, "k", v.GetHeader("OK-ACCESS-KEY"))
	assert.Equal(t, []string{"OK-ACCESS-KEY", "X-Multi"}, v.HeaderKeys())
	assert.Equal(t, map[string]any{"OK-ACCESS-KEY": "k", "X-Multi": []string{"1", "2"}}, v.EncodeHeader())

	v.Reset()
	assert.Empty(t, v.EncodeBody())
	assert.Empty(t, v.HeaderKeys())
}

func TestExValues_EncodeForm(t *testing.T) {
	v := NewExValues()
	v.SetBody("nonce", int64(1700000000000))
	v.SetBody("pair", "XBT/USD")
	v.AddBody("oflags", []string{"post only", "fciq"})

	assert.Equal(t, "nonce=1700000000000&pair=XBT%2FUSD&oflags=post+only&oflags=fciq", v.EncodeForm())
}

func TestExValues_EncodeJSON(t *testing.T) {
	v := NewExValues()
	v.SetQuery("symbol", "BTCUSDT")

	b, err := v.EncodeJSON()
	require.NoError(t, err)
	assert.Nil(t, b, "a request without body fields has no body")

	v.SetBody("instId", "BTC-USDT")
	v.SetBody("sz", decimal.RequireFromString("0.5"))
	b, err = v.EncodeJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"instId":"BTC-USDT","sz":"0.5"}`, string(b))
}

func TestExValues_SortQueryAndClone(t *testing.T) {
	v := NewExValues()
	v.SetQuery("timestamp", 2)
	v.SetQuery("symbol", "BTCUSDT")
	v.SetHeader("X-MBX-APIKEY", "k")

	c := v.Clone()
	v.SortQuery()
	assert.Equal(t, "symbol=BTCUSDT&timestamp=2", v.EncodeQuery())
	assert.Equal(t, "timestamp=2&symbol=BTCUSDT", c.EncodeQuery())

	c.SetQuery("signature", "abc")
	assert.False(t, v.HasQuery("signature"))
	assert.Equal(t, "k", c.GetHeader("X-MBX-APIKEY"))
}
