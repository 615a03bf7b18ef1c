package bitfinex

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
)

// bitfinexSubmit 下单请求体，cid 必须是整数
type bitfinexSubmit struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	Price  string `json:"price,omitempty"`
	CID    int64  `json:"cid"`
	Flags  int    `json:"flags,omitempty"`
}

// orderType 现货订单需加 EXCHANGE 前缀
func orderType(t model.OrderType, args *option.ExchangeArgsOptions) string {
	if t == model.OrderTypeMarket {
		return "EXCHANGE MARKET"
	}
	switch args.TimeInForceOr(option.GTC) {
	case option.IOC:
		return "EXCHANGE IOC"
	case option.FOK:
		return "EXCHANGE FOK"
	}
	return "EXCHANGE LIMIT"
}

// clientID 数字形式的客户端订单ID原样使用，否则按当前毫秒生成
func clientID(req model.OrderRequest) int64 {
	if id, err := strconv.ParseInt(req.ClientOrderID, 10, 64); err == nil && id > 0 {
		return id
	}
	return time.Now().UnixMilli()
}

// CreateOrder 创建订单，卖单数量为负
func (x *Bitfinex) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := x.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}
	submit := bitfinexSubmit{
		Type:   orderType(req.Type, args),
		Symbol: id,
		Amount: signedAmount(req.Side, req.Amount).String(),
		CID:    clientID(req),
	}
	if req.Type == model.OrderTypeLimit {
		submit.Price = req.Price.String()
		if args.IsPostOnly() {
			submit.Flags = flagPostOnly
		}
	}
	body, err := json.Marshal(submit)
	if err != nil {
		return model.OrderResult{}, err
	}

	r := dispatch.NewRequest(http.MethodPost, "/v2/auth/w/order/submit", true)
	r.RawJSON = body
	raw, err := x.Dispatcher().Execute(ctx, r)
	if err != nil {
		return model.OrderResult{}, err
	}
	res, err := parseNotification(raw)
	if err != nil {
		return model.OrderResult{}, err
	}
	res.Symbol = req.Symbol
	res.Side = req.Side
	return res, nil
}

// CancelOrder 按订单ID取消
func (x *Bitfinex) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if _, err := x.MarketID(symbol); err != nil {
		return err
	}
	oid, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("bitfinex order id must be numeric: %w", err)
	}
	r := dispatch.NewRequest(http.MethodPost, "/v2/auth/w/order/cancel", true)
	r.RawJSON = []byte(`{"id":` + strconv.FormatInt(oid, 10) + `}`)
	_, err = x.Dispatcher().Execute(ctx, r)
	return err
}

// parseNotification 解析 [MTS, TYPE, MSG_ID, null, [ORDER...], CODE, STATUS, TEXT]
func parseNotification(raw []byte) (model.OrderResult, error) {
	var n []json.RawMessage
	if err := json.Unmarshal(raw, &n); err != nil || len(n) < 8 {
		return model.OrderResult{}, types.NewProtocolError(bitfinexName, fmt.Errorf("malformed notification: %s", raw))
	}
	var status, text string
	_ = json.Unmarshal(n[6], &status)
	_ = json.Unmarshal(n[7], &text)
	if status != "SUCCESS" {
		return model.OrderResult{}, types.NewExchangeError(bitfinexName, status, text)
	}

	var orders [][]json.RawMessage
	if err := json.Unmarshal(n[4], &orders); err != nil || len(orders) == 0 || len(orders[0]) < orderMinLen {
		return model.OrderResult{}, types.NewProtocolError(bitfinexName, fmt.Errorf("notification has no order: %s", raw))
	}
	o := orders[0]
	num := func(i int) decimal.Decimal {
		var d types.ExDecimal
		_ = json.Unmarshal(o[i], &d)
		return d.Decimal
	}
	var state string
	_ = json.Unmarshal(o[orderStatus], &state)

	orig := num(orderAmountOrig).Abs()
	remaining := num(orderAmount).Abs()
	return model.OrderResult{
		ID:            num(orderID).String(),
		ClientOrderID: num(orderCID).String(),
		Status:        parseOrderStatus(state),
		Amount:        orig,
		Filled:        orig.Sub(remaining),
		AveragePrice:  num(orderPriceAvg),
		Timestamp:     time.UnixMilli(num(orderMTSCreate).IntPart()),
		Message:       text,
	}, nil
}

// parseOrderStatus ACTIVE、EXECUTED @ PRICE(AMOUNT)、PARTIALLY FILLED @ ...、CANCELED
func parseOrderStatus(s string) model.OrderStatus {
	switch {
	case strings.HasPrefix(s, "EXECUTED"):
		return model.OrderStatusFilled
	case strings.HasPrefix(s, "PARTIALLY FILLED"):
		return model.OrderStatusPartiallyFilled
	case strings.HasPrefix(s, "CANCELED"):
		return model.OrderStatusCanceled
	}
	return model.OrderStatusPending
}
