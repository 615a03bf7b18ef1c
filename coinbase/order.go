package coinbase

import (
	"context"
	"net/http"
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

// configuration 按订单类型与 TIF 选择 order_configuration
func configuration(req model.OrderRequest, args *option.ExchangeArgsOptions) orderConfiguration {
	size := req.Amount.String()
	if req.Type == model.OrderTypeMarket {
		return orderConfiguration{MarketIOC: &marketIOC{BaseSize: size}}
	}
	price := req.Price.String()
	switch args.TimeInForceOr(option.GTC) {
	case option.IOC:
		return orderConfiguration{SorIOC: &limitIOC{BaseSize: size, LimitPrice: price}}
	case option.FOK:
		return orderConfiguration{LimitFOK: &limitIOC{BaseSize: size, LimitPrice: price}}
	}
	return orderConfiguration{LimitGTC: &limitGTC{BaseSize: size, LimitPrice: price, PostOnly: args.IsPostOnly()}}
}

// CreateOrder 创建订单，order_configuration 是嵌套对象，请求体预先编码
func (c *Coinbase) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := c.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}
	clientID := exchange.ClientOrderID(coinbaseName, req)
	body, err := json.Marshal(coinbaseCreateOrder{
		ClientOrderID:      clientID,
		ProductID:          id,
		Side:               strings.ToUpper(string(req.Side)),
		OrderConfiguration: configuration(req, args),
	})
	if err != nil {
		return model.OrderResult{}, err
	}

	r := dispatch.NewRequest(http.MethodPost, brokeragePrefix+"/orders", true)
	r.RawJSON = body
	ack, err := dispatch.Do[coinbaseOrderAck](ctx, c.Dispatcher(), r)
	if err != nil {
		return model.OrderResult{}, err
	}
	if !ack.Success {
		e := ack.ErrorResponse
		reason := e.Message
		if reason == "" {
			reason = e.NewOrderFailureReason
		}
		if reason == "" {
			reason = e.PreviewFailureReason
		}
		return model.OrderResult{}, types.NewExchangeError(coinbaseName, e.Error, reason)
	}
	return model.OrderResult{
		ID:            ack.SuccessResponse.OrderID,
		ClientOrderID: clientID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        model.OrderStatusPending,
		Amount:        req.Amount,
		Filled:        decimal.Zero,
		Timestamp:     time.Now(),
	}, nil
}

// CancelOrder 通过 batch_cancel 取消单个订单
func (c *Coinbase) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if _, err := c.MarketID(symbol); err != nil {
		return err
	}
	body, err := json.Marshal(map[string][]string{"order_ids": {orderID}})
	if err != nil {
		return err
	}
	r := dispatch.NewRequest(http.MethodPost, brokeragePrefix+"/orders/batch_cancel", true)
	r.RawJSON = body
	res, err := dispatch.Do[coinbaseCancelResults](ctx, c.Dispatcher(), r)
	if err != nil {
		return err
	}
	for _, item := range res.Results {
		if item.OrderID == orderID && !item.Success {
			return types.NewExchangeError(coinbaseName, item.FailureReason, "cancel "+orderID+" failed")
		}
	}
	return nil
}
