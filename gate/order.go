package gate

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
)

// CreateOrder 创建现货订单。Gate 市价买单的 amount 为计价货币金额
func (g *Gate) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := g.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}

	r := dispatch.NewRequest(http.MethodPost, gateAPIPrefix+"/spot/orders", true)
	r.Params.SetBody("currency_pair", id)
	r.Params.SetBody("side", string(req.Side))
	r.Params.SetBody("amount", req.Amount)
	r.Params.SetBody("text", gateText(exchange.ClientOrderID(gateName, req)))
	if req.Type == model.OrderTypeMarket {
		r.Params.SetBody("type", "market")
		r.Params.SetBody("time_in_force", "ioc")
	} else {
		r.Params.SetBody("type", "limit")
		r.Params.SetBody("price", req.Price)
		if args.IsPostOnly() {
			r.Params.SetBody("time_in_force", "poc")
		} else {
			r.Params.SetBody("time_in_force", args.TimeInForceOr(option.GTC).Lower())
		}
	}

	o, err := dispatch.Do[gateOrder](ctx, g.Dispatcher(), r)
	if err != nil {
		return model.OrderResult{}, err
	}
	return toOrderResult(req.Symbol, o), nil
}

// CancelOrder 取消订单
func (g *Gate) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := g.MarketID(symbol)
	if err != nil {
		return err
	}
	r := dispatch.NewRequest(http.MethodDelete, gateAPIPrefix+"/spot/orders/"+url.PathEscape(orderID), true)
	r.Params.SetQuery("currency_pair", id)
	_, err = g.Dispatcher().Execute(ctx, r)
	return err
}

func toOrderResult(symbol string, o gateOrder) model.OrderResult {
	return model.OrderResult{
		ID:            o.ID,
		ClientOrderID: o.Text,
		Symbol:        symbol,
		Side:          model.OrderSide(o.Side),
		Status:        parseOrderStatus(o),
		Amount:        o.Amount.Decimal,
		Filled:        o.FilledAmount.Decimal,
		AveragePrice:  o.AvgDealPrice.Decimal,
		Fee:           model.Fee{Currency: o.FeeCurrency, Cost: o.Fee.Decimal},
		Timestamp:     o.CreateTime.Time,
		Message:       o.FinishAs,
	}
}

// parseOrderStatus open/closed/cancelled，结合成交量区分部分成交
func parseOrderStatus(o gateOrder) model.OrderStatus {
	switch o.Status {
	case "closed":
		return model.OrderStatusFilled
	case "cancelled":
		return model.OrderStatusCanceled
	}
	if o.FilledAmount.IsPositive() {
		return model.OrderStatusPartiallyFilled
	}
	return model.OrderStatusPending
}
