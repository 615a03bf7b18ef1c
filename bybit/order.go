package bybit

import (
	"context"
	"net/http"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
)

// bybitSide buy -> Buy
func bybitSide(s model.OrderSide) string {
	if s == model.OrderSideSell {
		return "Sell"
	}
	return "Buy"
}

// CreateOrder 创建现货订单，市价单数量按基础货币计
func (b *Bybit) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := b.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}
	clientID := exchange.ClientOrderID(bybitName, req)

	r := dispatch.NewRequest(http.MethodPost, "/v5/order/create", true)
	r.Params.SetBody("category", spotCategory)
	r.Params.SetBody("symbol", id)
	r.Params.SetBody("side", bybitSide(req.Side))
	r.Params.SetBody("qty", req.Amount)
	if req.Type == model.OrderTypeMarket {
		r.Params.SetBody("orderType", "Market")
		r.Params.SetBody("marketUnit", "baseCoin")
	} else {
		r.Params.SetBody("orderType", "Limit")
		r.Params.SetBody("price", req.Price)
		if args.IsPostOnly() {
			r.Params.SetBody("timeInForce", "PostOnly")
		} else {
			r.Params.SetBody("timeInForce", args.TimeInForceOr(option.GTC).Upper())
		}
	}
	r.Params.SetBody("orderLinkId", clientID)

	ack, err := dispatch.Do[bybitOrderAck](ctx, b.Dispatcher(), r)
	if err != nil {
		return model.OrderResult{}, err
	}
	return model.OrderResult{
		ID:            ack.OrderID,
		ClientOrderID: ack.OrderLinkID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        model.OrderStatusPending,
		Amount:        req.Amount,
	}, nil
}

// CancelOrder 取消订单
func (b *Bybit) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := b.MarketID(symbol)
	if err != nil {
		return err
	}
	r := dispatch.NewRequest(http.MethodPost, "/v5/order/cancel", true)
	r.Params.SetBody("category", spotCategory)
	r.Params.SetBody("symbol", id)
	r.Params.SetBody("orderId", orderID)
	_, err = b.Dispatcher().Execute(ctx, r)
	return err
}
