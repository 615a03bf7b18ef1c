package binance

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
)

// CreateOrder 创建现货订单
func (b *Binance) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := b.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}

	r := dispatch.NewRequest(http.MethodPost, "/api/v3/order", true)
	r.Params.SetQuery("symbol", id)
	r.Params.SetQuery("side", strings.ToUpper(string(req.Side)))
	switch {
	case req.Type == model.OrderTypeMarket:
		r.Params.SetQuery("type", "MARKET")
	case args.IsPostOnly():
		r.Params.SetQuery("type", "LIMIT_MAKER")
	default:
		r.Params.SetQuery("type", "LIMIT")
		r.Params.SetQuery("timeInForce", args.TimeInForceOr(option.GTC).Upper())
	}
	r.Params.SetQuery("quantity", req.Amount)
	if req.Type == model.OrderTypeLimit {
		r.Params.SetQuery("price", req.Price)
	}
	r.Params.SetQuery("newClientOrderId", exchange.ClientOrderID(binanceName, req))
	r.Params.SetQuery("newOrderRespType", "FULL")

	data, err := dispatch.Do[binanceOrder](ctx, b.Dispatcher(), r)
	if err != nil {
		return model.OrderResult{}, err
	}
	return toOrderResult(req.Symbol, data)
}

// CancelOrder 取消订单，orderID 为交易所订单ID
func (b *Binance) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := b.MarketID(symbol)
	if err != nil {
		return err
	}
	r := dispatch.NewRequest(http.MethodDelete, "/api/v3/order", true)
	r.Params.SetQuery("symbol", id)
	r.Params.SetQuery("orderId", orderID)
	_, err = b.Dispatcher().Execute(ctx, r)
	return err
}

// toOrderResult 转换订单响应，多笔成交用 MergeResults 计算均价和手续费
func toOrderResult(symbol string, o binanceOrder) (model.OrderResult, error) {
	result := model.OrderResult{
		ID:            strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        symbol,
		Side:          model.OrderSide(strings.ToLower(o.Side)),
		Status:        parseOrderStatus(o.Status),
		Amount:        o.OrigQty.Decimal,
		Filled:        o.ExecutedQty.Decimal,
		Timestamp:     o.TransactTime.Time,
	}

	if len(o.Fills) > 0 {
		fills := make([]model.OrderResult, 0, len(o.Fills))
		for _, f := range o.Fills {
			fills = append(fills, model.OrderResult{
				ID:           result.ID,
				Symbol:       symbol,
				Amount:       f.Qty.Decimal,
				Filled:       f.Qty.Decimal,
				AveragePrice: f.Price.Decimal,
				Fee:          model.Fee{Currency: f.CommissionAsset, Cost: f.Commission.Decimal},
			})
		}
		merged, err := model.MergeResults(fills...)
		if err != nil {
			return result, err
		}
		result.AveragePrice = merged.AveragePrice
		result.Fee = merged.Fee
	} else if o.ExecutedQty.IsPositive() {
		result.AveragePrice = o.CummulativeQuoteQty.Div(o.ExecutedQty.Decimal)
	}
	return result, nil
}

// parseOrderStatus Binance 订单状态 -> 统一状态
func parseOrderStatus(s string) model.OrderStatus {
	switch s {
	case "NEW", "PENDING_NEW", "PENDING_CANCEL":
		return model.OrderStatusPending
	case "PARTIALLY_FILLED":
		return model.OrderStatusPartiallyFilled
	case "FILLED":
		return model.OrderStatusFilled
	case "CANCELED", "EXPIRED", "EXPIRED_IN_MATCH":
		return model.OrderStatusCanceled
	default:
		return model.OrderStatusError
	}
}
