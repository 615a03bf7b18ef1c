package kraken

import (
	"context"
	"net/http"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/types"
)

func privateRequest(path string) *dispatch.Request {
	r := dispatch.NewRequest(http.MethodPost, path, true)
	r.Encoding = dispatch.EncodingForm
	return r
}

// CreateOrder 创建订单
func (k *Kraken) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := k.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}
	clientID := exchange.ClientOrderID(krakenName, req)

	r := privateRequest("/0/private/AddOrder")
	r.Params.SetBody("pair", id)
	r.Params.SetBody("type", string(req.Side))
	r.Params.SetBody("ordertype", string(req.Type))
	r.Params.SetBody("volume", req.Amount)
	if req.Type == model.OrderTypeLimit {
		r.Params.SetBody("price", req.Price)
		if args.IsPostOnly() {
			r.Params.SetBody("oflags", "post")
		}
		if tif := args.TimeInForceOr(option.GTC); !tif.IsGTC() {
			r.Params.SetBody("timeinforce", tif.Upper())
		}
	}
	r.Params.SetBody("cl_ord_id", clientID)

	res, err := dispatch.Do[krakenAddOrder](ctx, k.Dispatcher(), r)
	if err != nil {
		return model.OrderResult{}, err
	}
	if len(res.TxID) == 0 {
		return model.OrderResult{}, types.NewExchangeError(krakenName, "", "no txid in AddOrder result")
	}
	return model.OrderResult{
		ID:            res.TxID[0],
		ClientOrderID: clientID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        model.OrderStatusPending,
		Amount:        req.Amount,
		Message:       res.Descr.Order,
	}, nil
}

// CancelOrder 按 txid 取消订单，symbol 仅用于校验
func (k *Kraken) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if _, err := k.MarketID(symbol); err != nil {
		return err
	}
	r := privateRequest("/0/private/CancelOrder")
	r.Params.SetBody("txid", orderID)
	_, err := k.Dispatcher().Execute(ctx, r)
	return err
}
