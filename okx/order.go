package okx

import (
	"context"
	"errors"
	"net/http"

	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/types"
)

var errEmptyAck = errors.New("empty order ack")

// ordType 统一订单类型 + 调用参数 -> OKX ordType
func ordType(t model.OrderType, args *option.ExchangeArgsOptions) string {
	if t == model.OrderTypeMarket {
		return "market"
	}
	if args.IsPostOnly() {
		return "post_only"
	}
	switch args.TimeInForceOr(option.GTC) {
	case option.IOC:
		return "ioc"
	case option.FOK:
		return "fok"
	default:
		return "limit"
	}
}

// CreateOrder 创建现货订单（tdMode=cash）
func (x *OKX) CreateOrder(ctx context.Context, req model.OrderRequest, opts ...option.ArgsOption) (model.OrderResult, error) {
	if err := exchange.ValidateOrder(req); err != nil {
		return model.OrderResult{}, err
	}
	args := option.ApplyArgs(opts...)
	id, err := x.MarketID(req.Symbol)
	if err != nil {
		return model.OrderResult{}, err
	}
	clientID := exchange.ClientOrderID(okxName, req)
	// OKX clOrdId 只允许字母数字，最长 32 位
	clientID = alnum(clientID, 32)

	r := dispatch.NewRequest(http.MethodPost, "/api/v5/trade/order", true)
	r.Params.SetBody("instId", id)
	r.Params.SetBody("tdMode", "cash")
	r.Params.SetBody("side", string(req.Side))
	r.Params.SetBody("ordType", ordType(req.Type, args))
	r.Params.SetBody("sz", req.Amount)
	if req.Type == model.OrderTypeLimit {
		r.Params.SetBody("px", req.Price)
	} else {
		// 市价买单默认按计价货币下单，这里统一按基础货币数量
		r.Params.SetBody("tgtCcy", "base_ccy")
	}
	r.Params.SetBody("clOrdId", clientID)

	acks, err := dispatch.Do[[]okxOrderAck](ctx, x.Dispatcher(), r)
	if err != nil {
		return model.OrderResult{}, err
	}
	if len(acks) == 0 {
		return model.OrderResult{}, types.NewProtocolError(okxName, errEmptyAck)
	}
	ack := acks[0]
	return model.OrderResult{
		ID:            ack.OrdID,
		ClientOrderID: ack.ClOrdID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Status:        model.OrderStatusPending,
		Amount:        req.Amount,
		Timestamp:     ack.Ts.Time,
		Message:       ack.SMsg,
	}, nil
}

// CancelOrder 取消订单
func (x *OKX) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := x.MarketID(symbol)
	if err != nil {
		return err
	}
	r := dispatch.NewRequest(http.MethodPost, "/api/v5/trade/cancel-order", true)
	r.Params.SetBody("instId", id)
	r.Params.SetBody("ordId", orderID)
	_, err = x.Dispatcher().Execute(ctx, r)
	return err
}

func alnum(s string, max int) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s) && len(out) < max; i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			out = append(out, c)
		}
	}
	return string(out)
}
