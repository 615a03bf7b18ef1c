package coinbase

import (
	"github.com/lemconn/exwire/types"
)

// coinbaseProduct 交易产品
type coinbaseProduct struct {
	ProductID       string          `json:"product_id"`
	BaseCurrencyID  string          `json:"base_currency_id"`
	QuoteCurrencyID string          `json:"quote_currency_id"`
	BaseIncrement   types.ExDecimal `json:"base_increment"`
	QuoteIncrement  types.ExDecimal `json:"quote_increment"`
	PriceIncrement  types.ExDecimal `json:"price_increment"`
	BaseMinSize     types.ExDecimal `json:"base_min_size"`
	BaseMaxSize     types.ExDecimal `json:"base_max_size"`
	Price           types.ExDecimal `json:"price"`
	Volume24h       types.ExDecimal `json:"volume_24h"`
	Status          string          `json:"status"`
	TradingDisabled bool            `json:"trading_disabled"`
	ProductType     string          `json:"product_type"`
}

type coinbaseProducts struct {
	Products []coinbaseProduct `json:"products"`
}

type coinbaseLevel struct {
	Price types.ExDecimal `json:"price"`
	Size  types.ExDecimal `json:"size"`
}

// coinbasePriceBook product_book 接口的 pricebook 字段
type coinbasePriceBook struct {
	ProductID string            `json:"product_id"`
	Bids      []coinbaseLevel   `json:"bids"`
	Asks      []coinbaseLevel   `json:"asks"`
	Time      types.ExTimestamp `json:"time"`
}

type coinbaseProductBook struct {
	PriceBook coinbasePriceBook `json:"pricebook"`
	Last      types.ExDecimal   `json:"last"`
}

// 下单 order_configuration 的几种形式
type (
	marketIOC struct {
		BaseSize string `json:"base_size"`
	}
	limitGTC struct {
		BaseSize   string `json:"base_size"`
		LimitPrice string `json:"limit_price"`
		PostOnly   bool   `json:"post_only"`
	}
	limitIOC struct {
		BaseSize   string `json:"base_size"`
		LimitPrice string `json:"limit_price"`
	}
)

type orderConfiguration struct {
	MarketIOC *marketIOC `json:"market_market_ioc,omitempty"`
	LimitGTC  *limitGTC  `json:"limit_limit_gtc,omitempty"`
	LimitFOK  *limitIOC  `json:"limit_limit_fok,omitempty"`
	SorIOC    *limitIOC  `json:"sor_limit_ioc,omitempty"`
}

type coinbaseCreateOrder struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"`
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

// coinbaseOrderAck 下单结果，业务失败时 HTTP 状态仍为 200
type coinbaseOrderAck struct {
	Success         bool `json:"success"`
	SuccessResponse struct {
		OrderID       string `json:"order_id"`
		ProductID     string `json:"product_id"`
		Side          string `json:"side"`
		ClientOrderID string `json:"client_order_id"`
	} `json:"success_response"`
	ErrorResponse struct {
		Error                 string `json:"error"`
		Message               string `json:"message"`
		ErrorDetails          string `json:"error_details"`
		PreviewFailureReason  string `json:"preview_failure_reason"`
		NewOrderFailureReason string `json:"new_order_failure_reason"`
	} `json:"error_response"`
}

type coinbaseCancelResults struct {
	Results []struct {
		Success       bool   `json:"success"`
		FailureReason string `json:"failure_reason"`
		OrderID       string `json:"order_id"`
	} `json:"results"`
}
