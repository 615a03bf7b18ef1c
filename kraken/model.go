package kraken

import (
	"github.com/lemconn/exwire/types"
)

// krakenAssetPair 交易对信息
type krakenAssetPair struct {
	Altname      string          `json:"altname"`
	WSName       string          `json:"wsname"`
	Base         string          `json:"base"`
	Quote        string          `json:"quote"`
	PairDecimals int32           `json:"pair_decimals"`
	LotDecimals  int32           `json:"lot_decimals"`
	OrderMin     types.ExDecimal `json:"ordermin"`
	TickSize     types.ExDecimal `json:"tick_size"`
	Status       string          `json:"status"`
}

// krakenTicker 行情，数组字段: a/b = [价格, 整手数量, 数量]，c = [价格, 数量]，v = [今日, 24小时]
type krakenTicker struct {
	A []types.ExDecimal `json:"a"`
	B []types.ExDecimal `json:"b"`
	C []types.ExDecimal `json:"c"`
	V []types.ExDecimal `json:"v"`
	P []types.ExDecimal `json:"p"`
}

// krakenDepth 深度，档位为 [价格, 数量, 时间戳]
type krakenDepth struct {
	Asks [][]types.ExDecimal `json:"asks"`
	Bids [][]types.ExDecimal `json:"bids"`
}

// krakenAddOrder 下单结果
type krakenAddOrder struct {
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
	TxID []string `json:"txid"`
}
