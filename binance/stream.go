package binance

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
)

// StreamProtocol Binance WebSocket 协议。
// 深度流 <symbol>@depth@100ms 只推送增量，每条携带 U（首个）和 u（最后一个）更新ID
type StreamProtocol struct {
	url   string
	reqID atomic.Int64

	mu      sync.RWMutex
	markets map[string]string // btcusdt -> BTC/USDT
}

// NewStreamProtocol 创建 WebSocket 协议
func NewStreamProtocol(url string) *StreamProtocol {
	return &StreamProtocol{url: url, markets: make(map[string]string)}
}

// Name 交易所名称
func (p *StreamProtocol) Name() string { return binanceName }

// URL WebSocket 地址
func (p *StreamProtocol) URL() string { return p.url }

func (p *StreamProtocol) params(topics []stream.Topic) ([]string, error) {
	out := make([]string, 0, len(topics))
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range topics {
		name, err := streamName(t.Market)
		if err != nil {
			return nil, err
		}
		p.markets[name] = t.Market
		switch t.Kind {
		case stream.KindBook:
			out = append(out, name+"@depth@100ms")
		case stream.KindTicker:
			out = append(out, name+"@ticker")
		case stream.KindTrades:
			out = append(out, name+"@trade")
		default:
			return nil, fmt.Errorf("unsupported stream kind %s", t.Kind)
		}
	}
	return out, nil
}

func (p *StreamProtocol) request(method string, topics []stream.Topic) ([][]byte, error) {
	params, err := p.params(topics)
	if err != nil {
		return nil, err
	}
	frame, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
		"id":     p.reqID.Add(1),
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// SubscribeMessages {"method":"SUBSCRIBE","params":["btcusdt@depth@100ms"],"id":1}
func (p *StreamProtocol) SubscribeMessages(topics []stream.Topic) ([][]byte, error) {
	return p.request("SUBSCRIBE", topics)
}

// UnsubscribeMessages {"method":"UNSUBSCRIBE",...}
func (p *StreamProtocol) UnsubscribeMessages(topics []stream.Topic, _ *stream.ChannelMap) ([][]byte, error) {
	return p.request("UNSUBSCRIBE", topics)
}

func (p *StreamProtocol) market(id string) string {
	p.mu.RLock()
	m, ok := p.markets[strings.ToLower(id)]
	p.mu.RUnlock()
	if ok {
		return m
	}
	return fromBinanceSymbol(id)
}

// rawFrame 按原始 key 解码。Binance 的字段名大小写敏感（b/B、e/E），不能直接解到结构体
type rawFrame map[string]json.RawMessage

func (f rawFrame) str(key string) string {
	var s string
	if raw, ok := f[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func (f rawFrame) decode(key string, v any) error {
	raw, ok := f[key]
	if !ok {
		return fmt.Errorf("missing field %q", key)
	}
	return json.Unmarshal(raw, v)
}

func (f rawFrame) decimal(key string) (types.ExDecimal, error) {
	var d types.ExDecimal
	err := f.decode(key, &d)
	return d, err
}

// Decode 解析深度增量、24小时行情和逐笔成交
func (p *StreamProtocol) Decode(frame []byte, _ *stream.ChannelMap) ([]stream.Event, error) {
	var f rawFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, err
	}

	// 订阅应答 {"result":null,"id":1}
	if _, ok := f["id"]; ok {
		if raw, ok := f["error"]; ok && string(raw) != "null" {
			var e struct {
				Code int    `json:"code"`
				Msg  string `json:"msg"`
			}
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, err
			}
			return []stream.Event{{
				Kind: stream.EventError,
				Err:  types.NewExchangeError(binanceName, strconv.Itoa(e.Code), e.Msg),
			}}, nil
		}
		return nil, nil
	}

	var eventTime types.ExTimestamp
	if _, ok := f["E"]; ok {
		if err := f.decode("E", &eventTime); err != nil {
			return nil, err
		}
	}
	market := p.market(f.str("s"))

	switch f.str("e") {
	case "depthUpdate":
		var first, last int64
		var bids, asks [][]types.ExDecimal
		for key, dst := range map[string]any{"U": &first, "u": &last, "b": &bids, "a": &asks} {
			if err := f.decode(key, dst); err != nil {
				return nil, err
			}
		}
		return []stream.Event{{
			Kind:  stream.EventBook,
			Topic: stream.Topic{Market: market, Kind: stream.KindBook},
			Book: orderbook.Update{
				Bids:          exchange.Levels(bids),
				Asks:          exchange.Levels(asks),
				FirstSequence: first,
				Sequence:      last,
				Timestamp:     eventTime.Time,
			},
		}}, nil

	case "24hrTicker":
		t := model.Ticker{Symbol: market, Timestamp: eventTime.Time}
		for key, dst := range map[string]*decimal.Decimal{
			"b": &t.Bid, "B": &t.BidSize,
			"a": &t.Ask, "A": &t.AskSize,
			"c": &t.Last, "v": &t.Volume, "q": &t.QuoteVolume,
		} {
			d, err := f.decimal(key)
			if err != nil {
				return nil, err
			}
			*dst = d.Decimal
		}
		return []stream.Event{{
			Kind:   stream.EventTicker,
			Topic:  stream.Topic{Market: market, Kind: stream.KindTicker},
			Ticker: t,
		}}, nil

	case "trade":
		price, err := f.decimal("p")
		if err != nil {
			return nil, err
		}
		amount, err := f.decimal("q")
		if err != nil {
			return nil, err
		}
		var id int64
		var tradeTime types.ExTimestamp
		var buyerMaker bool
		for key, dst := range map[string]any{"t": &id, "T": &tradeTime, "m": &buyerMaker} {
			if err := f.decode(key, dst); err != nil {
				return nil, err
			}
		}
		// 买方是 maker 说明主动方是卖方
		side := model.OrderSideBuy
		if buyerMaker {
			side = model.OrderSideSell
		}
		return []stream.Event{{
			Kind:  stream.EventTrades,
			Topic: stream.Topic{Market: market, Kind: stream.KindTrades},
			Trades: []model.Trade{{
				ID:        strconv.FormatInt(id, 10),
				Symbol:    market,
				Side:      side,
				Price:     price.Decimal,
				Amount:    amount.Decimal,
				Timestamp: tradeTime.Time,
			}},
		}}, nil
	}
	return nil, nil
}

var _ stream.Protocol = (*StreamProtocol)(nil)
