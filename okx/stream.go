package okx

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
)

// okxArg 频道参数
type okxArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// okxPush WebSocket 推送或事件
type okxPush struct {
	Event  string          `json:"event"`
	Code   string          `json:"code"`
	Msg    string          `json:"msg"`
	Arg    okxArg          `json:"arg"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// StreamProtocol OKX 公共频道：books、tickers、trades
type StreamProtocol struct {
	url         string
	bookChannel string
}

// NewStreamProtocol 创建公共频道协议，深度使用 400 档 books 频道
func NewStreamProtocol(url string) *StreamProtocol {
	return &StreamProtocol{url: url, bookChannel: "books"}
}

// Name 交易所名称
func (p *StreamProtocol) Name() string { return okxName }

// URL WebSocket 地址
func (p *StreamProtocol) URL() string { return p.url }

// PingInterval 30 秒无消息会被断开
func (p *StreamProtocol) PingInterval() time.Duration { return 25 * time.Second }

// PingMessage 文本 "ping"
func (p *StreamProtocol) PingMessage() []byte { return []byte("ping") }

func (p *StreamProtocol) channel(k stream.Kind) (string, error) {
	switch k {
	case stream.KindBook:
		return p.bookChannel, nil
	case stream.KindTicker:
		return "tickers", nil
	case stream.KindTrades:
		return "trades", nil
	}
	return "", fmt.Errorf("unsupported stream kind %s", k)
}

func (p *StreamProtocol) kind(channel string) (stream.Kind, bool) {
	switch channel {
	case p.bookChannel:
		return stream.KindBook, true
	case "tickers":
		return stream.KindTicker, true
	case "trades":
		return stream.KindTrades, true
	}
	return 0, false
}

func (p *StreamProtocol) op(op string, topics []stream.Topic) ([][]byte, error) {
	args := make([]okxArg, 0, len(topics))
	for _, t := range topics {
		ch, err := p.channel(t.Kind)
		if err != nil {
			return nil, err
		}
		id, err := toOKXSymbol(t.Market)
		if err != nil {
			return nil, err
		}
		args = append(args, okxArg{Channel: ch, InstID: id})
	}
	frame, err := json.Marshal(map[string]any{"op": op, "args": args})
	if err != nil {
		return nil, err
	}
	return [][]byte{frame}, nil
}

// SubscribeMessages {"op":"subscribe","args":[{"channel":"books","instId":"BTC-USDT"}]}
func (p *StreamProtocol) SubscribeMessages(topics []stream.Topic) ([][]byte, error) {
	return p.op("subscribe", topics)
}

// UnsubscribeMessages {"op":"unsubscribe",...}
func (p *StreamProtocol) UnsubscribeMessages(topics []stream.Topic, _ *stream.ChannelMap) ([][]byte, error) {
	return p.op("unsubscribe", topics)
}

// Decode 解析事件与数据推送
func (p *StreamProtocol) Decode(frame []byte, _ *stream.ChannelMap) ([]stream.Event, error) {
	if bytes.Equal(bytes.TrimSpace(frame), []byte("pong")) {
		return nil, nil
	}
	var msg okxPush
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}

	topic := stream.Topic{Market: fromOKXSymbol(msg.Arg.InstID)}
	kind, known := p.kind(msg.Arg.Channel)
	topic.Kind = kind

	switch msg.Event {
	case "":
	case "login":
		if msg.Code != "" && msg.Code != "0" {
			return []stream.Event{{Kind: stream.EventAuth, Err: classify(msg.Code, 0, msg.Msg)}}, nil
		}
		return []stream.Event{{Kind: stream.EventAuth}}, nil
	case "subscribe":
		if !known {
			return nil, nil
		}
		return []stream.Event{{Kind: stream.EventSubscribed, Topic: topic}}, nil
	case "error":
		err := classify(msg.Code, 0, msg.Msg)
		if _, auth := loginCodes[msg.Code]; auth {
			return []stream.Event{{Kind: stream.EventAuth, Err: err}}, nil
		}
		return []stream.Event{{Kind: stream.EventError, Topic: topic, Err: err}}, nil
	default:
		return nil, nil
	}

	if !known {
		return nil, nil
	}
	switch kind {
	case stream.KindBook:
		var books []okxBook
		if err := json.Unmarshal(msg.Data, &books); err != nil {
			return nil, err
		}
		events := make([]stream.Event, 0, len(books))
		for _, b := range books {
			u := orderbook.Update{
				Snapshot:  msg.Action == "snapshot",
				Bids:      exchange.Levels(b.Bids),
				Asks:      exchange.Levels(b.Asks),
				Sequence:  b.SeqID,
				Timestamp: b.Ts.Time,
			}
			if !u.Snapshot && b.PrevSeqID >= 0 {
				u.FirstSequence = b.PrevSeqID + 1
			}
			events = append(events, stream.Event{Kind: stream.EventBook, Topic: topic, Book: u})
		}
		return events, nil

	case stream.KindTicker:
		var ts []okxTicker
		if err := json.Unmarshal(msg.Data, &ts); err != nil {
			return nil, err
		}
		events := make([]stream.Event, 0, len(ts))
		for _, t := range ts {
			events = append(events, stream.Event{Kind: stream.EventTicker, Topic: topic, Ticker: toTicker(topic.Market, t)})
		}
		return events, nil

	case stream.KindTrades:
		var ts []okxTrade
		if err := json.Unmarshal(msg.Data, &ts); err != nil {
			return nil, err
		}
		trades := make([]model.Trade, 0, len(ts))
		for _, t := range ts {
			trades = append(trades, model.Trade{
				ID:        t.TradeID,
				Symbol:    topic.Market,
				Side:      model.OrderSide(t.Side),
				Price:     t.Px.Decimal,
				Amount:    t.Sz.Decimal,
				Timestamp: t.Ts.Time,
			})
		}
		return []stream.Event{{Kind: stream.EventTrades, Topic: topic, Trades: trades}}, nil
	}
	return nil, nil
}

// loginCodes 登录失败的错误码
var loginCodes = map[string]struct{}{
	"60004": {}, "60005": {}, "60006": {}, "60007": {}, "60009": {}, "60011": {}, "60022": {}, "60024": {},
}

// AuthStreamProtocol 登录后订阅 books50-l2-tbt 逐笔深度（VIP 用户可用）
type AuthStreamProtocol struct {
	*StreamProtocol
	apiKey     string
	secret     string
	passphrase string
}

// NewAuthStreamProtocol 创建需要登录的频道协议
func NewAuthStreamProtocol(p *StreamProtocol, apiKey, secret, passphrase string) *AuthStreamProtocol {
	tbt := *p
	tbt.bookChannel = "books50-l2-tbt"
	return &AuthStreamProtocol{StreamProtocol: &tbt, apiKey: apiKey, secret: secret, passphrase: passphrase}
}

// AuthMessage 登录签名串: timestamp(秒) + "GET" + "/users/self/verify"
func (p *AuthStreamProtocol) AuthMessage(now time.Time) ([]byte, error) {
	if p.apiKey == "" || p.secret == "" || p.passphrase == "" {
		return nil, fmt.Errorf("okx login requires api key, secret and passphrase")
	}
	ts := strconv.FormatInt(now.Unix(), 10)
	sign := common.SignHMAC256Base64(ts+"GET/users/self/verify", p.secret)
	return json.Marshal(map[string]any{
		"op": "login",
		"args": []map[string]string{{
			"apiKey":     p.apiKey,
			"passphrase": p.passphrase,
			"timestamp":  ts,
			"sign":       sign,
		}},
	})
}

var (
	_ stream.Protocol      = (*StreamProtocol)(nil)
	_ stream.KeepAlive     = (*StreamProtocol)(nil)
	_ stream.Authenticator = (*AuthStreamProtocol)(nil)
)
