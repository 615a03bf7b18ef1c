package bitfinex

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/stream"
	"github.com/lemconn/exwire/types"
)

// bitfinexEvent 对象形式的事件消息
type bitfinexEvent struct {
	Event   string      `json:"event"`
	Channel string      `json:"channel"`
	ChanID  json.Number `json:"chanId"`
	Symbol  string      `json:"symbol"`
	Code    int64       `json:"code"`
	Msg     string      `json:"msg"`
	Status  string      `json:"status"`
}

// StreamProtocol Bitfinex v2 公共频道。订阅确认中返回 chanId，之后的数据帧
// 只带 chanId，需要通过连接内的 ChannelMap 找回交易对和频道类型
type StreamProtocol struct {
	url string
	// bookLen 深度频道档位数: 1、25、100、250
	bookLen string
}

// NewStreamProtocol 创建公共频道协议
func NewStreamProtocol(url string) *StreamProtocol {
	return &StreamProtocol{url: url, bookLen: "25"}
}

// Name 交易所名称
func (p *StreamProtocol) Name() string { return bitfinexName }

// URL WebSocket 地址
func (p *StreamProtocol) URL() string { return p.url }

func channelOf(k stream.Kind) (string, error) {
	switch k {
	case stream.KindBook:
		return "book", nil
	case stream.KindTicker:
		return "ticker", nil
	case stream.KindTrades:
		return "trades", nil
	}
	return "", fmt.Errorf("unsupported stream kind %s", k)
}

func kindOf(channel string) (stream.Kind, bool) {
	switch channel {
	case "book":
		return stream.KindBook, true
	case "ticker":
		return stream.KindTicker, true
	case "trades":
		return stream.KindTrades, true
	}
	return 0, false
}

// SubscribeMessages 每个主题一条 subscribe 消息
func (p *StreamProtocol) SubscribeMessages(topics []stream.Topic) ([][]byte, error) {
	frames := make([][]byte, 0, len(topics))
	for _, t := range topics {
		ch, err := channelOf(t.Kind)
		if err != nil {
			return nil, err
		}
		id, err := toBitfinexSymbol(t.Market)
		if err != nil {
			return nil, err
		}
		msg := map[string]string{"event": "subscribe", "channel": ch, "symbol": id}
		if t.Kind == stream.KindBook {
			msg["prec"] = "P0"
			msg["freq"] = "F0"
			msg["len"] = p.bookLen
		}
		frame, err := json.Marshal(msg)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// UnsubscribeMessages 按 chanId 退订，未绑定的主题跳过
func (p *StreamProtocol) UnsubscribeMessages(topics []stream.Topic, channels *stream.ChannelMap) ([][]byte, error) {
	if channels == nil {
		return nil, nil
	}
	frames := make([][]byte, 0, len(topics))
	for _, t := range topics {
		id, ok := channels.ID(t)
		if !ok {
			continue
		}
		frames = append(frames, []byte(`{"event":"unsubscribe","chanId":`+id+`}`))
	}
	return frames, nil
}

// Decode 对象为事件，数组为频道数据 [chanId, payload...]
func (p *StreamProtocol) Decode(frame []byte, channels *stream.ChannelMap) ([]stream.Event, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 {
		return nil, nil
	}
	if frame[0] == '{' {
		return p.decodeEvent(frame, channels)
	}
	return p.decodeData(frame, channels)
}

func (p *StreamProtocol) decodeEvent(frame []byte, channels *stream.ChannelMap) ([]stream.Event, error) {
	var ev bitfinexEvent
	if err := json.Unmarshal(frame, &ev); err != nil {
		return nil, err
	}
	switch ev.Event {
	case "subscribed":
		kind, ok := kindOf(ev.Channel)
		if !ok || channels == nil {
			return nil, nil
		}
		t := stream.Topic{Market: fromBitfinexSymbol(ev.Symbol), Kind: kind}
		channels.Bind(ev.ChanID.String(), t)
		return []stream.Event{{Kind: stream.EventSubscribed, Topic: t}}, nil
	case "unsubscribed":
		if channels != nil {
			channels.Unbind(ev.ChanID.String())
		}
		return nil, nil
	case "error":
		return []stream.Event{{Kind: stream.EventError, Err: classify(ev.Code, 0, ev.Msg)}}, nil
	}
	// info、conf、pong
	return nil, nil
}

func (p *StreamProtocol) decodeData(frame []byte, channels *stream.ChannelMap) ([]stream.Event, error) {
	var msg []json.RawMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, err
	}
	if len(msg) < 2 {
		return nil, fmt.Errorf("short data frame: %s", frame)
	}
	chanID, err := strconv.ParseInt(string(msg[0]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad channel id %s", msg[0])
	}
	if channels == nil {
		return nil, nil
	}
	topic, ok := channels.Lookup(strconv.FormatInt(chanID, 10))
	if !ok {
		// 退订后仍可能收到少量数据
		return nil, nil
	}

	payload := msg[1]
	if payload[0] == '"' {
		var tag string
		if err := json.Unmarshal(payload, &tag); err != nil {
			return nil, err
		}
		switch tag {
		case "hb":
			return nil, nil
		case "te":
			if len(msg) < 3 || topic.Kind != stream.KindTrades {
				return nil, nil
			}
			var row []types.ExDecimal
			if err := json.Unmarshal(msg[2], &row); err != nil {
				return nil, err
			}
			tr, ok := toTrade(topic.Market, row)
			if !ok {
				return nil, fmt.Errorf("short trade row: %s", msg[2])
			}
			return []stream.Event{{Kind: stream.EventTrades, Topic: topic, Trades: []model.Trade{tr}}}, nil
		}
		// "tu" 为 "te" 的重复确认
		return nil, nil
	}

	switch topic.Kind {
	case stream.KindBook:
		return p.decodeBook(topic, payload)
	case stream.KindTicker:
		var row []types.ExDecimal
		if err := json.Unmarshal(payload, &row); err != nil {
			return nil, err
		}
		t, err := toTicker(topic.Market, row)
		if err != nil {
			return nil, err
		}
		return []stream.Event{{Kind: stream.EventTicker, Topic: topic, Ticker: t}}, nil
	case stream.KindTrades:
		var rows [][]types.ExDecimal
		if err := json.Unmarshal(payload, &rows); err != nil {
			return nil, err
		}
		trades := make([]model.Trade, 0, len(rows))
		for _, r := range rows {
			if tr, ok := toTrade(topic.Market, r); ok {
				trades = append(trades, tr)
			}
		}
		// 快照按时间倒序推送
		model.SortTrades(trades)
		model.MarkSnapshot(trades)
		return []stream.Event{{Kind: stream.EventTrades, Topic: topic, Trades: trades}}, nil
	}
	return nil, nil
}

// decodeBook 快照为二维数组，增量为单个 [PRICE, COUNT, AMOUNT]；没有序列号
func (p *StreamProtocol) decodeBook(topic stream.Topic, payload json.RawMessage) ([]stream.Event, error) {
	trimmed := bytes.TrimLeft(payload[1:], " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == ']') {
		var rows [][]types.ExDecimal
		if err := json.Unmarshal(payload, &rows); err != nil {
			return nil, err
		}
		bids, asks := splitBook(rows)
		return []stream.Event{{Kind: stream.EventBook, Topic: topic, Book: orderbook.Update{
			Snapshot:  true,
			Bids:      bids,
			Asks:      asks,
			Timestamp: time.Now(),
		}}}, nil
	}

	var row []types.ExDecimal
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, err
	}
	side, lvl, ok := bookLevel(row)
	if !ok {
		return nil, fmt.Errorf("short book row: %s", payload)
	}
	u := orderbook.Update{Timestamp: time.Now()}
	if side == model.BookSideBid {
		u.Bids = []model.PriceLevel{lvl}
	} else {
		u.Asks = []model.PriceLevel{lvl}
	}
	return []stream.Event{{Kind: stream.EventBook, Topic: topic, Book: u}}, nil
}

var _ stream.Protocol = (*StreamProtocol)(nil)
