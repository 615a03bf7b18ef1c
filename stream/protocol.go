// Package stream 每个交易所维持一条 WebSocket 连接，把消息分发给订单簿引擎
// 以及行情、成交回调
package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
)

// Kind 订阅主题的逻辑类型
type Kind int

const (
	KindBook Kind = iota + 1
	KindTicker
	KindTrades
)

func (k Kind) String() string {
	switch k {
	case KindBook:
		return "book"
	case KindTicker:
		return "ticker"
	case KindTrades:
		return "trades"
	default:
		return "unknown"
	}
}

// ParseKind Kind.String 的逆操作
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "book":
		return KindBook, true
	case "ticker":
		return KindTicker, true
	case "trades":
		return KindTrades, true
	}
	return 0, false
}

// Topic 一个逻辑订阅：统一格式的市场加上主题类型
type Topic struct {
	Market string
	Kind   Kind
}

func (t Topic) String() string { return t.Kind.String() + ":" + t.Market }

// Protocol 交易所的行情流协议
type Protocol interface {
	Name() string
	URL() string
	SubscribeMessages(topics []Topic) ([][]byte, error)
	// UnsubscribeMessages 可以从 channels 查找交易所分配的频道 id
	UnsubscribeMessages(topics []Topic, channels *ChannelMap) ([][]byte, error)
	// Decode 把一帧解析为事件。按频道 id 推送数据的交易所通过 channels
	// 绑定和解析 id；心跳和无人关心的确认消息不产生事件
	Decode(frame []byte, channels *ChannelMap) ([]Event, error)
}

// Authenticator 连接后需要登录的协议实现，登录结果随后以 EventAuth 返回
type Authenticator interface {
	AuthMessage(now time.Time) ([]byte, error)
}

// KeepAlive 需要应用层心跳的协议实现
type KeepAlive interface {
	PingInterval() time.Duration
	// PingMessage 返回要发送的文本帧，nil 表示发送控制帧 ping
	PingMessage() []byte
}

// EventKind 事件类型
type EventKind int

const (
	EventBook EventKind = iota + 1
	EventTicker
	EventTrades
	EventSubscribed
	EventAuth
	EventError
)

// Event 从一帧中解析出的一个事件
type Event struct {
	Kind   EventKind
	Topic  Topic
	Book   orderbook.Update
	Ticker model.Ticker
	Trades []model.Trade
	// Err 登录失败的 EventAuth 和 EventError 携带
	Err error
}

// ChannelMap 交易所分配的频道 id 与主题的绑定，属于单条连接，重连后重建
type ChannelMap struct {
	mu      sync.RWMutex
	byID    map[string]Topic
	byTopic map[Topic]string
}

// NewChannelMap 创建空映射
func NewChannelMap() *ChannelMap {
	return &ChannelMap{byID: make(map[string]Topic), byTopic: make(map[Topic]string)}
}

// Bind 绑定 id 与 t，替换两者之前的绑定
func (c *ChannelMap) Bind(id string, t Topic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byID[id]; ok {
		delete(c.byTopic, old)
	}
	if old, ok := c.byTopic[t]; ok {
		delete(c.byID, old)
	}
	c.byID[id] = t
	c.byTopic[t] = id
}

// Lookup 按频道 id 查找主题
func (c *ChannelMap) Lookup(id string) (Topic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[id]
	return t, ok
}

// ID 返回 t 绑定的频道 id
func (c *ChannelMap) ID(t Topic) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byTopic[t]
	return id, ok
}

// Unbind 解除 id 的绑定
func (c *ChannelMap) Unbind(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.byID[id]; ok {
		delete(c.byTopic, t)
		delete(c.byID, id)
	}
}

// Len 已绑定的频道数
func (c *ChannelMap) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func sortTopics(ts []Topic) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Market != ts[j].Market {
			return ts[i].Market < ts[j].Market
		}
		return ts[i].Kind < ts[j].Kind
	})
}
