package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/orderbook"
	"github.com/lemconn/exwire/types"
	"golang.org/x/sync/errgroup"
)

// ErrClosed Close 之后调用 Run 或 Subscribe 返回
var ErrClosed = errors.New("stream: multiplexer closed")

// Recorder 接收行情流指标
type Recorder interface {
	ObserveReconnect(exchange string)
	ObserveFrame(exchange, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReconnect(string)     {}
func (nopRecorder) ObserveFrame(string, string) {}

// Options 多路复用器配置
type Options struct {
	Protocol Protocol
	Engine   *orderbook.Engine
	// OnTicker、OnTrades 在读协程中调用，不能阻塞
	OnTicker func(t model.Ticker)
	OnTrades func(market string, trades []model.Trade)

	Dialer *websocket.Dialer
	Logger logger.Interface
	// Recorder 默认不记录
	Recorder Recorder

	// MaxAuthFailures 连续登录失败次数达到后 Run 退出，默认 3
	MaxAuthFailures int
	// ReconnectInitial、ReconnectMax 重连退避的初始与最大间隔
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	// ReadTimeout 连接静默超过该时长即断开，默认 60s
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Multiplexer 管理一个交易所的 WebSocket 连接
type Multiplexer struct {
	opts   Options
	name   string
	log    logger.Interface
	rec    Recorder
	engine *orderbook.Engine

	mu       sync.Mutex
	topics   map[Topic]struct{}
	conn     *websocket.Conn
	channels *ChannelMap
	cancel   context.CancelFunc
	closed   bool

	writeMu      sync.Mutex
	authFailures int
}

// New 创建多路复用器，未指定 Engine 时使用默认引擎
func New(opts Options) *Multiplexer {
	if opts.MaxAuthFailures <= 0 {
		opts.MaxAuthFailures = 3
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 500 * time.Millisecond
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	m := &Multiplexer{
		opts:   opts,
		name:   opts.Protocol.Name(),
		log:    opts.Logger,
		rec:    opts.Recorder,
		engine: opts.Engine,
		topics: make(map[Topic]struct{}),
	}
	if m.log == nil {
		m.log = logger.NewNop()
	}
	if m.rec == nil {
		m.rec = nopRecorder{}
	}
	if m.engine == nil {
		m.engine = orderbook.NewEngine(orderbook.Options{Exchange: m.name, Logger: m.log})
	}
	return m
}

// Engine 返回由该连接驱动的订单簿引擎
func (m *Multiplexer) Engine() *orderbook.Engine { return m.engine }

// Topics 当前订阅列表
func (m *Multiplexer) Topics() []Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.topicsLocked()
}

func (m *Multiplexer) topicsLocked() []Topic {
	out := make([]Topic, 0, len(m.topics))
	for t := range m.topics {
		out = append(out, t)
	}
	sortTopics(out)
	return out
}

func (m *Multiplexer) active(t Topic) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.topics[t]
	return ok
}

// Subscribe 添加订阅：已连接时立即发送，每次重连后重新发送。
// 订单簿主题会重新打开之前关闭的订单簿
func (m *Multiplexer) Subscribe(topics ...Topic) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	var added []Topic
	for _, t := range topics {
		if _, ok := m.topics[t]; !ok {
			m.topics[t] = struct{}{}
			added = append(added, t)
		}
	}
	m.mu.Unlock()
	if len(added) == 0 {
		return nil
	}
	for _, t := range added {
		if t.Kind == KindBook {
			m.engine.Open(t.Market)
		}
	}

	frames, err := m.opts.Protocol.SubscribeMessages(added)
	if err != nil {
		return types.NewProtocolError(m.name, err)
	}
	return m.send(frames)
}

// Unsubscribe 取消订阅，并关闭被取消的订单簿主题对应的订单簿
func (m *Multiplexer) Unsubscribe(topics ...Topic) error {
	m.mu.Lock()
	var removed []Topic
	for _, t := range topics {
		if _, ok := m.topics[t]; ok {
			delete(m.topics, t)
			removed = append(removed, t)
		}
	}
	channels := m.channels
	m.mu.Unlock()
	if len(removed) == 0 {
		return nil
	}

	for _, t := range removed {
		if t.Kind == KindBook {
			m.engine.Close(t.Market)
		}
	}
	if channels == nil {
		return nil
	}
	frames, err := m.opts.Protocol.UnsubscribeMessages(removed, channels)
	if err != nil {
		return types.NewProtocolError(m.name, err)
	}
	return m.send(frames)
}

// send 在当前连接上发送帧。未连接时丢弃，Run 连接后会重发全部订阅
func (m *Multiplexer) send(frames [][]byte) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return nil
	}
	return m.write(conn, frames...)
}

func (m *Multiplexer) write(conn *websocket.Conn, frames ...[]byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	for _, f := range frames {
		_ = conn.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
			return types.NewTransportError(m.name, err)
		}
	}
	return nil
}

func (m *Multiplexer) ping(conn *websocket.Conn, frame []byte) error {
	if frame != nil {
		return m.write(conn, frame)
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.opts.WriteTimeout)); err != nil {
		return types.NewTransportError(m.name, err)
	}
	return nil
}

// Run 建立并维持连接，直到 ctx 结束或调用 Close。每次断开都先把所有订单簿
// 标记为 Stale 再重连；只有连续 MaxAuthFailures 次登录被拒才提前返回
func (m *Multiplexer) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.opts.ReconnectInitial
	bo.MaxInterval = m.opts.ReconnectMax

	for {
		established, err := m.session(ctx)
		if ctx.Err() != nil {
			m.engine.MarkAllStale(errors.New("stream stopped"))
			return nil
		}
		m.engine.MarkAllStale(err)

		if errors.Is(err, types.ErrAuth) {
			m.authFailures++
			if m.authFailures >= m.opts.MaxAuthFailures {
				m.log.Error(err, logger.NewField("exchange", m.name), logger.NewField("failures", m.authFailures))
				return err
			}
		}
		if established {
			bo.Reset()
		}

		sleep := bo.NextBackOff()
		m.log.Warn("stream disconnected",
			logger.NewField("exchange", m.name),
			logger.NewField("error", err.Error()),
			logger.NewField("reconnect_in", sleep.String()),
		)
		m.rec.ObserveReconnect(m.name)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session 运行一次连接。established 表示至少收到过一帧，此时重置重连退避
func (m *Multiplexer) session(ctx context.Context) (established bool, err error) {
	conn, _, err := m.opts.Dialer.DialContext(ctx, m.opts.Protocol.URL(), nil)
	if err != nil {
		return false, types.NewTransportError(m.name, err)
	}

	channels := NewChannelMap()
	m.mu.Lock()
	m.conn = conn
	m.channels = channels
	topics := m.topicsLocked()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
			m.channels = nil
		}
		m.mu.Unlock()
		_ = conn.Close()
	}()

	m.log.Info("stream connected", logger.NewField("exchange", m.name), logger.NewField("topics", len(topics)))

	if auth, ok := m.opts.Protocol.(Authenticator); ok {
		frame, err := auth.AuthMessage(time.Now())
		if err != nil {
			return false, &types.Error{Kind: types.KindAuth, Exchange: m.name, Message: "build login frame", Err: err}
		}
		if err := m.write(conn, frame); err != nil {
			return false, err
		}
	}
	if len(topics) > 0 {
		frames, err := m.opts.Protocol.SubscribeMessages(topics)
		if err != nil {
			return false, types.NewProtocolError(m.name, err)
		}
		if err := m.write(conn, frames...); err != nil {
			return false, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		// 让 ReadMessage 返回
		_ = conn.Close()
		return nil
	})
	g.Go(func() error {
		return m.readLoop(conn, channels, &established)
	})
	if ka, ok := m.opts.Protocol.(KeepAlive); ok && ka.PingInterval() > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(ka.PingInterval())
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := m.ping(conn, ka.PingMessage()); err != nil {
						return err
					}
				}
			}
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return established, err
}

func (m *Multiplexer) readLoop(conn *websocket.Conn, channels *ChannelMap, established *bool) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return types.NewTransportError(m.name, err)
		}
		*established = true

		events, err := m.opts.Protocol.Decode(frame, channels)
		if err != nil {
			m.rec.ObserveFrame(m.name, "dropped")
			m.log.Warn("dropping frame",
				logger.NewField("exchange", m.name),
				logger.NewField("error", err.Error()),
				logger.NewField("frame", truncate(frame)),
			)
			continue
		}
		m.rec.ObserveFrame(m.name, "ok")
		for _, ev := range events {
			if err := m.handle(conn, channels, ev); err != nil {
				return err
			}
		}
	}
}

func (m *Multiplexer) handle(conn *websocket.Conn, channels *ChannelMap, ev Event) error {
	switch ev.Kind {
	case EventAuth:
		if ev.Err != nil {
			var te *types.Error
			if !errors.As(ev.Err, &te) || te.Kind != types.KindAuth {
				return &types.Error{Kind: types.KindAuth, Exchange: m.name, Message: "login rejected", Err: ev.Err}
			}
			return ev.Err
		}
		m.authFailures = 0
		m.log.Info("stream authenticated", logger.NewField("exchange", m.name))
	case EventSubscribed:
		m.log.Debug("subscribed", logger.NewField("exchange", m.name), logger.NewField("topic", ev.Topic.String()))
	case EventError:
		m.log.Warn("stream error message",
			logger.NewField("exchange", m.name),
			logger.NewField("topic", ev.Topic.String()),
			logger.NewField("error", fmt.Sprint(ev.Err)),
		)
	case EventBook:
		if !m.active(ev.Topic) {
			return nil
		}
		u := ev.Book
		u.Market = ev.Topic.Market
		if res := m.engine.Apply(u); res == orderbook.GapDetected && m.engine.Convention() == orderbook.SnapshotThenDeltas {
			return m.resubscribe(conn, channels, ev.Topic)
		}
	case EventTicker:
		if m.opts.OnTicker != nil && m.active(ev.Topic) {
			t := ev.Ticker
			t.Symbol = ev.Topic.Market
			m.opts.OnTicker(t)
		}
	case EventTrades:
		if m.opts.OnTrades != nil && m.active(ev.Topic) {
			m.opts.OnTrades(ev.Topic.Market, ev.Trades)
		}
	}
	return nil
}

// resubscribe 在当前连接上重新订阅 t 以获取新快照
func (m *Multiplexer) resubscribe(conn *websocket.Conn, channels *ChannelMap, t Topic) error {
	m.log.Info("resubscribing after sequence gap", logger.NewField("exchange", m.name), logger.NewField("topic", t.String()))
	unsub, err := m.opts.Protocol.UnsubscribeMessages([]Topic{t}, channels)
	if err != nil {
		return types.NewProtocolError(m.name, err)
	}
	sub, err := m.opts.Protocol.SubscribeMessages([]Topic{t})
	if err != nil {
		return types.NewProtocolError(m.name, err)
	}
	return m.write(conn, append(unsub, sub...)...)
}

// Close 停止 Run，清空订阅并关闭所有订单簿
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	cancel := m.cancel
	conn := m.conn
	m.topics = make(map[Topic]struct{})
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		m.writeMu.Unlock()
	}
	m.engine.CloseAll()
	return nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
