package orderbook

import "github.com/lemconn/exwire/model"

// Subscription 向一个消费者推送订单簿视图。只保留最新视图，
// 消费慢时跳过中间视图，不阻塞行情流
type Subscription struct {
	market string
	depth  int
	ch     chan model.OrderBookView
	book   *book
	closed bool
}

// C 视图通道，订单簿或订阅关闭时关闭
func (s *Subscription) C() <-chan model.OrderBookView { return s.ch }

// Market 订阅的市场
func (s *Subscription) Market() string { return s.market }

// Close 停止推送
func (s *Subscription) Close() {
	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	if s.book.subs != nil {
		delete(s.book.subs, s)
	}
	s.closeLocked()
}

func (s *Subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *Subscription) offer(v model.OrderBookView) {
	select {
	case s.ch <- v:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// Subscribe 订阅市场的订单簿，每侧最多 maxDepth 档（0 表示全部）。
// 订单簿已是 Live 时立即推送一次；已关闭的订单簿返回已关闭的订阅
func (e *Engine) Subscribe(market string, maxDepth int) *Subscription {
	b := e.get(market, true)
	s := &Subscription{
		market: market,
		depth:  maxDepth,
		ch:     make(chan model.OrderBookView, 1),
		book:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Closed || b.subs == nil {
		s.closeLocked()
		return s
	}
	b.subs[s] = struct{}{}
	if b.state == Live {
		s.offer(b.viewLocked(s.depth))
	}
	return s
}

func (b *book) viewLocked(depth int) model.OrderBookView {
	v := b.ob.View(depth)
	v.Exchange = b.exchange
	return v
}

func (b *book) publishLocked() {
	for s := range b.subs {
		s.offer(b.viewLocked(s.depth))
	}
}
