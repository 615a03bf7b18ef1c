package model

import (
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

// BookSide 订单簿方向
type BookSide uint8

const (
	// BookSideBid 买盘
	BookSideBid BookSide = iota
	// BookSideAsk 卖盘
	BookSideAsk
)

func (s BookSide) String() string {
	if s == BookSideAsk {
		return "ask"
	}
	return "bid"
}

const btreeDegree = 16

// PriceLevel 订单簿价位
type PriceLevel struct {
	// Price 价格
	Price decimal.Decimal `json:"price"`
	// Amount 数量
	Amount decimal.Decimal `json:"amount"`
}

func bidLess(a, b PriceLevel) bool { return a.Price.GreaterThan(b.Price) }
func askLess(a, b PriceLevel) bool { return a.Price.LessThan(b.Price) }

// OrderBook 订单簿。买盘按价格降序、卖盘按价格升序分别保存在两棵有序树中，
// 每个价位最多一条记录，数量为 0 的价位会被删除而不是保留。
// OrderBook 本身不加锁，由 orderbook.Engine 负责串行写入。
type OrderBook struct {
	// Symbol 交易对
	Symbol string
	// Sequence 最后应用的序列号，0 表示交易所未提供
	Sequence int64
	// UpdatedAt 最后更新时间
	UpdatedAt time.Time
	// FromSnapshot 当前内容是否完全来自最近一次快照（之后没有增量）
	FromSnapshot bool

	bids *btree.BTreeG[PriceLevel]
	asks *btree.BTreeG[PriceLevel]
}

// NewOrderBook 创建空订单簿
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   btree.NewG(btreeDegree, bidLess),
		asks:   btree.NewG(btreeDegree, askLess),
	}
}

func (b *OrderBook) side(s BookSide) *btree.BTreeG[PriceLevel] {
	if s == BookSideAsk {
		return b.asks
	}
	return b.bids
}

// Set 插入或替换价位；数量不为正时删除该价位
func (b *OrderBook) Set(s BookSide, price, amount decimal.Decimal) {
	tree := b.side(s)
	if !amount.IsPositive() {
		tree.Delete(PriceLevel{Price: price})
		return
	}
	tree.ReplaceOrInsert(PriceLevel{Price: price, Amount: amount})
}

// Replace 用快照整体替换一侧内容
func (b *OrderBook) Replace(s BookSide, levels []PriceLevel) {
	less := bidLess
	if s == BookSideAsk {
		less = askLess
	}
	tree := btree.NewG(btreeDegree, less)
	for _, lvl := range levels {
		if lvl.Amount.IsPositive() {
			tree.ReplaceOrInsert(lvl)
		}
	}
	if s == BookSideAsk {
		b.asks = tree
	} else {
		b.bids = tree
	}
}

// Clear 清空两侧
func (b *OrderBook) Clear() {
	b.bids = btree.NewG(btreeDegree, bidLess)
	b.asks = btree.NewG(btreeDegree, askLess)
	b.Sequence = 0
	b.FromSnapshot = false
}

// Get 查询某价位数量
func (b *OrderBook) Get(s BookSide, price decimal.Decimal) (decimal.Decimal, bool) {
	lvl, ok := b.side(s).Get(PriceLevel{Price: price})
	return lvl.Amount, ok
}

// Len 某一侧价位数
func (b *OrderBook) Len(s BookSide) int {
	return b.side(s).Len()
}

// Best 最优价位（买一或卖一）
func (b *OrderBook) Best(s BookSide) (PriceLevel, bool) {
	return b.side(s).Min()
}

// Levels 按排序顺序返回前 depth 档，depth <= 0 表示全部
func (b *OrderBook) Levels(s BookSide, depth int) []PriceLevel {
	tree := b.side(s)
	n := tree.Len()
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]PriceLevel, 0, n)
	tree.Ascend(func(lvl PriceLevel) bool {
		out = append(out, lvl)
		return len(out) < n
	})
	return out
}

// Clone 复制订单簿（树为写时复制，开销与价位数无关）
func (b *OrderBook) Clone() *OrderBook {
	c := *b
	c.bids = b.bids.Clone()
	c.asks = b.asks.Clone()
	return &c
}

// View 生成只读快照
func (b *OrderBook) View(depth int) OrderBookView {
	return OrderBookView{
		Symbol:       b.Symbol,
		Bids:         b.Levels(BookSideBid, depth),
		Asks:         b.Levels(BookSideAsk, depth),
		Sequence:     b.Sequence,
		Timestamp:    b.UpdatedAt,
		FromSnapshot: b.FromSnapshot,
	}
}

// OrderBookView 订单簿只读快照，交给订阅者、缓存和消息队列
type OrderBookView struct {
	// Exchange 交易所名称
	Exchange string `json:"exchange,omitempty"`
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// Bids 买盘（价格从高到低）
	Bids []PriceLevel `json:"bids"`
	// Asks 卖盘（价格从低到高）
	Asks []PriceLevel `json:"asks"`
	// Sequence 序列号
	Sequence int64 `json:"sequence,omitempty"`
	// Timestamp 时间戳
	Timestamp time.Time `json:"timestamp"`
	// FromSnapshot 是否来自快照
	FromSnapshot bool `json:"from_snapshot"`
}

// Mid 中间价，任一侧为空时返回 false
func (v OrderBookView) Mid() (decimal.Decimal, bool) {
	if len(v.Bids) == 0 || len(v.Asks) == 0 {
		return decimal.Zero, false
	}
	return v.Bids[0].Price.Add(v.Asks[0].Price).Div(decimal.NewFromInt(2)), true
}
