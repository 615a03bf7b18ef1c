// Package orderbook 根据快照与增量消息重建各市场的订单簿，并按交易所序列号校验连续性
package orderbook

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/lemconn/exwire/logger"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/types"
	"github.com/shopspring/decimal"
)

// State 单个订单簿的生命周期状态
type State int

const (
	Uninitialized State = iota
	Live
	Stale
	Closed
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Stale:
		return "stale"
	case Closed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// Convention 交易所下发初始订单簿的方式
type Convention int

const (
	// SnapshotThenDeltas 行情流先推全量快照，再推增量
	SnapshotThenDeltas Convention = iota
	// DeltasOnly 行情流只推增量，订单簿由 REST 快照初始化，
	// 序列号不大于快照的增量被丢弃
	DeltasOnly
)

// Result 一条更新的处理结果
type Result int

const (
	Applied Result = iota
	// Dropped 重复、过期或没有基础快照
	Dropped
	// Buffered 等待 REST 快照期间暂存
	Buffered
	// GapDetected 序列号不连续，订单簿已转为 Stale
	GapDetected
	// Ignored 订单簿已关闭
	Ignored
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Dropped:
		return "dropped"
	case Buffered:
		return "buffered"
	case GapDetected:
		return "gap"
	default:
		return "ignored"
	}
}

// Update 交易所适配器产出的一条订单簿消息
type Update struct {
	Market   string
	Snapshot bool
	Bids     []model.PriceLevel
	Asks     []model.PriceLevel
	// Sequence 本条更新覆盖的最后一个序列号，交易所不提供时为 0。
	// 只有当前订单簿和更新都带序列号时才做缺口检查：基础快照序列号为 0 时，
	// 在第一条带序列号的增量到达之前按到达顺序信任增量
	Sequence int64
	// FirstSequence 增量覆盖的第一个序列号，0 表示只有一个序列号
	FirstSequence int64
	Timestamp     time.Time
}

// Seeder 为 DeltasOnly 订单簿拉取 REST 快照
type Seeder interface {
	Seed(ctx context.Context, market string) (Update, error)
}

// SeederFunc 函数形式的 Seeder
type SeederFunc func(ctx context.Context, market string) (Update, error)

func (f SeederFunc) Seed(ctx context.Context, market string) (Update, error) { return f(ctx, market) }

// Recorder 接收引擎指标
type Recorder interface {
	ObserveBookUpdate(exchange, result string)
	ObserveBookState(exchange, market string, state State)
}

type nopRecorder struct{}

func (nopRecorder) ObserveBookUpdate(string, string)       {}
func (nopRecorder) ObserveBookState(string, string, State) {}

// Options 引擎配置
type Options struct {
	Exchange   string
	Convention Convention
	// ContiguousSequences 单序列号更新视为连续编号，跳号即缺口
	ContiguousSequences bool
	// Seeder DeltasOnly 订单簿自行离开 Uninitialized 所需
	Seeder Seeder
	// MaxBuffered 等待快照期间最多暂存的增量数
	MaxBuffered int
	// ReseedInterval 两次拉取快照之间的初始等待，按指数退避增长，默认 500ms。
	// 拉取失败或快照落后于暂存增量时都会等待
	ReseedInterval time.Duration
	// OnStale 订单簿转为 Stale 时在锁外调用
	OnStale  func(market string, err error)
	Logger   logger.Interface
	Recorder Recorder
}

type book struct {
	exchange string

	mu      sync.RWMutex
	ob      *model.OrderBook
	state   State
	pending []Update
	// seeding 为 true 时有一个 seed 协程负责该订单簿，由协程退出时清除
	seeding bool
	subs    map[*Subscription]struct{}
}

// Engine 管理一个交易所的全部订单簿
type Engine struct {
	opts   Options
	log    logger.Interface
	rec    Recorder
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	books map[string]*book
}

// NewEngine 创建引擎
func NewEngine(opts Options) *Engine {
	if opts.MaxBuffered <= 0 {
		opts.MaxBuffered = 10000
	}
	if opts.ReseedInterval <= 0 {
		opts.ReseedInterval = 500 * time.Millisecond
	}
	e := &Engine{opts: opts, books: make(map[string]*book)}
	e.log = opts.Logger
	if e.log == nil {
		e.log = logger.NewNop()
	}
	e.rec = opts.Recorder
	if e.rec == nil {
		e.rec = nopRecorder{}
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Convention 返回配置的下发方式
func (e *Engine) Convention() Convention { return e.opts.Convention }

func newBook(exchange, market string) *book {
	return &book{
		exchange: exchange,
		ob:       model.NewOrderBook(market),
		subs:     make(map[*Subscription]struct{}),
	}
}

func (e *Engine) get(market string, create bool) *book {
	e.mu.RLock()
	b := e.books[market]
	e.mu.RUnlock()
	if b != nil || !create {
		return b
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if b = e.books[market]; b == nil {
		b = newBook(e.opts.Exchange, market)
		e.books[market] = b
	}
	return b
}

// Apply 应用一条快照或增量。已关闭的订单簿返回 Ignored，直到 Open 重新打开
func (e *Engine) Apply(u Update) Result {
	b := e.get(u.Market, true)

	b.mu.Lock()
	res, staleErr := e.applyLocked(b, u)
	if res == Applied {
		b.publishLocked()
	}
	b.mu.Unlock()

	e.rec.ObserveBookUpdate(e.opts.Exchange, res.String())
	if staleErr != nil {
		e.stale(u.Market, staleErr)
	}
	return res
}

// ApplySnapshot 替换订单簿的一侧
func (e *Engine) ApplySnapshot(market string, side model.BookSide, entries []model.PriceLevel) Result {
	b := e.get(market, true)

	b.mu.Lock()
	res := Ignored
	if b.state != Closed {
		b.ob.Replace(side, entries)
		b.ob.UpdatedAt = time.Now()
		b.ob.FromSnapshot = true
		e.setStateLocked(market, b, Live)
		b.publishLocked()
		res = Applied
	}
	b.mu.Unlock()

	e.rec.ObserveBookUpdate(e.opts.Exchange, res.String())
	return res
}

// ApplyDelta 应用单个价位变化，sequence 为 0 表示没有序列号
func (e *Engine) ApplyDelta(market string, side model.BookSide, price, amount decimal.Decimal, sequence int64) Result {
	u := Update{Market: market, Sequence: sequence, Timestamp: time.Now()}
	lvl := []model.PriceLevel{{Price: price, Amount: amount}}
	if side == model.BookSideAsk {
		u.Asks = lvl
	} else {
		u.Bids = lvl
	}
	return e.Apply(u)
}

func (e *Engine) applyLocked(b *book, u Update) (Result, error) {
	switch b.state {
	case Closed:
		return Ignored, nil
	case Uninitialized, Stale:
		if u.Snapshot {
			return e.applySnapshotLocked(b, u)
		}
		if e.opts.Convention == DeltasOnly {
			e.bufferLocked(b, u)
			return Buffered, nil
		}
		return Dropped, nil
	}

	if u.Snapshot {
		return e.applySnapshotLocked(b, u)
	}
	return e.applyDeltaLocked(b, u)
}

func (e *Engine) applySnapshotLocked(b *book, u Update) (Result, error) {
	b.ob.Replace(model.BookSideBid, u.Bids)
	b.ob.Replace(model.BookSideAsk, u.Asks)
	b.ob.Sequence = u.Sequence
	b.ob.UpdatedAt = stamp(u.Timestamp)
	b.ob.FromSnapshot = true
	e.setStateLocked(u.Market, b, Live)

	if len(b.pending) == 0 {
		return Applied, nil
	}

	pending := b.pending
	b.pending = nil
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Sequence < pending[j].Sequence })
	for i, p := range pending {
		if u.Sequence != 0 && p.Sequence != 0 && p.Sequence <= u.Sequence {
			continue
		}
		if res, err := e.applyDeltaLocked(b, p); res == GapDetected {
			// 快照落后于暂存增量，保留其余增量等下一次快照
			b.pending = append(b.pending, pending[i+1:]...)
			return GapDetected, err
		}
	}
	return Applied, nil
}

func (e *Engine) applyDeltaLocked(b *book, u Update) (Result, error) {
	last := b.ob.Sequence
	if u.Sequence != 0 && last != 0 {
		if u.Sequence <= last {
			return Dropped, nil
		}
		first := u.FirstSequence
		if first == 0 && e.opts.ContiguousSequences {
			first = u.Sequence
		}
		if first != 0 && first > last+1 {
			gap := types.NewSequenceGapError(u.Market, last, first)
			e.setStateLocked(u.Market, b, Stale)
			if e.opts.Convention == DeltasOnly {
				// 暴露缺口的这条增量在重新拉取快照后仍然有用
				e.bufferLocked(b, u)
			}
			return GapDetected, gap
		}
	}

	for _, lvl := range u.Bids {
		b.ob.Set(model.BookSideBid, lvl.Price, lvl.Amount)
	}
	for _, lvl := range u.Asks {
		b.ob.Set(model.BookSideAsk, lvl.Price, lvl.Amount)
	}
	if u.Sequence != 0 {
		b.ob.Sequence = u.Sequence
	}
	b.ob.UpdatedAt = stamp(u.Timestamp)
	b.ob.FromSnapshot = false
	return Applied, nil
}

func (e *Engine) bufferLocked(b *book, u Update) {
	if len(b.pending) >= e.opts.MaxBuffered {
		// 回放时会发现缺口并重新拉取快照
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, u)
	e.seedLocked(u.Market, b)
}

func (e *Engine) setStateLocked(market string, b *book, s State) {
	if b.state == s {
		return
	}
	b.state = s
	e.rec.ObserveBookState(e.opts.Exchange, market, s)
}

// seedLocked 为 DeltasOnly 订单簿启动后台 REST 快照协程，每个订单簿同时只有一个
func (e *Engine) seedLocked(market string, b *book) {
	if e.opts.Seeder == nil || b.seeding || b.state == Closed || e.ctx.Err() != nil {
		return
	}
	b.seeding = true
	go e.seed(market)
}

// seed 拉取快照直到订单簿进入 Live 或被关闭。拉取失败和快照落后共用一个退避
func (e *Engine) seed(market string) {
	defer e.seedDone(market)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.ReseedInterval
	bo.Reset()
	for {
		if e.ctx.Err() != nil {
			return
		}
		snap, err := e.opts.Seeder.Seed(e.ctx, market)
		if err == nil {
			snap.Market = market
			snap.Snapshot = true
			if e.Apply(snap) != GapDetected {
				return
			}
		} else {
			if e.ctx.Err() != nil {
				return
			}
			e.log.Error(err, logger.NewField("exchange", e.opts.Exchange), logger.NewField("market", market))
		}

		select {
		case <-e.ctx.Done():
			return
		case <-time.After(bo.NextBackOff()):
		}
		if b := e.get(market, false); b == nil || b.closed() {
			return
		}
	}
}

func (e *Engine) seedDone(market string) {
	b := e.get(market, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seeding = false
	// 协程退出前又出现了缺口
	if b.state == Stale && len(b.pending) > 0 {
		e.seedLocked(market, b)
	}
}

// Seed 同步拉取 REST 快照并应用
func (e *Engine) Seed(ctx context.Context, market string) error {
	if e.opts.Seeder == nil {
		return nil
	}
	snap, err := e.opts.Seeder.Seed(ctx, market)
	if err != nil {
		return err
	}
	snap.Market = market
	snap.Snapshot = true
	e.Apply(snap)
	return nil
}

func (e *Engine) stale(market string, err error) {
	e.log.Warn("order book stale",
		logger.NewField("exchange", e.opts.Exchange),
		logger.NewField("market", market),
		logger.NewField("reason", err.Error()),
	)
	if e.opts.OnStale != nil {
		e.opts.OnStale(market, err)
	}
}

// MarkStale 把订单簿标记为 Stale，例如连接断开后
func (e *Engine) MarkStale(market string, reason error) {
	b := e.get(market, false)
	if b == nil {
		return
	}
	b.mu.Lock()
	changed := b.state == Live
	if b.state != Closed {
		e.setStateLocked(market, b, Stale)
		b.pending = nil
	}
	b.mu.Unlock()
	if changed {
		e.stale(market, reason)
	}
}

// MarkAllStale 把所有未关闭的订单簿标记为 Stale
func (e *Engine) MarkAllStale(reason error) {
	for _, m := range e.Markets() {
		e.MarkStale(m, reason)
	}
}

// State 返回订单簿状态
func (e *Engine) State(market string) State {
	b := e.get(market, false)
	if b == nil {
		return Uninitialized
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetCurrentSnapshot 返回订单簿副本
func (e *Engine) GetCurrentSnapshot(market string) (*model.OrderBook, bool) {
	b := e.get(market, false)
	if b == nil {
		return nil, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == Uninitialized || b.state == Closed {
		return nil, false
	}
	return b.ob.Clone(), true
}

// Snapshot 返回限定档位的订单簿视图及状态
func (e *Engine) Snapshot(market string, depth int) (model.OrderBookView, State, bool) {
	b := e.get(market, false)
	if b == nil {
		return model.OrderBookView{}, Uninitialized, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.state == Uninitialized || b.state == Closed {
		return model.OrderBookView{}, b.state, false
	}
	v := b.ob.View(depth)
	v.Exchange = e.opts.Exchange
	return v, b.state, true
}

// Markets 未关闭订单簿的市场列表
func (e *Engine) Markets() []string {
	e.mu.RLock()
	books := make(map[string]*book, len(e.books))
	for m, b := range e.books {
		books[m] = b
	}
	e.mu.RUnlock()

	out := make([]string, 0, len(books))
	for m, b := range books {
		if !b.closed() {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// Open 重新打开已关闭的订单簿，状态回到 Uninitialized。未关闭的订单簿保持不变
func (e *Engine) Open(market string) {
	b := e.get(market, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Closed {
		return
	}
	b.ob = model.NewOrderBook(market)
	b.pending = nil
	b.subs = make(map[*Subscription]struct{})
	e.setStateLocked(market, b, Uninitialized)
}

// Close 关闭订单簿及其订阅。订单簿保留为 Closed，之后的更新都被忽略
func (e *Engine) Close(market string) {
	b := e.get(market, true)
	b.mu.Lock()
	defer b.mu.Unlock()
	e.setStateLocked(market, b, Closed)
	b.pending = nil
	for s := range b.subs {
		s.closeLocked()
	}
	b.subs = nil
}

// CloseAll 关闭全部订单簿并停止后台快照拉取
func (e *Engine) CloseAll() {
	e.cancel()
	for _, m := range e.Markets() {
		e.Close(m)
	}
}

func (b *book) closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state == Closed
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
