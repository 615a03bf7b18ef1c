package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lemconn/exwire/common"
	"github.com/lemconn/exwire/dispatch"
	"github.com/lemconn/exwire/model"
	"github.com/lemconn/exwire/option"
	"github.com/lemconn/exwire/types"
)

// Base 交易所基础实现：名称、请求调度器以及市场信息缓存
type Base struct {
	name       string
	dispatcher *dispatch.Dispatcher
	// toID 市场未加载时使用的后备转换函数，BTC/USDT -> 交易所格式
	toID func(symbol string) (string, error)

	mu       sync.RWMutex
	bySymbol map[string]model.Market
	byID     map[string]model.Market
}

// NewBase 创建基础交易所
func NewBase(name string, d *dispatch.Dispatcher, toID func(symbol string) (string, error)) *Base {
	return &Base{
		name:       name,
		dispatcher: d,
		toID:       toID,
		bySymbol:   make(map[string]model.Market),
		byID:       make(map[string]model.Market),
	}
}

// Name 返回交易所名称
func (e *Base) Name() string {
	return e.name
}

// Dispatcher 返回请求调度器
func (e *Base) Dispatcher() *dispatch.Dispatcher {
	return e.dispatcher
}

// SetMarkets 设置市场信息（整体替换）
func (e *Base) SetMarkets(markets []model.Market) {
	bySymbol := make(map[string]model.Market, len(markets))
	byID := make(map[string]model.Market, len(markets))
	for _, m := range markets {
		bySymbol[m.Symbol] = m
		byID[m.ID] = m
	}
	e.mu.Lock()
	e.bySymbol, e.byID = bySymbol, byID
	e.mu.Unlock()
}

// HasMarkets 是否已加载市场信息
func (e *Base) HasMarkets() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.bySymbol) > 0
}

// GetMarket 获取市场信息
func (e *Base) GetMarket(symbol string) (model.Market, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m, ok := e.bySymbol[symbol]
	if !ok {
		return model.Market{}, fmt.Errorf("%w: %s %s", ErrMarketNotFound, e.name, symbol)
	}
	return m, nil
}

// GetMarkets 返回所有已加载市场，按 symbol 排序
func (e *Base) GetMarkets() []model.Market {
	e.mu.RLock()
	out := make([]model.Market, 0, len(e.bySymbol))
	for _, m := range e.bySymbol {
		out = append(out, m)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// MarketID 获取交易所格式的 symbol ID。
// 优先从已加载的市场中查找，未找到时使用后备转换函数
func (e *Base) MarketID(symbol string) (string, error) {
	e.mu.RLock()
	m, ok := e.bySymbol[symbol]
	e.mu.RUnlock()
	if ok {
		return m.ID, nil
	}
	if e.toID == nil {
		return "", fmt.Errorf("%w: %s %s", ErrMarketNotFound, e.name, symbol)
	}
	return e.toID(symbol)
}

// SymbolOf 交易所ID 转为统一格式，未加载时使用 fallback
func (e *Base) SymbolOf(id string, fallback func(id string) string) string {
	e.mu.RLock()
	m, ok := e.byID[id]
	e.mu.RUnlock()
	if ok {
		return m.Symbol
	}
	if fallback != nil {
		return fallback(id)
	}
	return id
}

// NewDispatcher 按选项创建协议的请求调度器
func NewDispatcher(p dispatch.Protocol, o *option.ExchangeOptions) *dispatch.Dispatcher {
	client := common.NewHTTPClient(p.BaseURL())
	client.SetLogger(o.Logger)
	if o.Proxy != "" {
		client.SetProxy(o.Proxy)
	}
	if o.Debug {
		client.SetDebug(true)
	}

	opts := []dispatch.Option{
		dispatch.WithHTTPClient(client),
		dispatch.WithLogger(o.Logger),
		dispatch.WithCredentials(dispatch.Credentials{
			APIKey:     o.APIKey,
			Secret:     o.SecretKey,
			Passphrase: o.Passphrase,
		}),
	}
	if o.RateLimit > 0 {
		window := o.RateWindow
		if window <= 0 {
			window = time.Second
		}
		opts = append(opts, dispatch.WithRateGate(common.NewRateGate(o.RateLimit, window)))
	}
	if o.GateTimeout > 0 {
		opts = append(opts, dispatch.WithGateTimeout(o.GateTimeout))
	}
	if o.RetryMax > 0 {
		opts = append(opts, dispatch.WithRetry(o.RetryMax, o.RetryInitial))
	}
	if o.Metrics != nil {
		opts = append(opts, dispatch.WithRecorder(o.Metrics))
	}
	return dispatch.New(p, opts...)
}

// PickURL 选择地址：显式覆盖优先，模拟盘次之，demo 为空时模拟盘也使用 live
func PickURL(override string, sandbox bool, live, demo string) string {
	switch {
	case override != "":
		return override
	case sandbox && demo != "":
		return demo
	default:
		return live
	}
}

// LoadMarkets 通过 fetch 加载市场信息，reload 为 false 且已加载时直接返回
func (e *Base) LoadMarkets(ctx context.Context, reload bool, fetch func(context.Context) ([]model.Market, error)) error {
	if !reload && e.HasMarkets() {
		return nil
	}
	markets, err := fetch(ctx)
	if err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	e.SetMarkets(markets)
	return nil
}

// Levels 将 [[price, amount, ...], ...] 形式的档位转为 PriceLevel，多余列忽略
func Levels(rows [][]types.ExDecimal) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		out = append(out, model.PriceLevel{Price: r[0].Decimal, Amount: r[1].Decimal})
	}
	return out
}

// ClientOrderID 返回请求中的客户端订单ID，为空时生成一个
func ClientOrderID(exchange string, req model.OrderRequest) string {
	if req.ClientOrderID != "" {
		return req.ClientOrderID
	}
	return common.GenerateClientOrderID(exchange)
}

// ValidateOrder 检查下单请求的基本合法性
func ValidateOrder(req model.OrderRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, req.Amount)
	}
	switch req.Type {
	case model.OrderTypeMarket:
	case model.OrderTypeLimit:
		if !req.Price.IsPositive() {
			return fmt.Errorf("%w: limit order needs a positive price", ErrInvalidOrderType)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, req.Type)
	}
	return nil
}
