package exwire

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lemconn/exwire/exchange"
	"github.com/lemconn/exwire/option"
)

// ExchangeFactory 交易所工厂函数
type ExchangeFactory func(opts ...option.Option) (exchange.Exchange, error)

// Registry 交易所注册表
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ExchangeFactory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ExchangeFactory)}
}

// Register 注册交易所，同名覆盖
func (r *Registry) Register(name string, factory ExchangeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// New 按名称创建交易所实例
func (r *Registry) New(name string, opts ...option.Option) (exchange.Exchange, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExchangeNotSupported, name)
	}
	ex, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	return ex, nil
}

// Names 已注册的交易所名称，按字母排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has 是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(name)]
	return ok
}

var globalRegistry = NewRegistry()

// Register 向全局注册表注册交易所
func Register(name string, factory ExchangeFactory) {
	globalRegistry.Register(name, factory)
}

// NewExchange 创建交易所实例（Functional Options Pattern）。
// 只构造客户端，不发起网络请求；市场信息由 Client.Start 或 LoadMarkets 加载
func NewExchange(name string, opts ...option.Option) (exchange.Exchange, error) {
	return globalRegistry.New(name, opts...)
}

// GetSupportedExchanges 获取支持的交易所列表
func GetSupportedExchanges() []string {
	return globalRegistry.Names()
}

// IsExchangeSupported 检查交易所是否支持
func IsExchangeSupported(name string) bool {
	return globalRegistry.Has(name)
}
