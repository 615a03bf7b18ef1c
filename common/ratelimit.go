package common

import (
	"context"
	"sync"
	"time"
)

// RateGate 滑动窗口限流：任意长度为 window 的时间段内最多放行 limit 次。
// 初始窗口为空，启动时可立即放行 limit 次；第 limit+1 次要等最早一次放行过期。
// 等待者按到达顺序（FIFO）获得放行。limit <= 0 表示不限流。
type RateGate struct {
	limit  int
	window time.Duration

	// turn 容量为 1，持有者是队首等待者；channel 的阻塞发送方按先后顺序唤醒
	turn chan struct{}

	mu     sync.Mutex
	stamps []time.Time
}

// NewRateGate 创建限流器，例如 NewRateGate(300, 5*time.Minute)
func NewRateGate(limit int, window time.Duration) *RateGate {
	return &RateGate{
		limit:  limit,
		window: window,
		turn:   make(chan struct{}, 1),
	}
}

// Limit 每个窗口允许的次数
func (g *RateGate) Limit() int { return g.limit }

// Window 窗口长度
func (g *RateGate) Window() time.Duration { return g.window }

// WaitToProceed 阻塞直到获得放行。timeout 到期或 ctx 取消时返回 false；
// timeout <= 0 表示只受 ctx 约束。
func (g *RateGate) WaitToProceed(ctx context.Context, timeout time.Duration) bool {
	if g == nil || g.limit <= 0 || g.window <= 0 {
		return ctx.Err() == nil
	}

	var deadline <-chan time.Time
	var deadlineAt time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
		deadlineAt = time.Now().Add(timeout)
	}

	select {
	case g.turn <- struct{}{}:
	case <-ctx.Done():
		return false
	case <-deadline:
		return false
	}
	defer func() { <-g.turn }()

	for {
		wait := g.tryAdmit(time.Now())
		if wait == 0 {
			return true
		}
		if !deadlineAt.IsZero() && time.Now().Add(wait).After(deadlineAt) {
			return false
		}

		sleep := time.NewTimer(wait)
		select {
		case <-sleep.C:
		case <-ctx.Done():
			sleep.Stop()
			return false
		case <-deadline:
			sleep.Stop()
			return false
		}
	}
}

// tryAdmit 返回 0 表示已放行，否则返回还需等待的时间
func (g *RateGate) tryAdmit(now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := now.Add(-g.window)
	i := 0
	for i < len(g.stamps) && !g.stamps[i].After(cutoff) {
		i++
	}
	g.stamps = g.stamps[i:]

	if len(g.stamps) < g.limit {
		g.stamps = append(g.stamps, now)
		return 0
	}
	wait := g.stamps[0].Add(g.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait
}

// InUse 当前窗口内已放行的次数
func (g *RateGate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := time.Now().Add(-g.window)
	n := 0
	for _, s := range g.stamps {
		if s.After(cutoff) {
			n++
		}
	}
	return n
}
