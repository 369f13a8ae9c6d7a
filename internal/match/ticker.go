package match

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/logger"
	"github.com/palemoky/threadrook/internal/protocol"
)

// Ticker 按固定间隔向会话所属分组发布 TimeTick。
// 不持有会话状态；Stop 只生效一次，返回后不会再发布滴答。
type Ticker struct {
	bus      bus.Bus
	scope    protocol.ScopeID
	matchID  string
	interval time.Duration
	onFail   func(error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
	done    chan struct{}
}

// NewTicker 创建计时器。onFail 在计时器异常退出（发布失败、间隔非法或 panic）时调用，可为 nil
func NewTicker(b bus.Bus, scope protocol.ScopeID, matchID string, interval time.Duration, onFail func(error)) *Ticker {
	return &Ticker{
		bus:      b,
		scope:    scope,
		matchID:  matchID,
		interval: interval,
		onFail:   onFail,
		done:     make(chan struct{}),
	}
}

// Start 启动发布协程，已停止或已启动时不做任何事
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || t.cancel != nil {
		return
	}

	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)
}

// Stop 停止计时器并等待发布协程退出，可重复调用
func (t *Ticker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	cancel := t.cancel
	t.mu.Unlock()

	if cancel == nil {
		close(t.done)
		return
	}
	cancel()
	<-t.done
}

// Stopped 是否已停止
func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Done 发布协程退出后关闭
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

func (t *Ticker) loop(ctx context.Context) {
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			t.fail(fmt.Errorf("%w: ticker panic: %v", apperrors.ErrInvariant, r))
		}
	}()

	if t.interval <= 0 {
		log.Printf("⏰ 对局 %s 计时间隔非法: %s", t.matchID, t.interval)
		t.fail(fmt.Errorf("%w: tick interval %s", apperrors.ErrInvariant, t.interval))
		return
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	env := protocol.NewEnvelope(t.scope, protocol.TimeTick{Match: t.matchID})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 停止与到期同时发生时优先停止
			if ctx.Err() != nil {
				return
			}
			if err := t.bus.Publish(ctx, env); err != nil {
				log.Printf("⏰ 对局 %s 计时器发布失败: %v", t.matchID, err)
				t.fail(err)
				return
			}
		}
	}
}

func (t *Ticker) fail(err error) {
	if t.onFail != nil {
		t.onFail(err)
	}
}
