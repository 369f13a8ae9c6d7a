package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/logger"
	"github.com/palemoky/threadrook/internal/protocol"
)

// PresenterFactory 为新会话创建展示层
type PresenterFactory func(s Surface) Presenter

// CreateRequest 创建对局请求
type CreateRequest struct {
	Scope     protocol.ScopeID
	Creator   protocol.Identity
	Presenter PresenterFactory
	// Color 为 nil 时随机分配创建者颜色
	Color *Color
}

// Launcher 处理创建请求并托管所有会话协程
type Launcher struct {
	bus      bus.Bus
	oracle   Oracle
	settings Settings
	opts     []Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewLauncher 创建启动器，opts 会传给每个协调器
func NewLauncher(b bus.Bus, oracle Oracle, settings Settings, opts ...Option) *Launcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Launcher{
		bus:      b,
		oracle:   oracle,
		settings: settings,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create 先查询创建者是否已在对局中，是则返回 ErrAlreadyInMatch，
// 否则启动会话并在其可接收命令后返回快照。
// 查询与启动之间没有全局锁，并发创建可能同时成功。
func (l *Launcher) Create(ctx context.Context, req CreateRequest) (Session, error) {
	if req.Creator.IsZero() {
		return Session{}, errors.New("创建者身份为空")
	}
	if l.ctx.Err() != nil {
		return Session{}, apperrors.ErrBusClosed
	}

	busy, err := AlreadyInMatch(ctx, l.bus, req.Scope, req.Creator, l.settings.QueryTimeout)
	if err != nil {
		return Session{}, fmt.Errorf("query creator: %w", err)
	}
	if busy {
		return Session{}, apperrors.ErrAlreadyInMatch
	}

	color := RandomColor()
	if req.Color != nil {
		color = *req.Color
	}
	s := NewSession(uuid.NewString(), req.Scope, req.Creator, color, l.settings, l.oracle.InitialPosition())
	p := req.Presenter(Surface{MatchID: s.ID, Scope: s.Scope, Creator: req.Creator})
	c := NewCoordinator(s, l.bus, l.oracle, p, l.settings, l.opts...)

	// 会话独立于请求 ctx 运行，但创建未完成时需要能单独取消
	runCtx, cancel := context.WithCancel(l.ctx)
	errCh := make(chan error, 1)
	l.wg.Add(1)
	l.active.Add(1)
	go func() {
		defer l.wg.Done()
		defer l.active.Add(-1)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r)
			}
		}()

		err := c.Run(runCtx)
		if err != nil {
			log.Printf("❌ 对局 %s 以错误结束: %v", s.ID, err)
		}
		errCh <- err
	}()

	select {
	case <-c.Ready():
		return c.Snapshot(), nil
	case err := <-errCh:
		if err == nil {
			err = apperrors.ErrInvariant
		}
		return Session{}, err
	case <-ctx.Done():
		cancel()
		log.Printf("⏹️ 对局 %s 创建超时，已取消会话", s.ID)
		return Session{}, ctx.Err()
	}
}

// ActiveCount 仍在运行的会话数
func (l *Launcher) ActiveCount() int {
	return int(l.active.Load())
}

// Wait 等待所有会话结束，ctx 到期时返回其错误
func (l *Launcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 中断所有会话并拒绝新的创建请求
func (l *Launcher) Close() {
	l.cancel()
}
