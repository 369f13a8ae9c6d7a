package match

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/logger"
	"github.com/palemoky/threadrook/internal/protocol"
)

const (
	tracerName = "github.com/palemoky/threadrook/internal/match"
	// cleanupTimeout 异常终止后清理展示区的时限
	cleanupTimeout = 5 * time.Second
)

// Option 协调器选项
type Option func(*Coordinator)

// WithTracer 使用指定 tracer，默认取全局 provider
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

// WithStateObserver 每次状态变化后调用 fn（在协调协程内）
func WithStateObserver(fn func(State)) Option {
	return func(c *Coordinator) { c.onState = fn }
}

// Coordinator 会话协调器。会话状态只在 Run 所在协程中读写
type Coordinator struct {
	session   *Session
	bus       bus.Bus
	oracle    Oracle
	presenter Presenter
	settings  Settings
	ticker    *Ticker
	tracer    trace.Tracer
	onState   func(State)

	abort       context.CancelCauseFunc
	ready       chan struct{}
	surfaceOpen bool
	tornDown    bool
	snapshot    atomic.Pointer[Session]
}

// NewCoordinator 创建协调器，调用 Run 后开始处理命令
func NewCoordinator(s *Session, b bus.Bus, oracle Oracle, p Presenter, settings Settings, opts ...Option) *Coordinator {
	c := &Coordinator{
		session:   s,
		bus:       b,
		oracle:    oracle,
		presenter: p,
		settings:  settings,
		tracer:    otel.Tracer(tracerName),
		ready:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ticker = NewTicker(b, s.Scope, s.ID, settings.TickInterval, c.tickerFailed)
	c.publishSnapshot()
	return c
}

// Ready 订阅完成且展示区创建后关闭
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Snapshot 返回最近一次处理命令后的会话副本
func (c *Coordinator) Snapshot() Session {
	return *c.snapshot.Load()
}

// Run 订阅总线并驱动状态机，直到会话结束。
// 输入被拒绝不会返回错误；返回的错误都是会话级致命错误。
func (c *Coordinator) Run(ctx context.Context) (err error) {
	sub := c.bus.Subscribe()
	defer sub.Close()

	ctx, c.abort = context.WithCancelCause(ctx)
	defer c.abort(nil)

	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r)
			err = fmt.Errorf("%w: panic: %v", apperrors.ErrInvariant, r)
		}
		if err != nil {
			c.fail(ctx, err)
		}
	}()

	if err := c.open(ctx); err != nil {
		return err
	}
	c.ticker.Start(ctx)
	close(c.ready)

	creator := c.session.Creator()
	log.Printf("🎮 对局 %s 已创建 (分组 %s, 创建者 %s 执%s)", c.session.ID, c.session.Scope, creator.Identity, creator.Color)

	for c.session.State != StateGameOver {
		env, err := sub.Receive(ctx)
		if err != nil {
			return c.receiveError(ctx, err)
		}
		if env.Scope != c.session.Scope || env.Command == nil {
			continue
		}
		if err := c.dispatch(ctx, env.Command); err != nil {
			return err
		}
	}

	return c.closeOut(ctx, sub)
}

func (c *Coordinator) dispatch(ctx context.Context, cmd protocol.Command) error {
	ctx, span := c.tracer.Start(ctx, "match.command", trace.WithAttributes(
		attribute.String("match.id", c.session.ID),
		attribute.String("match.scope", string(c.session.Scope)),
		attribute.String("match.command", string(cmd.Type())),
		attribute.String("match.state", c.session.State.String()),
	))
	defer span.End()

	err := c.handle(ctx, cmd)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.publishSnapshot()
	return err
}

// handle 按当前状态处理一条本分组的命令
func (c *Coordinator) handle(ctx context.Context, cmd protocol.Command) error {
	switch c.session.State {
	case StateWaitingForOpponent:
		return c.handleWaiting(ctx, cmd)
	case StatePlaying:
		return c.handlePlaying(ctx, cmd)
	default:
		return nil
	}
}

func (c *Coordinator) receiveError(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && apperrors.IsFatal(cause) {
		return cause
	}
	return fmt.Errorf("receive command: %w", err)
}

func (c *Coordinator) tickerFailed(err error) {
	if c.abort != nil {
		c.abort(fmt.Errorf("clock ticker: %w", err))
	}
}

// ownsTick 滴答是否属于本会话
func (c *Coordinator) ownsTick(t protocol.TimeTick) bool {
	return t.Match == "" || t.Match == c.session.ID
}

// transition 状态只能前进
func (c *Coordinator) transition(to State) error {
	from := c.session.State
	if to <= from {
		return fmt.Errorf("%w: transition %s -> %s", apperrors.ErrInvariant, from, to)
	}
	c.session.State = to
	log.Printf("🔄 对局 %s: %s -> %s", c.session.ID, from, to)
	if c.onState != nil {
		c.onState(to)
	}
	return nil
}

// finish 记录结果并进入终态，调用前计时器必须已停止
func (c *Coordinator) finish(ctx context.Context, result Result, text string) error {
	c.session.Result = result
	if err := c.transition(StateGameOver); err != nil {
		return err
	}
	return c.announce(ctx, text)
}

// open 创建展示区并放置三个固定面板
func (c *Coordinator) open(ctx context.Context) error {
	s := c.session
	if err := c.presenter.CreateSurface(ctx, Surface{MatchID: s.ID, Scope: s.Scope, Creator: s.Creator().Identity}); err != nil {
		return fmt.Errorf("%w: create surface: %w", apperrors.ErrPresentation, err)
	}
	c.surfaceOpen = true

	if err := c.update(ctx, PanelBoard, c.presenter.RenderPosition(s.Position)); err != nil {
		return err
	}
	if err := c.update(ctx, PanelClock, c.presenter.RenderClocks(c.clockView())); err != nil {
		return err
	}
	return c.update(ctx, PanelMoves, c.presenter.RenderLegalMoves(s.Acting, nil))
}

// closeOut 终态：公告、宽限期内丢弃所有命令、拆除展示区
func (c *Coordinator) closeOut(ctx context.Context, sub bus.Subscription) error {
	c.ticker.Stop()

	grace := c.settings.GracePeriod
	if err := c.announce(ctx, fmt.Sprintf("The match is over. Closing in %d secs...", int(grace.Round(time.Second)/time.Second))); err != nil {
		return err
	}

	drainCtx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	for {
		if _, err := sub.Receive(drainCtx); err != nil {
			break
		}
	}

	c.tornDown = true
	if err := c.presenter.TeardownSurface(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("%w: teardown surface: %w", apperrors.ErrPresentation, err)
	}
	log.Printf("🏁 对局 %s 已结束: %s", c.session.ID, c.session.Result.Reason)
	return nil
}

// fail 致命错误后的尽力清理
func (c *Coordinator) fail(ctx context.Context, err error) {
	c.ticker.Stop()
	log.Printf("❌ 对局 %s 异常终止: %v", c.session.ID, err)

	if c.session.State != StateGameOver {
		c.session.Result = Result{Reason: EndAbnormal}
		_ = c.transition(StateGameOver)
	}
	c.publishSnapshot()

	if !c.surfaceOpen || c.tornDown {
		return
	}
	c.tornDown = true

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if aerr := c.presenter.Announce(cleanupCtx, "The match ended abnormally."); aerr != nil {
		log.Printf("⚠️ 对局 %s 异常公告失败: %v", c.session.ID, aerr)
	}
	if terr := c.presenter.TeardownSurface(cleanupCtx); terr != nil {
		log.Printf("⚠️ 对局 %s 拆除展示区失败: %v", c.session.ID, terr)
	}
}

func (c *Coordinator) announce(ctx context.Context, text string) error {
	if err := c.presenter.Announce(ctx, text); err != nil {
		return fmt.Errorf("%w: announce: %w", apperrors.ErrPresentation, err)
	}
	return nil
}

func (c *Coordinator) update(ctx context.Context, panel Panel, text string) error {
	if err := c.presenter.Update(ctx, panel, text); err != nil {
		return fmt.Errorf("%w: update %s panel: %w", apperrors.ErrPresentation, panel, err)
	}
	return nil
}

// reject 把输入拒绝转为会话内提示
func (c *Coordinator) reject(ctx context.Context, issuer protocol.Identity, err error) error {
	log.Printf("🚫 对局 %s 拒绝 %s 的输入: %v", c.session.ID, issuer, err)
	return c.announce(ctx, err.Error())
}

func (c *Coordinator) clockView() ClockView {
	s := c.session
	if s.State == StateWaitingForOpponent {
		return ClockView{Waiting: true, JoinDeadline: s.JoinDeadline}
	}
	lines := make([]ClockLine, 0, len(s.Players))
	for _, p := range s.Players {
		lines = append(lines, ClockLine{Name: p.Identity.String(), Color: p.Color, Remaining: s.Clock.Remaining(p.Color)})
	}
	return ClockView{Lines: lines}
}

func (c *Coordinator) publishSnapshot() {
	snap := *c.session
	c.snapshot.Store(&snap)
}
