package bus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/logger"
	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

const (
	// DefaultChannel 默认 redis 频道
	DefaultChannel = "threadrook:bus"
	// defaultReplyTTL 查询回复 ID 的默认保留时间
	defaultReplyTTL = 10 * time.Second
)

// RedisOptions Redis 总线配置
type RedisOptions struct {
	Channel  string
	Backlog  int           // 本地订阅者积压上限，同时作为发件箱容量
	ReplyTTL time.Duration // 查询回复 ID 的保留时间
}

// Redis 跨进程总线。
// 发布的消息编码后写入 redis 频道；接收循环把频道中的每条消息
// （包括本进程自己发布的）重新发布到内嵌的进程内总线。
type Redis struct {
	client   *redis.Client
	channel  string
	origin   string
	replyTTL time.Duration

	local  *Memory
	outbox chan []byte

	mu      sync.Mutex
	pending map[string]pendingReply // replyID -> 本地回复通道

	started atomic.Bool
	done    chan struct{}
	dropped atomic.Uint64
}

type pendingReply struct {
	reply   chan<- bool
	expires time.Time
}

// NewRedis 创建 Redis 总线，需调用 Start 后才能收发
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	if opts.Channel == "" {
		opts.Channel = DefaultChannel
	}
	if opts.Backlog <= 0 {
		opts.Backlog = DefaultBacklog
	}
	if opts.ReplyTTL <= 0 {
		opts.ReplyTTL = defaultReplyTTL
	}
	return &Redis{
		client:   client,
		channel:  opts.Channel,
		origin:   uuid.NewString(),
		replyTTL: opts.ReplyTTL,
		local:    NewMemory(opts.Backlog),
		outbox:   make(chan []byte, opts.Backlog),
		pending:  make(map[string]pendingReply),
		done:     make(chan struct{}),
	}
}

// Start 订阅 redis 频道并启动收发循环，ctx 取消后循环退出
func (r *Redis) Start(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("订阅 redis 频道 %s 失败: %w", r.channel, err)
	}

	r.started.Store(true)
	go r.writeLoop(ctx)
	go r.readLoop(ctx, ps)

	log.Printf("📡 Redis 总线已启动，频道: %s, 节点: %s", r.channel, r.origin)
	return nil
}

// Done 接收循环退出后关闭
func (r *Redis) Done() <-chan struct{} {
	return r.done
}

// Subscribe 订阅
func (r *Redis) Subscribe() Subscription {
	return r.local.Subscribe()
}

// Dropped 发件箱溢出丢弃的消息数
func (r *Redis) Dropped() uint64 {
	return r.dropped.Load()
}

// Publish 编码后放入发件箱，发件箱满时丢弃而不阻塞生产者
func (r *Redis) Publish(_ context.Context, env protocol.Envelope) error {
	if env.Command == nil {
		return ErrEmptyCommand
	}
	if !r.started.Load() {
		return apperrors.ErrBusClosed
	}
	select {
	case <-r.done:
		return apperrors.ErrBusClosed
	default:
	}

	var replyID string
	if query, ok := env.Command.(protocol.VerifyIfAlreadyInMatch); ok && query.Reply != nil {
		replyID = uuid.NewString()
		r.registerReply(replyID, query.Reply)
	}

	frame, err := codec.NewCommandFrame(r.origin, env, replyID)
	if err != nil {
		r.forgetReply(replyID)
		return err
	}
	data, err := codec.MarshalFrame(frame)
	if err != nil {
		r.forgetReply(replyID)
		return err
	}

	select {
	case r.outbox <- data:
	default:
		r.forgetReply(replyID)
		r.dropped.Add(1)
		log.Printf("⚠️ Redis 总线发件箱已满，丢弃 %s 命令 (分组 %s)", env.Command.Type(), env.Scope)
	}
	return nil
}

func (r *Redis) writeLoop(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.LogPanic(rec)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-r.outbox:
			if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("发布到 redis 失败: %v", err)
			}
		}
	}
}

func (r *Redis) readLoop(ctx context.Context, ps *redis.PubSub) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.LogPanic(rec)
		}
		_ = ps.Close()
		close(r.done)
		log.Printf("📡 Redis 总线已停止，频道: %s", r.channel)
	}()

	sweep := time.NewTicker(r.replyTTL)
	defer sweep.Stop()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-sweep.C:
			r.expireReplies(now)
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.dispatch(ctx, []byte(msg.Payload))
		}
	}
}

func (r *Redis) dispatch(ctx context.Context, data []byte) {
	frame, err := codec.UnmarshalFrame(data)
	if err != nil {
		log.Printf("⚠️ 忽略无法解析的总线帧: %v", err)
		return
	}

	switch frame.Kind {
	case codec.FrameReply:
		// 只有肯定回复才结束查询，否则等待超时
		if !frame.Answered {
			return
		}
		r.deliverReply(frame.ReplyID)
	case codec.FrameCommand:
		var local chan bool
		if frame.Command == protocol.CmdVerifyIfAlreadyInMatch && frame.ReplyID != "" {
			local = make(chan bool, 1)
			go r.forwardReply(ctx, frame.ReplyID, local)
		}
		env, err := frame.Envelope(local)
		if err != nil {
			log.Printf("⚠️ 忽略无效的命令帧: %v", err)
			return
		}
		_ = r.local.Publish(ctx, env)
	default:
		log.Printf("⚠️ 忽略未知类型的总线帧: %d", frame.Kind)
	}
}

// forwardReply 把本地会话的第一条回复转回 redis
func (r *Redis) forwardReply(ctx context.Context, replyID string, local <-chan bool) {
	timer := time.NewTimer(r.replyTTL)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case answered := <-local:
		if !answered {
			return
		}
		data, err := codec.MarshalFrame(codec.NewReplyFrame(r.origin, replyID))
		if err != nil {
			log.Printf("编码查询回复失败: %v", err)
			return
		}
		select {
		case r.outbox <- data:
		default:
			r.dropped.Add(1)
		}
	}
}

func (r *Redis) registerReply(replyID string, reply chan<- bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[replyID] = pendingReply{reply: reply, expires: time.Now().Add(r.replyTTL)}
}

func (r *Redis) forgetReply(replyID string) {
	if replyID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, replyID)
}

func (r *Redis) deliverReply(replyID string) {
	r.mu.Lock()
	p, ok := r.pending[replyID]
	if ok {
		delete(r.pending, replyID)
	}
	r.mu.Unlock()

	if !ok {
		return // 其他节点的查询，或已经回复过
	}
	select {
	case p.reply <- true:
	default:
	}
}

func (r *Redis) expireReplies(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.pending {
		if now.After(p.expires) {
			delete(r.pending, id)
		}
	}
}

func (r *Redis) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
