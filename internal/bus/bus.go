// Package bus 提供对局命令的发布/订阅总线。
//
// 总线在进程启动时创建一次，生命周期与进程相同，不提供关闭操作；
// 订阅者通过 Subscription.Close 退订。
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/protocol"
)

// DefaultBacklog 每个订阅者的默认积压上限
const DefaultBacklog = 10000

// ErrEmptyCommand 信封没有携带命令
var ErrEmptyCommand = errors.New("bus: envelope has no command")

// Bus 多生产者多消费者事件总线
type Bus interface {
	// Publish 把信封扇出给当前所有订阅者，从不因消费者阻塞
	Publish(ctx context.Context, env protocol.Envelope) error
	// Subscribe 返回私有接收句柄，只能收到订阅之后发布的消息
	Subscribe() Subscription
}

// Subscription 订阅者的接收句柄
type Subscription interface {
	// Receive 按发布顺序返回下一条消息，退订后返回 apperrors.ErrSubscriptionClosed
	Receive(ctx context.Context) (protocol.Envelope, error)
	// Dropped 因积压溢出而丢弃的消息数
	Dropped() uint64
	Close()
}

// Memory 进程内总线。
// 每个订阅者拥有独立的有界积压，溢出时丢弃最旧的未消费消息。
type Memory struct {
	backlog int

	mu     sync.RWMutex
	subs   map[uint64]*memorySubscription
	nextID uint64
}

// NewMemory 创建进程内总线，backlog <= 0 时使用默认值
func NewMemory(backlog int) *Memory {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Memory{
		backlog: backlog,
		subs:    make(map[uint64]*memorySubscription),
	}
}

// Publish 发布消息
func (b *Memory) Publish(_ context.Context, env protocol.Envelope) error {
	if env.Command == nil {
		return ErrEmptyCommand
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		sub.push(env)
	}
	return nil
}

// Subscribe 订阅
func (b *Memory) Subscribe() Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &memorySubscription{
		id:      b.nextID,
		bus:     b,
		backlog: b.backlog,
		notify:  make(chan struct{}, 1),
	}
	b.subs[sub.id] = sub
	return sub
}

// SubscriberCount 当前订阅者数量
func (b *Memory) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Memory) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

type memorySubscription struct {
	id      uint64
	bus     *Memory
	backlog int

	mu     sync.Mutex
	queue  []protocol.Envelope
	closed bool
	notify chan struct{}

	dropped atomic.Uint64
}

func (s *memorySubscription) push(env protocol.Envelope) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.backlog {
		s.queue[0] = protocol.Envelope{}
		s.queue = s.queue[1:]
		s.dropped.Add(1)
	}
	s.queue = append(s.queue, env)
	s.mu.Unlock()

	s.signal()
}

func (s *memorySubscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *memorySubscription) Receive(ctx context.Context) (protocol.Envelope, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return protocol.Envelope{}, apperrors.ErrSubscriptionClosed
		}
		if len(s.queue) > 0 {
			env := s.queue[0]
			s.queue[0] = protocol.Envelope{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return env, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return protocol.Envelope{}, ctx.Err()
		case <-s.notify:
		}
	}
}

func (s *memorySubscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *memorySubscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.bus.remove(s.id)
	s.signal()
}
