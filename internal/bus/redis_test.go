package bus

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

func newTestRedisBus(t *testing.T, mr *miniredis.Miniredis) *Redis {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rb := NewRedis(client, RedisOptions{Channel: "test:bus", ReplyTTL: time.Second})
	require.NoError(t, rb.Start(ctx))
	return rb
}

func TestRedis_PublishReachesLocalSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	rb := newTestRedisBus(t, mr)

	sub := rb.Subscribe()
	defer sub.Close()

	require.NoError(t, rb.Publish(context.Background(), move("g1", "e2e4")))

	env := receive(t, sub)
	assert.Equal(t, protocol.ScopeID("g1"), env.Scope)
	assert.Equal(t, "e2e4", env.Command.(protocol.MakeMove).Move)
}

func TestRedis_FanOutAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	nodeA := newTestRedisBus(t, mr)
	nodeB := newTestRedisBus(t, mr)

	subB := nodeB.Subscribe()
	defer subB.Close()

	require.NoError(t, nodeA.Publish(context.Background(), protocol.NewEnvelope("g1", protocol.Resign{
		Mover: protocol.Identity{ID: "p1", Name: "Alice"},
	})))

	env := receive(t, subB)
	assert.Equal(t, protocol.Resign{Mover: protocol.Identity{ID: "p1", Name: "Alice"}}, env.Command)
}

func TestRedis_QueryReplyCrossesNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	caller := newTestRedisBus(t, mr)
	owner := newTestRedisBus(t, mr)

	// owner 节点上的会话识别该身份并回复
	sub := owner.Subscribe()
	defer sub.Close()
	go func() {
		for {
			env, err := sub.Receive(context.Background())
			if err != nil {
				return
			}
			if q, ok := env.Command.(protocol.VerifyIfAlreadyInMatch); ok && q.Identity.ID == "p1" {
				q.Answer()
			}
		}
	}()

	reply := make(chan bool, 1)
	require.NoError(t, caller.Publish(context.Background(), protocol.NewEnvelope("g1", protocol.VerifyIfAlreadyInMatch{
		Identity: protocol.Identity{ID: "p1"},
		Reply:    reply,
	})))

	select {
	case got := <-reply:
		assert.True(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no reply crossed the relay")
	}
	assert.Eventually(t, func() bool { return caller.pendingCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRedis_UnansweredQueryExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rb := newTestRedisBus(t, mr)

	reply := make(chan bool, 1)
	require.NoError(t, rb.Publish(context.Background(), protocol.NewEnvelope("g1", protocol.VerifyIfAlreadyInMatch{
		Identity: protocol.Identity{ID: "stranger"},
		Reply:    reply,
	})))
	assert.Equal(t, 1, rb.pendingCount())

	assert.Eventually(t, func() bool { return rb.pendingCount() == 0 }, 5*time.Second, 50*time.Millisecond)
	assert.Empty(t, reply)
}

func TestRedis_PublishBeforeStart(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	rb := NewRedis(client, RedisOptions{})
	err := rb.Publish(context.Background(), move("g1", "e2e4"))
	assert.ErrorIs(t, err, apperrors.ErrBusClosed)
}

func TestRedis_StopsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	rb := NewRedis(client, RedisOptions{})
	require.NoError(t, rb.Start(ctx))

	cancel()
	select {
	case <-rb.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
	assert.ErrorIs(t, rb.Publish(context.Background(), move("g1", "e2e4")), apperrors.ErrBusClosed)
}

func TestRedis_ReplyWithoutAnswerIgnored(t *testing.T) {
	mr := miniredis.RunT(t)
	rb := newTestRedisBus(t, mr)

	reply := make(chan bool, 1)
	require.NoError(t, rb.Publish(context.Background(), protocol.NewEnvelope("g1", protocol.VerifyIfAlreadyInMatch{
		Identity: protocol.Identity{ID: "p1"},
		Reply:    reply,
	})))

	rb.mu.Lock()
	var replyID string
	for id := range rb.pending {
		replyID = id
	}
	rb.mu.Unlock()
	require.NotEmpty(t, replyID)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()
	publishFrame := func(f *codec.Frame) {
		data, err := codec.MarshalFrame(f)
		require.NoError(t, err)
		require.NoError(t, client.Publish(context.Background(), "test:bus", data).Err())
	}

	unanswered := codec.NewReplyFrame("other-node", replyID)
	unanswered.Answered = false
	publishFrame(unanswered)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, reply)
	assert.Equal(t, 1, rb.pendingCount())

	publishFrame(codec.NewReplyFrame("other-node", replyID))
	select {
	case got := <-reply:
		assert.True(t, got)
	case <-time.After(2 * time.Second):
		t.Fatal("answered reply was not delivered")
	}
}
