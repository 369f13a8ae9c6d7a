package match

import (
	"context"
	"fmt"
	"time"

	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/protocol"
)

// AlreadyInMatch 查询 id 是否已在 scope 内的某个对局中。
// 只等待第一条回复；超时没有回复视为不在对局中，不返回错误。
func AlreadyInMatch(ctx context.Context, b bus.Bus, scope protocol.ScopeID, id protocol.Identity, timeout time.Duration) (bool, error) {
	reply := make(chan bool, 1)
	query := protocol.VerifyIfAlreadyInMatch{Identity: id, Reply: reply}
	if err := b.Publish(ctx, protocol.NewEnvelope(scope, query)); err != nil {
		return false, fmt.Errorf("publish query: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case answer := <-reply:
		return answer, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
