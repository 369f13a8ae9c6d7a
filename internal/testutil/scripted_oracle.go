//go:build !production

package testutil

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/palemoky/threadrook/internal/match"
)

// ScriptedPosition 脚本化规则服务的局面：已走步数和着法记录
type ScriptedPosition struct {
	Ply     int
	History []string
}

func (p ScriptedPosition) String() string {
	return fmt.Sprintf("ply %d: %s", p.Ply, strings.Join(p.History, " "))
}

// ScriptedOracle 确定性的假规则服务。
// Legal[i] 是第 i 步前的合法着法，超出范围时使用最后一项；
// CheckmateAt / StalemateAt 为 0 表示从不出现。
type ScriptedOracle struct {
	Legal       [][]string
	CheckmateAt int
	StalemateAt int
	ApplyErr    error

	mu         sync.Mutex
	legalCalls int
	applied    []string
}

// NewScriptedOracle 创建脚本化规则服务，未给出着法时每步都允许 e2e4 和 e7e5
func NewScriptedOracle(legal ...[]string) *ScriptedOracle {
	if len(legal) == 0 {
		legal = [][]string{{"e2e4", "e7e5"}}
	}
	return &ScriptedOracle{Legal: legal}
}

func (o *ScriptedOracle) InitialPosition() match.Position {
	return ScriptedPosition{}
}

func (o *ScriptedOracle) LegalMoves(pos match.Position) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.legalCalls++

	p := pos.(ScriptedPosition)
	if len(o.Legal) == 0 {
		return nil
	}
	idx := min(p.Ply, len(o.Legal)-1)
	return slices.Clone(o.Legal[idx])
}

func (o *ScriptedOracle) ApplyMove(pos match.Position, move string) (match.Position, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ApplyErr != nil {
		return nil, o.ApplyErr
	}

	p, ok := pos.(ScriptedPosition)
	if !ok {
		return nil, errors.New("unexpected position type")
	}
	o.applied = append(o.applied, move)
	return ScriptedPosition{Ply: p.Ply + 1, History: append(slices.Clone(p.History), move)}, nil
}

func (o *ScriptedOracle) IsCheckmate(pos match.Position) bool {
	return o.CheckmateAt > 0 && pos.(ScriptedPosition).Ply == o.CheckmateAt
}

func (o *ScriptedOracle) IsStalemate(pos match.Position) bool {
	return o.StalemateAt > 0 && pos.(ScriptedPosition).Ply == o.StalemateAt
}

// LegalCalls LegalMoves 的调用次数
func (o *ScriptedOracle) LegalCalls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.legalCalls
}

// Applied 已应用的着法
func (o *ScriptedOracle) Applied() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.applied)
}
