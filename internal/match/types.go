// Package match 实现双人回合制对局的会话协调器。
//
// 每个会话由一个协调协程独占其可变状态，所有输入都来自共享事件总线，
// 会话之间不共享内存。
package match

import (
	"math/rand/v2"
	"time"

	"github.com/palemoky/threadrook/internal/protocol"
)

// State 会话状态，只能单调前进
type State int

const (
	StateWaitingForOpponent State = iota
	StatePlaying
	StateGameOver
)

func (s State) String() string {
	switch s {
	case StateWaitingForOpponent:
		return "waiting_for_opponent"
	case StatePlaying:
		return "playing"
	case StateGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Color 棋子颜色
type Color int

const (
	White Color = iota
	Black
)

// Opposite 返回另一方
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "White"
	}
	return "Black"
}

// RandomColor 随机分配创建者的颜色
func RandomColor() Color {
	if rand.IntN(2) == 0 {
		return White
	}
	return Black
}

// Slot 参与者席位
type Slot int

const (
	SlotFirst Slot = iota
	SlotSecond
)

// Participant 参与者。第二席位的身份在对手加入前为空
type Participant struct {
	Slot     Slot
	Color    Color
	Identity protocol.Identity
}

// Joined 是否已有身份
func (p Participant) Joined() bool {
	return !p.Identity.IsZero()
}

// Clock 双方剩余时间（滴答）
type Clock struct {
	White int
	Black int
}

// Remaining 返回某方剩余时间
func (c Clock) Remaining(color Color) int {
	if color == White {
		return c.White
	}
	return c.Black
}

// Tick 扣减某方 1 个滴答并返回剩余时间
func (c *Clock) Tick(color Color) int {
	if color == White {
		c.White--
		return c.White
	}
	c.Black--
	return c.Black
}

// EndReason 对局结束原因
type EndReason int

const (
	EndNone EndReason = iota
	EndNoOpponent
	EndCheckmate
	EndStalemate
	EndTimeForfeit
	EndResignation
	EndAbnormal
)

func (r EndReason) String() string {
	switch r {
	case EndNoOpponent:
		return "no_opponent"
	case EndCheckmate:
		return "checkmate"
	case EndStalemate:
		return "stalemate"
	case EndTimeForfeit:
		return "time_forfeit"
	case EndResignation:
		return "resignation"
	case EndAbnormal:
		return "abnormal"
	default:
		return "none"
	}
}

// Result 对局结果，HasWinner 为 false 表示没有胜者
type Result struct {
	Reason    EndReason
	Winner    Color
	HasWinner bool
}

// Settings 会话参数
type Settings struct {
	JoinDeadline int           // 等待对手的滴答数
	ClockTicks   int           // 每方用时
	TickInterval time.Duration // 滴答间隔
	GracePeriod  time.Duration // 结束后保留展示区的时长
	QueryTimeout time.Duration // 创建前查询的超时
}

// DefaultSettings 默认会话参数
func DefaultSettings() Settings {
	return Settings{
		JoinDeadline: 90,
		ClockTicks:   300,
		TickInterval: time.Second,
		GracePeriod:  30 * time.Second,
		QueryTimeout: 10 * time.Second,
	}
}

// Session 一局对局的全部可变状态，只由所属协调器修改
type Session struct {
	ID           string
	Scope        protocol.ScopeID
	State        State
	Players      [2]Participant
	Clock        Clock
	JoinDeadline int
	Acting       Color
	Position     Position
	Result       Result
}

// NewSession 创建等待对手的会话，白方先走
func NewSession(id string, scope protocol.ScopeID, creator protocol.Identity, creatorColor Color, settings Settings, initial Position) *Session {
	return &Session{
		ID:    id,
		Scope: scope,
		State: StateWaitingForOpponent,
		Players: [2]Participant{
			{Slot: SlotFirst, Color: creatorColor, Identity: creator},
			{Slot: SlotSecond, Color: creatorColor.Opposite()},
		},
		Clock:        Clock{White: settings.ClockTicks, Black: settings.ClockTicks},
		JoinDeadline: settings.JoinDeadline,
		Acting:       White,
		Position:     initial,
	}
}

// Creator 返回创建者
func (s *Session) Creator() Participant {
	return s.Players[SlotFirst]
}

// ByColor 返回执某色的参与者
func (s *Session) ByColor(color Color) Participant {
	if s.Players[SlotFirst].Color == color {
		return s.Players[SlotFirst]
	}
	return s.Players[SlotSecond]
}
