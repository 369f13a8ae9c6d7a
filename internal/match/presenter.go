package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/palemoky/threadrook/internal/protocol"
)

// Panel 展示区中原地更新的固定面板
type Panel int

const (
	PanelBoard Panel = iota
	PanelClock
	PanelMoves
)

func (p Panel) String() string {
	switch p {
	case PanelBoard:
		return "board"
	case PanelClock:
		return "clock"
	case PanelMoves:
		return "moves"
	default:
		return "unknown"
	}
}

// Surface 会话展示区的创建参数
type Surface struct {
	MatchID string
	Scope   protocol.ScopeID
	Creator protocol.Identity
}

// ClockLine 一方的计时信息
type ClockLine struct {
	Name      string
	Color     Color
	Remaining int
}

// ClockView 计时面板内容。等待对手时只展示加入期限
type ClockView struct {
	Waiting      bool
	JoinDeadline int
	Lines        []ClockLine
}

// Presenter 展示层。任何方法返回错误都会终止会话
type Presenter interface {
	CreateSurface(ctx context.Context, s Surface) error
	Announce(ctx context.Context, text string) error
	Update(ctx context.Context, panel Panel, text string) error
	TeardownSurface(ctx context.Context) error

	RenderPosition(pos Position) string
	RenderClocks(view ClockView) string
	RenderLegalMoves(color Color, moves []string) string
}

// TextRenderer 纯文本渲染，可嵌入到 Presenter 实现中
type TextRenderer struct{}

// RenderPosition 局面实现 fmt.Stringer 时使用其文本
func (TextRenderer) RenderPosition(pos Position) string {
	if s, ok := pos.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(pos)
}

// RenderClocks 渲染计时面板
func (TextRenderer) RenderClocks(view ClockView) string {
	if view.Waiting {
		return fmt.Sprintf("Deadline for an opponent to join: %d", view.JoinDeadline)
	}
	lines := make([]string, 0, len(view.Lines))
	for _, l := range view.Lines {
		lines = append(lines, fmt.Sprintf("%s (%s) Time: %d", l.Name, l.Color, l.Remaining))
	}
	return strings.Join(lines, "\n")
}

// RenderLegalMoves 渲染合法着法面板，moves 为空时显示占位符
func (TextRenderer) RenderLegalMoves(color Color, moves []string) string {
	if len(moves) == 0 {
		return fmt.Sprintf("%s's legal moves in the current position: _", color)
	}
	return fmt.Sprintf("%s's legal moves in the current position:\n%s", color, strings.Join(moves, " "))
}

// MoveGuide 着法记法说明
const MoveGuide = "The chess move format is 'Source Square, Destination Square, (Promo Piece)'.\n\n" +
	"e.g. Moving a Queen from A1 to B8 will stringify to `a1b8`.\n\n" +
	"If there is a pawn promotion involved, the piece promoted to will be appended to the end of the string, " +
	"alike `a7a8q` in the case of a queen promotion.\n\n" +
	"Capital Letters represent white pieces, while lower case represents black pieces."
