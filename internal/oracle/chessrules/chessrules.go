// Package chessrules 基于 notnil/chess 的国际象棋规则服务
package chessrules

import (
	"fmt"

	"github.com/notnil/chess"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/match"
)

// Position 对 chess.Position 的包装，String 输出棋盘图
type Position struct {
	pos *chess.Position
}

func (p Position) String() string {
	return p.pos.Board().Draw()
}

// FEN 返回局面的 FEN 串
func (p Position) FEN() string {
	return p.pos.String()
}

// Oracle 实现 match.Oracle，着法使用 UCI 记法（如 e2e4、a7a8q）
type Oracle struct{}

// New 创建规则服务
func New() Oracle {
	return Oracle{}
}

// FromFEN 从 FEN 串构造局面
func FromFEN(fen string) (Position, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("parse fen: %w", err)
	}
	return Position{pos: chess.NewGame(opt).Position()}, nil
}

func (Oracle) InitialPosition() match.Position {
	return Position{pos: chess.StartingPosition()}
}

func (Oracle) LegalMoves(pos match.Position) []string {
	p, ok := pos.(Position)
	if !ok {
		return nil
	}
	valid := p.pos.ValidMoves()
	moves := make([]string, 0, len(valid))
	for _, m := range valid {
		moves = append(moves, m.String())
	}
	return moves
}

func (Oracle) ApplyMove(pos match.Position, move string) (match.Position, error) {
	p, ok := pos.(Position)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected position type %T", apperrors.ErrInvariant, pos)
	}
	for _, m := range p.pos.ValidMoves() {
		if m.String() == move {
			return Position{pos: p.pos.Update(m)}, nil
		}
	}
	return nil, fmt.Errorf("%w: move %q not found among valid moves", apperrors.ErrInvariant, move)
}

func (Oracle) IsCheckmate(pos match.Position) bool {
	p, ok := pos.(Position)
	return ok && p.pos.Status() == chess.Checkmate
}

func (Oracle) IsStalemate(pos match.Position) bool {
	p, ok := pos.(Position)
	return ok && p.pos.Status() == chess.Stalemate
}
